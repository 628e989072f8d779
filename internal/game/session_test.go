package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/connect4/internal/protocol"
	"github.com/cory-johannsen/connect4/internal/testutil"
)

const frameTimeout = 2 * time.Second

type sessionFixture struct {
	session *Session
	redSrv  *testutil.PipeConn
	yelSrv  *testutil.PipeConn
	redCli  *testutil.PipeConn
	yelCli  *testutil.PipeConn
	red     *testutil.FrameReader
	yellow  *testutil.FrameReader
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	redSrv, redCli := testutil.NewPipe("alice")
	yelSrv, yelCli := testutil.NewPipe("bob")
	s, err := NewSession(6, 7, Seat{Name: "alice", Conn: redSrv}, Seat{Name: "bob", Conn: yelSrv}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return &sessionFixture{
		session: s,
		redSrv:  redSrv,
		yelSrv:  yelSrv,
		redCli:  redCli,
		yelCli:  yelCli,
		red:     testutil.NewFrameReader(t, redCli),
		yellow:  testutil.NewFrameReader(t, yelCli),
	}
}

func TestStartSendsMarkers(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.session.Start())

	assert.Equal(t, protocol.GameStart{Rows: 6, Columns: 7, Player: protocol.PlayerA}, f.red.NextGameStart(frameTimeout))
	assert.Equal(t, protocol.GameStart{Rows: 6, Columns: 7, Player: protocol.PlayerB}, f.yellow.NextGameStart(frameTimeout))
	assert.Equal(t, AwaitingMove, f.session.State())
	assert.Equal(t, protocol.PlayerA, f.session.Active())
}

func TestSubmitMoveAlternatesTurns(t *testing.T) {
	f := newSessionFixture(t)

	out, err := f.session.SubmitMove(f.redSrv, 3)
	require.NoError(t, err)
	assert.Equal(t, MoveOutcome{Player: protocol.PlayerA, Row: 5, Column: 3}, out)
	assert.Equal(t, protocol.PlayerB, f.session.Active())

	_, err = f.session.SubmitMove(f.redSrv, 3)
	assert.ErrorIs(t, err, ErrNotYourTurn)
	assert.Equal(t, protocol.PlayerB, f.session.Active())

	out, err = f.session.SubmitMove(f.yelSrv, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Row)
	assert.Equal(t, protocol.PlayerA, f.session.Active())
}

func TestSubmitMoveBroadcastsOnceToBoth(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.session.SubmitMove(f.redSrv, 0)
	require.NoError(t, err)

	for _, r := range []*testutil.FrameReader{f.red, f.yellow} {
		update := r.NextBoard(frameTimeout)
		assert.False(t, update.GameEnded)
		assert.Equal(t, protocol.PlayerA, update.Board[5][0])
	}
}

func TestSubmitMoveRejectionKeepsTurn(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.session.SubmitMove(f.redSrv, 9)
	assert.ErrorIs(t, err, ErrColumnOutOfRange)
	assert.Equal(t, protocol.PlayerA, f.session.Active())
	assert.Equal(t, protocol.Empty, f.session.Grid()[5][0])
}

func TestRunColumnZeroVerticalWin(t *testing.T) {
	f := newSessionFixture(t)
	require.NoError(t, f.session.Start())
	f.red.NextGameStart(frameTimeout)
	f.yellow.NextGameStart(frameTimeout)

	errCh := make(chan error, 1)
	go func() { errCh <- f.session.Run(context.Background()) }()

	var last protocol.BoardUpdate
	for i := 0; i < 4; i++ {
		require.NoError(t, f.redCli.Send(protocol.PlayPiece(0)))
		last = f.red.NextBoard(frameTimeout)
		f.yellow.NextBoard(frameTimeout)
		if i == 3 {
			break
		}
		assert.False(t, last.GameEnded)
		require.NoError(t, f.yelCli.Send(protocol.PlayPiece(1)))
		f.red.NextBoard(frameTimeout)
		f.yellow.NextBoard(frameTimeout)
	}

	assert.True(t, last.GameEnded)
	for r := 2; r <= 5; r++ {
		assert.Equal(t, protocol.PlayerA, last.Board[r][0], "row %d", r)
	}

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(frameTimeout):
		t.Fatal("session did not finish")
	}
	<-f.session.Done()
	assert.Equal(t, Finished, f.session.State())
	assert.Equal(t, protocol.PlayerA, f.session.Winner())

	_, err := f.session.SubmitMove(f.yelSrv, 2)
	assert.ErrorIs(t, err, ErrGameFinished)
}

func TestRunRejectedMoveRereadsSamePlayer(t *testing.T) {
	f := newSessionFixture(t)
	go func() { _ = f.session.Run(context.Background()) }()

	require.NoError(t, f.redCli.Send(protocol.PlayPiece(7)))
	ef := f.red.NextError(frameTimeout)
	assert.Equal(t, protocol.CodeColumnOutOfRange, ef.Code)

	require.NoError(t, f.redCli.Send(protocol.PlayPiece(6)))
	update := f.yellow.NextBoard(frameTimeout)
	assert.Equal(t, protocol.PlayerA, update.Board[5][6])
	f.red.NextBoard(frameTimeout)
	assert.Equal(t, protocol.PlayerB, f.session.Active())
}

func TestRunIgnoresInactivePlayerUntilTheirTurn(t *testing.T) {
	f := newSessionFixture(t)
	go func() { _ = f.session.Run(context.Background()) }()

	// Yellow's early move is only read once red has played.
	require.NoError(t, f.yelCli.Send(protocol.PlayPiece(2)))
	require.NoError(t, f.redCli.Send(protocol.PlayPiece(4)))

	first := f.red.NextBoard(frameTimeout)
	assert.Equal(t, protocol.PlayerA, first.Board[5][4])
	assert.Equal(t, protocol.Empty, first.Board[5][2])

	second := f.red.NextBoard(frameTimeout)
	assert.Equal(t, protocol.PlayerB, second.Board[5][2])
}

func TestRunProtocolViolationAborts(t *testing.T) {
	f := newSessionFixture(t)
	errCh := make(chan error, 1)
	go func() { errCh <- f.session.Run(context.Background()) }()

	require.NoError(t, f.redCli.Send(protocol.Create()))
	ef := f.red.NextError(frameTimeout)
	assert.Equal(t, protocol.CodeProtocolViolation, ef.Code)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, protocol.ErrProtocolViolation)
	case <-time.After(frameTimeout):
		t.Fatal("session did not abort")
	}
	assert.Equal(t, Aborted, f.session.State())
	assert.True(t, f.yelSrv.Closed())
}

func TestRunDisconnectAbortsSession(t *testing.T) {
	f := newSessionFixture(t)
	errCh := make(chan error, 1)
	go func() { errCh <- f.session.Run(context.Background()) }()

	require.NoError(t, f.redCli.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(frameTimeout):
		t.Fatal("session did not abort")
	}
	<-f.session.Done()
	assert.Equal(t, Aborted, f.session.State())
	assert.True(t, f.yelSrv.Closed())
}

func TestRunContextCancelAborts(t *testing.T) {
	f := newSessionFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.session.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(frameTimeout):
		t.Fatal("session did not stop on cancel")
	}
}

// stallingConn blocks every BoardUpdate until it is closed.
type stallingConn struct {
	*testutil.PipeConn
	entered chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newStallingConn(pc *testutil.PipeConn) *stallingConn {
	return &stallingConn{PipeConn: pc, entered: make(chan struct{}, 1), closed: make(chan struct{})}
}

func (c *stallingConn) Send(v any) error {
	if _, ok := v.(protocol.BoardUpdate); !ok {
		return c.PipeConn.Send(v)
	}
	select {
	case c.entered <- struct{}{}:
	default:
	}
	<-c.closed
	return testutil.ErrPipeClosed
}

func (c *stallingConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return c.PipeConn.Close()
}

func TestRunCancelDuringStalledBroadcast(t *testing.T) {
	redSrv, redCli := testutil.NewPipe("alice")
	yelSrv, _ := testutil.NewPipe("bob")
	stall := newStallingConn(yelSrv)
	s, err := NewSession(6, 7, Seat{Name: "alice", Conn: redSrv}, Seat{Name: "bob", Conn: stall}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.NoError(t, redCli.Send(protocol.PlayPiece(3)))
	select {
	case <-stall.entered:
	case <-time.After(frameTimeout):
		t.Fatal("broadcast never reached the stalled connection")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrConnectionLost)
	case <-time.After(frameTimeout):
		t.Fatal("abort blocked behind the stalled broadcast")
	}
	assert.Equal(t, Aborted, s.State())
	assert.True(t, redSrv.Closed())
}

func TestSubmitMoveLogsFullBoardWithoutWinner(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	redSrv, _ := testutil.NewPipe("alice")
	yelSrv, _ := testutil.NewPipe("bob")
	s, err := NewSession(4, 4, Seat{Name: "alice", Conn: redSrv}, Seat{Name: "bob", Conn: yelSrv}, zap.New(core))
	require.NoError(t, err)

	// Bottom-up rows ABAB, ABAB, BABA, BABA leave no line of four.
	columns := []int{0, 1, 2, 3, 0, 1, 2, 3, 1, 0, 3, 2, 1, 0, 3, 2}
	seats := []protocol.Conn{redSrv, yelSrv}
	for i, col := range columns {
		out, err := s.SubmitMove(seats[i%2], col)
		require.NoError(t, err, "move %d", i)
		require.False(t, out.GameEnded, "move %d", i)
	}

	entries := logs.FilterMessage("board full without a winner").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(16), entries[0].ContextMap()["pieces"])
	assert.Equal(t, AwaitingMove, s.State())
}

func TestNewSessionRequiresConns(t *testing.T) {
	_, err := NewSession(6, 7, Seat{Name: "a"}, Seat{Name: "b"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
