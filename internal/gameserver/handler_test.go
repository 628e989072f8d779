package gameserver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/connect4/internal/game"
	"github.com/cory-johannsen/connect4/internal/match"
	"github.com/cory-johannsen/connect4/internal/protocol"
	"github.com/cory-johannsen/connect4/internal/testutil"
)

const frameTimeout = 2 * time.Second

type player struct {
	cli    *testutil.PipeConn
	frames *testutil.FrameReader
	errCh  chan error
}

func connectPlayer(t *testing.T, h *Handler, name string) *player {
	t.Helper()
	srv, cli := testutil.NewPipe(name)
	p := &player{cli: cli, frames: testutil.NewFrameReader(t, cli), errCh: make(chan error, 1)}
	go func() { p.errCh <- h.HandleConn(context.Background(), srv) }()
	t.Cleanup(func() { _ = cli.Close() })
	return p
}

func (p *player) send(t *testing.T, env protocol.Envelope) {
	t.Helper()
	require.NoError(t, p.cli.Send(env))
}

func (p *player) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-p.errCh:
		return err
	case <-time.After(frameTimeout):
		t.Fatal("handler did not return")
		return nil
	}
}

func newHandler(t *testing.T) (*Handler, *match.Registry) {
	logger := zaptest.NewLogger(t)
	reg := match.NewRegistry(game.DefaultRows, game.DefaultColumns, logger)
	return NewHandler(reg, logger), reg
}

func TestLoginRepliesWithRoomList(t *testing.T) {
	h, reg := newHandler(t)
	reg.CreateRoom("carol", testutilConn("carol"))

	p := connectPlayer(t, h, "alice")
	p.send(t, protocol.Login("alice"))
	rl := p.frames.NextRoomList(frameTimeout)
	assert.Equal(t, []protocol.RoomEntry{{ID: 0, Creator: "carol"}}, rl.Rooms)
}

func TestFirstFrameMustBeLogin(t *testing.T) {
	h, _ := newHandler(t)
	p := connectPlayer(t, h, "alice")
	p.send(t, protocol.Create())

	ef := p.frames.NextError(frameTimeout)
	assert.Equal(t, protocol.CodeProtocolViolation, ef.Code)
	assert.ErrorIs(t, p.result(t), protocol.ErrProtocolViolation)
}

func TestLoginRequiresUsername(t *testing.T) {
	h, _ := newHandler(t)
	p := connectPlayer(t, h, "anon")
	p.send(t, protocol.Login(""))

	ef := p.frames.NextError(frameTimeout)
	assert.Equal(t, protocol.CodeProtocolViolation, ef.Code)
	assert.ErrorIs(t, p.result(t), protocol.ErrProtocolViolation)
}

func TestUnknownLobbyCommandCloses(t *testing.T) {
	h, _ := newHandler(t)
	p := connectPlayer(t, h, "alice")
	p.send(t, protocol.Login("alice"))
	p.frames.NextRoomList(frameTimeout)

	p.send(t, protocol.PlayPiece(3))
	ef := p.frames.NextError(frameTimeout)
	assert.Equal(t, protocol.CodeProtocolViolation, ef.Code)
	assert.ErrorIs(t, p.result(t), protocol.ErrProtocolViolation)
}

func TestConnectMissingRoomReshowsList(t *testing.T) {
	h, _ := newHandler(t)
	p := connectPlayer(t, h, "bob")
	p.send(t, protocol.Login("bob"))
	p.frames.NextRoomList(frameTimeout)

	p.send(t, protocol.Connect(5))
	ef := p.frames.NextError(frameTimeout)
	assert.Equal(t, protocol.CodeRoomNotFound, ef.Code)
	p.frames.NextRoomList(frameTimeout)

	target := "abc"
	p.send(t, protocol.Envelope{Command: protocol.CmdConnect, Args: map[string]any{}, Target: &target})
	ef = p.frames.NextError(frameTimeout)
	assert.Equal(t, protocol.CodeRoomNotFound, ef.Code)
	p.frames.NextRoomList(frameTimeout)

	// Still in the lobby.
	p.send(t, protocol.List())
	p.frames.NextRoomList(frameTimeout)
}

func TestCreateJoinPlayToWin(t *testing.T) {
	h, reg := newHandler(t)

	alice := connectPlayer(t, h, "alice")
	alice.send(t, protocol.Login("alice"))
	alice.frames.NextRoomList(frameTimeout)
	alice.send(t, protocol.Create())
	require.Eventually(t, func() bool { return reg.Len() == 1 }, frameTimeout, 5*time.Millisecond)

	bob := connectPlayer(t, h, "bob")
	bob.send(t, protocol.Login("bob"))
	rl := bob.frames.NextRoomList(frameTimeout)
	require.True(t, rl.Contains(0))
	bob.send(t, protocol.Connect(0))

	assert.Equal(t, protocol.PlayerA, alice.frames.NextGameStart(frameTimeout).Player)
	assert.Equal(t, protocol.PlayerB, bob.frames.NextGameStart(frameTimeout).Player)
	assert.Equal(t, 0, reg.Len())

	var last protocol.BoardUpdate
	for i := 0; i < 4; i++ {
		alice.send(t, protocol.PlayPiece(0))
		last = alice.frames.NextBoard(frameTimeout)
		assert.Equal(t, last, bob.frames.NextBoard(frameTimeout))
		if last.GameEnded {
			break
		}
		bob.send(t, protocol.PlayPiece(1))
		alice.frames.NextBoard(frameTimeout)
		bob.frames.NextBoard(frameTimeout)
	}
	assert.True(t, last.GameEnded)

	assert.NoError(t, alice.result(t))
	assert.NoError(t, bob.result(t))
}

func TestRejectedMoveKeepsTurnThroughHandler(t *testing.T) {
	h, reg := newHandler(t)

	alice := connectPlayer(t, h, "alice")
	alice.send(t, protocol.Login("alice"))
	alice.frames.NextRoomList(frameTimeout)
	alice.send(t, protocol.Create())
	require.Eventually(t, func() bool { return reg.Len() == 1 }, frameTimeout, 5*time.Millisecond)

	bob := connectPlayer(t, h, "bob")
	bob.send(t, protocol.Login("bob"))
	bob.frames.NextRoomList(frameTimeout)
	bob.send(t, protocol.Connect(0))
	alice.frames.NextGameStart(frameTimeout)
	bob.frames.NextGameStart(frameTimeout)

	alice.send(t, protocol.PlayPiece(-1))
	assert.Equal(t, protocol.CodeColumnOutOfRange, alice.frames.NextError(frameTimeout).Code)

	alice.send(t, protocol.PlayPiece(2))
	update := bob.frames.NextBoard(frameTimeout)
	assert.Equal(t, protocol.PlayerA, update.Board[5][2])
}

func TestJoinerDisconnectAbortsCreator(t *testing.T) {
	h, reg := newHandler(t)

	alice := connectPlayer(t, h, "alice")
	alice.send(t, protocol.Login("alice"))
	alice.frames.NextRoomList(frameTimeout)
	alice.send(t, protocol.Create())
	require.Eventually(t, func() bool { return reg.Len() == 1 }, frameTimeout, 5*time.Millisecond)

	bob := connectPlayer(t, h, "bob")
	bob.send(t, protocol.Login("bob"))
	bob.frames.NextRoomList(frameTimeout)
	bob.send(t, protocol.Connect(0))
	alice.frames.NextGameStart(frameTimeout)
	bob.frames.NextGameStart(frameTimeout)

	alice.send(t, protocol.PlayPiece(3))
	alice.frames.NextBoard(frameTimeout)
	bob.frames.NextBoard(frameTimeout)

	require.NoError(t, bob.cli.Close())
	assert.ErrorIs(t, alice.result(t), game.ErrConnectionLost)
	assert.ErrorIs(t, bob.result(t), game.ErrConnectionLost)
}

func testutilConn(name string) protocol.Conn {
	srv, _ := testutil.NewPipe(name)
	return srv
}
