package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/protocol"
)

// State is the lifecycle state of a Session.
type State int

const (
	// AwaitingMove means the active player may submit a move.
	AwaitingMove State = iota
	// Finished means a player has won. Terminal.
	Finished
	// Aborted means a connection failed or a player broke protocol. Terminal.
	Aborted
)

func (s State) String() string {
	switch s {
	case AwaitingMove:
		return "awaiting_move"
	case Finished:
		return "finished"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Seat binds a player's name to their connection.
type Seat struct {
	Name string
	Conn protocol.Conn
}

// MoveOutcome describes an accepted move.
type MoveOutcome struct {
	Player    protocol.Cell
	Row       int
	Column    int
	GameEnded bool
}

// Session is one match between two players. Only the active player's
// connection is read from; every accepted move is broadcast to both.
type Session struct {
	id      uuid.UUID
	logger  *zap.Logger
	started time.Time

	mu     sync.Mutex
	sendMu sync.Mutex
	board  *Board
	seats  [2]Seat
	active protocol.Cell
	state  State
	winner protocol.Cell
	err    error

	done     chan struct{}
	doneOnce sync.Once
}

// NewSession creates a session with the creator as PlayerA and the joiner as PlayerB.
//
// Precondition: both seats must carry non-nil connections.
// Postcondition: Returns a session in AwaitingMove with PlayerA to move.
func NewSession(rows, columns int, creator, joiner Seat, logger *zap.Logger) (*Session, error) {
	if creator.Conn == nil || joiner.Conn == nil {
		return nil, errors.New("session requires two connections")
	}
	board, err := NewBoard(rows, columns)
	if err != nil {
		return nil, fmt.Errorf("creating board: %w", err)
	}
	id := uuid.New()
	return &Session{
		id:      id,
		logger:  logger.With(zap.String("session_id", id.String())),
		started: time.Now(),
		board:   board,
		seats:   [2]Seat{creator, joiner},
		active:  protocol.PlayerA,
		state:   AwaitingMove,
		done:    make(chan struct{}),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Done is closed once the session is Finished or Aborted.
func (s *Session) Done() <-chan struct{} { return s.done }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Winner returns the winning player, or Empty if there is none yet.
func (s *Session) Winner() protocol.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winner
}

// Active returns the player whose turn it is.
func (s *Session) Active() protocol.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Err returns why the session aborted, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Grid returns a copy of the current board.
func (s *Session) Grid() [][]protocol.Cell {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Grid()
}

// Start tells both players the match has begun and which marker each plays.
//
// Postcondition: Both players received GameStart, or the session is Aborted
// and ErrConnectionLost is returned.
func (s *Session) Start() error {
	s.mu.Lock()
	rows, cols := s.board.Rows(), s.board.Columns()
	s.mu.Unlock()

	for i, seat := range s.seats {
		msg := protocol.GameStart{Rows: rows, Columns: cols, Player: protocol.Cell(i + 1)}
		if err := seat.Conn.Send(msg); err != nil {
			s.logger.Warn("sending game start",
				zap.String("player", seat.Name),
				zap.Error(err),
			)
			s.abort(ErrConnectionLost)
			return ErrConnectionLost
		}
	}
	s.logger.Info("game started",
		zap.String("red", s.seats[0].Name),
		zap.String("yellow", s.seats[1].Name),
		zap.Int("rows", rows),
		zap.Int("columns", cols),
	)
	return nil
}

// SubmitMove plays the active player's piece in column.
//
// Precondition: conn must be one of the session's connections.
// Postcondition: On success exactly one BoardUpdate has been sent to both
// players and the turn has passed, or the game is Finished. Rejections leave
// the board and turn unchanged.
func (s *Session) SubmitMove(conn protocol.Conn, column int) (MoveOutcome, error) {
	s.mu.Lock()
	switch s.state {
	case Finished:
		s.mu.Unlock()
		return MoveOutcome{}, ErrGameFinished
	case Aborted:
		s.mu.Unlock()
		return MoveOutcome{}, ErrConnectionLost
	}
	if s.seats[s.active-1].Conn != conn {
		s.mu.Unlock()
		return MoveOutcome{}, ErrNotYourTurn
	}

	player := s.active
	row, err := s.board.Drop(column, player)
	if err != nil {
		s.mu.Unlock()
		return MoveOutcome{}, err
	}

	winner, won := DetectWin(s.board)
	update := protocol.BoardUpdate{Board: s.board.Grid(), GameEnded: won}
	placed := s.board.Rows()*s.board.Columns() - s.board.Count(protocol.Empty)
	full := !won && s.board.Full()
	if won {
		s.state = Finished
		s.winner = winner
	} else {
		s.active = player.Opponent()
	}
	// Broadcast outside mu; sendMu keeps updates in move order.
	s.sendMu.Lock()
	s.mu.Unlock()

	for _, seat := range s.seats {
		if err := seat.Conn.Send(update); err != nil {
			s.sendMu.Unlock()
			s.logger.Warn("broadcasting board",
				zap.String("player", seat.Name),
				zap.Error(err),
			)
			s.abort(ErrConnectionLost)
			return MoveOutcome{}, ErrConnectionLost
		}
	}
	s.sendMu.Unlock()

	s.logger.Debug("move accepted",
		zap.Stringer("player", player),
		zap.Int("column", column),
		zap.Int("row", row),
		zap.Int("pieces", placed),
	)
	if full {
		s.logger.Warn("board full without a winner",
			zap.Int("pieces", placed),
		)
	}

	outcome := MoveOutcome{Player: player, Row: row, Column: column, GameEnded: won}
	if !won {
		return outcome, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Finished {
		return outcome, s.err
	}
	s.logger.Info("game finished",
		zap.String("winner", s.seats[winner-1].Name),
		zap.Stringer("marker", winner),
		zap.Duration("duration", time.Since(s.started)),
	)
	s.closeDone()
	return outcome, nil
}

// Run drives the turn loop, reading only from the active player's connection.
// Rejected moves are answered with an ErrorFrame and the same player is read
// again. Cancelling ctx aborts the session.
//
// Postcondition: Returns nil when the game finishes, otherwise the abort reason.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.abort(ErrConnectionLost) })
	defer stop()

	for {
		s.mu.Lock()
		state := s.state
		conn := s.seats[s.active-1].Conn
		s.mu.Unlock()

		if state != AwaitingMove {
			return s.Err()
		}

		env, err := protocol.ReceiveEnvelope(conn)
		if err != nil {
			if errors.Is(err, protocol.ErrProtocolViolation) {
				s.violation(conn, err)
				return s.Err()
			}
			s.logger.Info("player disconnected",
				zap.String("remote_addr", conn.RemoteAddr()),
				zap.Error(err),
			)
			s.abort(ErrConnectionLost)
			return s.Err()
		}

		if env.Command != protocol.CmdPlayPiece {
			s.violation(conn, fmt.Errorf("%w: unexpected %q during game", protocol.ErrProtocolViolation, env.Command))
			return s.Err()
		}
		column, err := env.Column()
		if err != nil {
			s.violation(conn, err)
			return s.Err()
		}

		_, err = s.SubmitMove(conn, column)
		switch {
		case err == nil:
		case errors.Is(err, ErrMoveRejected):
			if sendErr := protocol.SendError(conn, err); sendErr != nil {
				s.abort(ErrConnectionLost)
				return s.Err()
			}
		default:
			return err
		}
	}
}

func (s *Session) violation(conn protocol.Conn, err error) {
	s.logger.Warn("protocol violation",
		zap.String("remote_addr", conn.RemoteAddr()),
		zap.Error(err),
	)
	_ = protocol.SendError(conn, err)
	s.abort(err)
}

func (s *Session) abort(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked(reason)
}

// abortLocked also overrides a win whose broadcast has not completed.
func (s *Session) abortLocked(reason error) {
	if s.state == Aborted || s.isDone() {
		return
	}
	s.state = Aborted
	s.winner = protocol.Empty
	s.err = reason
	for _, seat := range s.seats {
		_ = seat.Conn.Close()
	}
	s.logger.Info("game aborted",
		zap.Error(reason),
		zap.Duration("duration", time.Since(s.started)),
	)
	s.closeDone()
}

func (s *Session) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}
