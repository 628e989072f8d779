package game

import (
	"errors"

	"github.com/cory-johannsen/connect4/internal/protocol"
)

// ErrMoveRejected matches every recoverable move rejection via errors.Is.
var ErrMoveRejected = errors.New("move rejected")

// MoveError is a recoverable rejection of a single move. The player keeps
// the turn and may submit again.
type MoveError struct {
	code string
	msg  string
}

func (e *MoveError) Error() string { return e.msg }

// Code returns the wire code sent back to the client.
func (e *MoveError) Code() string { return e.code }

// Is makes every MoveError match ErrMoveRejected.
func (e *MoveError) Is(target error) bool { return target == ErrMoveRejected }

var (
	// ErrNotYourTurn is returned when a connection not bound to the active player submits a move.
	ErrNotYourTurn error = &MoveError{code: protocol.CodeNotYourTurn, msg: "not your turn"}
	// ErrColumnOutOfRange is returned for a column outside [0, columns).
	ErrColumnOutOfRange error = &MoveError{code: protocol.CodeColumnOutOfRange, msg: "column out of range"}
	// ErrColumnFull is returned when the column has no empty cell.
	ErrColumnFull error = &MoveError{code: protocol.CodeColumnFull, msg: "column is full"}
)

var (
	// ErrGameFinished is returned for any move submitted after a win.
	ErrGameFinished = protocol.NewCodedError(protocol.CodeGameFinished, "game is finished")
	// ErrConnectionLost is returned when either player's connection fails mid-session.
	ErrConnectionLost = errors.New("connection lost")
	// ErrInvalidMarker is returned when a drop uses Empty or an out-of-range cell.
	ErrInvalidMarker = errors.New("marker must be a player")
)
