package protocol

import "errors"

// Wire codes carried by Error frames.
const (
	CodeProtocolViolation = "protocol_violation"
	CodeRoomNotFound      = "room_not_found"
	CodeNotYourTurn       = "not_your_turn"
	CodeColumnOutOfRange  = "column_out_of_range"
	CodeColumnFull        = "column_full"
	CodeGameFinished      = "game_finished"
	CodeInternal          = "internal"
)

// Coder is implemented by errors that map to a stable wire code.
type Coder interface {
	Code() string
}

type codedError struct {
	code string
	msg  string
}

func (e *codedError) Error() string { return e.msg }
func (e *codedError) Code() string  { return e.code }

// NewCodedError returns a sentinel error carrying the given wire code.
func NewCodedError(code, msg string) error {
	return &codedError{code: code, msg: msg}
}

// ErrProtocolViolation is returned when a frame is malformed or not valid
// for the current state. It is fatal for the connection.
var ErrProtocolViolation = NewCodedError(CodeProtocolViolation, "protocol violation")

// CodeOf returns the wire code of err, or CodeInternal when err carries none.
func CodeOf(err error) string {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeInternal
}
