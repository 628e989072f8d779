package protocol

import (
	"encoding/json"
	"fmt"
)

// Encode serializes a frame to JSON text.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return data, nil
}

// DecodeEnvelope parses a client-to-server frame.
//
// Postcondition: Returns an Envelope with a non-empty Command and non-nil Args,
// or an error wrapping ErrProtocolViolation.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	if env.Command == "" {
		return Envelope{}, fmt.Errorf("%w: missing command", ErrProtocolViolation)
	}
	if env.Args == nil {
		env.Args = map[string]any{}
	}
	return env, nil
}

// DecodeServerFrame parses a server-to-client frame and returns one of
// RoomList, GameStart, BoardUpdate or ErrorFrame. Frames are told apart by
// their distinguishing key.
//
// Postcondition: Returns a value frame or an error wrapping ErrProtocolViolation.
func DecodeServerFrame(data []byte) (any, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}

	var (
		frame any
		err   error
	)
	switch {
	case has(keys, "error"):
		var f ErrorFrame
		err = json.Unmarshal(data, &f)
		frame = f
	case has(keys, "board"):
		var f BoardUpdate
		if err = json.Unmarshal(data, &f); err == nil {
			err = ValidateGrid(f.Board)
		}
		frame = f
	case has(keys, "client_player"):
		var f GameStart
		if err = json.Unmarshal(data, &f); err == nil {
			err = validateGameStart(f)
		}
		frame = f
	case has(keys, "rooms"):
		var f RoomList
		err = json.Unmarshal(data, &f)
		frame = f
	default:
		return nil, fmt.Errorf("%w: unrecognised frame %s", ErrProtocolViolation, truncate(data))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	return frame, nil
}

// ValidateGrid checks that a board grid is non-empty and rectangular.
// Cell range is already enforced by Cell.UnmarshalJSON.
func ValidateGrid(grid [][]Cell) error {
	if len(grid) == 0 {
		return fmt.Errorf("board has no rows")
	}
	width := len(grid[0])
	if width == 0 {
		return fmt.Errorf("board has no columns")
	}
	for i, row := range grid {
		if len(row) != width {
			return fmt.Errorf("board row %d has %d cells, want %d", i, len(row), width)
		}
	}
	return nil
}

func validateGameStart(f GameStart) error {
	if !f.Player.IsPlayer() {
		return fmt.Errorf("client_player must be a player marker, got %s", f.Player)
	}
	if f.Rows < 1 || f.Rows > MaxBoardDimension {
		return fmt.Errorf("rows must be in [1, %d], got %d", MaxBoardDimension, f.Rows)
	}
	if f.Columns < 1 || f.Columns > MaxBoardDimension {
		return fmt.Errorf("columns must be in [1, %d], got %d", MaxBoardDimension, f.Columns)
	}
	return nil
}

func has(m map[string]json.RawMessage, key string) bool {
	_, ok := m[key]
	return ok
}

func truncate(data []byte) string {
	const limit = 64
	if len(data) > limit {
		return string(data[:limit]) + "..."
	}
	return string(data)
}
