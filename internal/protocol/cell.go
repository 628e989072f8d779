package protocol

import (
	"encoding/json"
	"fmt"
)

// Cell is the content of one board position. The zero value is Empty.
type Cell int

const (
	Empty Cell = iota
	// PlayerA is the room creator's marker and always moves first.
	PlayerA
	// PlayerB is the joiner's marker.
	PlayerB
)

// Valid reports whether c is one of Empty, PlayerA or PlayerB.
func (c Cell) Valid() bool {
	return c >= Empty && c <= PlayerB
}

// IsPlayer reports whether c is a player marker rather than Empty.
func (c Cell) IsPlayer() bool {
	return c == PlayerA || c == PlayerB
}

// Opponent returns the other player's marker.
//
// Precondition: c must be PlayerA or PlayerB.
// Postcondition: Returns Empty for any other input.
func (c Cell) Opponent() Cell {
	switch c {
	case PlayerA:
		return PlayerB
	case PlayerB:
		return PlayerA
	}
	return Empty
}

func (c Cell) String() string {
	switch c {
	case Empty:
		return "empty"
	case PlayerA:
		return "red"
	case PlayerB:
		return "yellow"
	}
	return fmt.Sprintf("cell(%d)", int(c))
}

// UnmarshalJSON decodes an integer cell and rejects values outside the tri-state range.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding cell: %w", err)
	}
	v := Cell(n)
	if !v.Valid() {
		return fmt.Errorf("cell value %d out of range", n)
	}
	*c = v
	return nil
}
