package client

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/connect4/internal/protocol"
)

// ANSI escape codes used by the terminal renderer.
const (
	Reset       = "\033[0m"
	Bold        = "\033[1m"
	Dim         = "\033[2m"
	Red         = "\033[31m"
	Yellow      = "\033[33m"
	BrightBlack = "\033[90m"
	ClearScreen = "\033[H\033[2J"
)

// Colorize wraps text with the given ANSI color code and a reset suffix.
//
// Precondition: color must be a valid ANSI escape sequence.
// Postcondition: Returns text wrapped with the color code and Reset.
func Colorize(color, text string) string {
	return color + text + Reset
}

// Colorf wraps a formatted string with the given ANSI color code.
func Colorf(color, format string, args ...any) string {
	return color + fmt.Sprintf(format, args...) + Reset
}

// StripANSI removes all ANSI escape sequences from a string.
//
// Postcondition: Returns s with every \033[...X sequence removed, where X is
// the first ASCII letter after the bracket.
func StripANSI(s string) string {
	result := make([]byte, 0, len(s))
	i := 0
	for i < len(s) {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && !isLetter(s[j]) {
				j++
			}
			if j < len(s) {
				i = j + 1
				continue
			}
		}
		result = append(result, s[i])
		i++
	}
	return string(result)
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// PlayerLabel names a marker in its own color.
func PlayerLabel(c protocol.Cell) string {
	switch c {
	case protocol.PlayerA:
		return Colorize(Bold+Red, "Red")
	case protocol.PlayerB:
		return Colorize(Bold+Yellow, "Yellow")
	default:
		return "Nobody"
	}
}

func cellGlyph(c protocol.Cell) string {
	switch c {
	case protocol.PlayerA:
		return Colorize(Red, "O")
	case protocol.PlayerB:
		return Colorize(Yellow, "O")
	default:
		return Colorize(BrightBlack, ".")
	}
}

// RenderBoard draws the grid with 1-based column numbers underneath.
func RenderBoard(grid [][]protocol.Cell) string {
	var b strings.Builder
	for _, row := range grid {
		b.WriteString("|")
		for _, cell := range row {
			b.WriteString(" ")
			b.WriteString(cellGlyph(cell))
		}
		b.WriteString(" |\n")
	}
	if len(grid) == 0 {
		return ""
	}
	b.WriteString(" ")
	for c := range grid[0] {
		fmt.Fprintf(&b, "%2d", (c+1)%100)
	}
	b.WriteString("\n")
	return b.String()
}

// RenderRooms lists the open rooms, one "id: creator" per line.
func RenderRooms(rl protocol.RoomList) string {
	var b strings.Builder
	b.WriteString(Colorize(Bold, "Current Open Rooms"))
	b.WriteString("\n")
	if len(rl.Rooms) == 0 {
		b.WriteString(Colorize(Dim, "  (no open rooms)"))
		b.WriteString("\n")
	}
	for _, e := range rl.Rooms {
		fmt.Fprintf(&b, "%d: %s\n", e.ID, e.Creator)
	}
	return b.String()
}

// Turn derives whose move it is from piece counts. PlayerA always moves
// first, so equal counts mean PlayerA is to move.
func Turn(grid [][]protocol.Cell) protocol.Cell {
	a, b := counts(grid)
	if a == b {
		return protocol.PlayerA
	}
	return protocol.PlayerB
}

// LastMover returns the player who made the most recent move on grid.
func LastMover(grid [][]protocol.Cell) protocol.Cell {
	a, b := counts(grid)
	switch {
	case a == 0 && b == 0:
		return protocol.Empty
	case a > b:
		return protocol.PlayerA
	default:
		return protocol.PlayerB
	}
}

func counts(grid [][]protocol.Cell) (a, b int) {
	for _, row := range grid {
		for _, c := range row {
			switch c {
			case protocol.PlayerA:
				a++
			case protocol.PlayerB:
				b++
			}
		}
	}
	return a, b
}
