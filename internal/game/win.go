package game

import "github.com/cory-johannsen/connect4/internal/protocol"

// WinLength is the number of consecutive same-player cells that wins.
const WinLength = 4

// Line returns the cells starting at (row, column) stepping by (dRow, dColumn)
// until the board edge is reached.
func Line(b *Board, row, column, dRow, dColumn int) []protocol.Cell {
	var out []protocol.Cell
	for r, c := row, column; b.InBounds(r, c); r, c = r+dRow, c+dColumn {
		out = append(out, b.At(r, c))
	}
	return out
}

// Run returns the player owning the first run of length consecutive equal
// player cells in cells, or Empty when there is none.
func Run(cells []protocol.Cell, length int) protocol.Cell {
	count := 0
	prev := protocol.Empty
	for _, cell := range cells {
		if cell == prev && cell != protocol.Empty {
			count++
		} else {
			prev = cell
			count = 1
		}
		if cell != protocol.Empty && count >= length {
			return cell
		}
	}
	return protocol.Empty
}

// DetectWin scans the board for four in a row. Rows are checked first, then
// columns, then both diagonals from each occupied cell in row-major order.
// The first run found decides the winner.
//
// Postcondition: Returns (player, true) for a win, (Empty, false) otherwise.
func DetectWin(b *Board) (protocol.Cell, bool) {
	for r := 0; r < b.Rows(); r++ {
		if p := Run(Line(b, r, 0, 0, 1), WinLength); p != protocol.Empty {
			return p, true
		}
	}
	for c := 0; c < b.Columns(); c++ {
		if p := Run(Line(b, 0, c, 1, 0), WinLength); p != protocol.Empty {
			return p, true
		}
	}
	for r := 0; r < b.Rows(); r++ {
		for c := 0; c < b.Columns(); c++ {
			if b.At(r, c) == protocol.Empty {
				continue
			}
			if p := Run(Line(b, r, c, 1, 1), WinLength); p != protocol.Empty {
				return p, true
			}
			if p := Run(Line(b, r, c, -1, 1), WinLength); p != protocol.Empty {
				return p, true
			}
		}
	}
	return protocol.Empty, false
}
