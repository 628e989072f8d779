// Package game implements the Connect Four board, win detection and the
// per-match turn engine.
package game

import (
	"fmt"

	"github.com/cory-johannsen/connect4/internal/protocol"
)

// Default board geometry.
const (
	DefaultRows    = 6
	DefaultColumns = 7
)

// Board is a fixed rows×columns grid stored row-major with row 0 at the top.
// Pieces settle at the highest row index with an empty cell.
type Board struct {
	rows    int
	columns int
	cells   [][]protocol.Cell
}

// NewBoard creates an empty board.
//
// Precondition: rows and columns must be >= 1.
// Postcondition: Returns an all-Empty board or an error for non-positive dimensions.
func NewBoard(rows, columns int) (*Board, error) {
	if rows < 1 || columns < 1 {
		return nil, fmt.Errorf("board dimensions must be positive, got %dx%d", rows, columns)
	}
	cells := make([][]protocol.Cell, rows)
	for r := range cells {
		cells[r] = make([]protocol.Cell, columns)
	}
	return &Board{rows: rows, columns: columns, cells: cells}, nil
}

// BoardFromGrid builds a board from an existing grid, copying it.
//
// Postcondition: Returns an error if the grid is not rectangular or holds invalid cells.
func BoardFromGrid(grid [][]protocol.Cell) (*Board, error) {
	if err := protocol.ValidateGrid(grid); err != nil {
		return nil, err
	}
	b, err := NewBoard(len(grid), len(grid[0]))
	if err != nil {
		return nil, err
	}
	for r, row := range grid {
		for c, cell := range row {
			if !cell.Valid() {
				return nil, fmt.Errorf("cell (%d,%d) has invalid value %d", r, c, int(cell))
			}
			b.cells[r][c] = cell
		}
	}
	return b, nil
}

// Rows returns the number of rows.
func (b *Board) Rows() int { return b.rows }

// Columns returns the number of columns.
func (b *Board) Columns() int { return b.columns }

// At returns the cell at (row, column).
//
// Precondition: row and column must be in range.
func (b *Board) At(row, column int) protocol.Cell {
	return b.cells[row][column]
}

// InBounds reports whether (row, column) lies on the board.
func (b *Board) InBounds(row, column int) bool {
	return row >= 0 && row < b.rows && column >= 0 && column < b.columns
}

// Drop places marker in the lowest empty cell of column.
//
// Precondition: marker must be PlayerA or PlayerB.
// Postcondition: Returns the row the piece landed in. On error the board is unchanged.
func (b *Board) Drop(column int, marker protocol.Cell) (int, error) {
	if !marker.IsPlayer() {
		return -1, ErrInvalidMarker
	}
	if column < 0 || column >= b.columns {
		return -1, ErrColumnOutOfRange
	}
	for r := b.rows - 1; r >= 0; r-- {
		if b.cells[r][column] == protocol.Empty {
			b.cells[r][column] = marker
			return r, nil
		}
	}
	return -1, ErrColumnFull
}

// Grid returns a deep copy of the cells for broadcasting.
func (b *Board) Grid() [][]protocol.Cell {
	out := make([][]protocol.Cell, b.rows)
	for r := range b.cells {
		out[r] = append([]protocol.Cell(nil), b.cells[r]...)
	}
	return out
}

// Full reports whether every column is full.
func (b *Board) Full() bool {
	for c := 0; c < b.columns; c++ {
		if b.cells[0][c] == protocol.Empty {
			return false
		}
	}
	return true
}

// Count returns how many cells hold marker.
func (b *Board) Count(marker protocol.Cell) int {
	n := 0
	for _, row := range b.cells {
		for _, cell := range row {
			if cell == marker {
				n++
			}
		}
	}
	return n
}

// CheckGravity verifies that no empty cell sits below an occupied cell in any column.
//
// Postcondition: Returns nil when the gravity invariant holds.
func (b *Board) CheckGravity() error {
	for c := 0; c < b.columns; c++ {
		seenPiece := false
		for r := 0; r < b.rows; r++ {
			if b.cells[r][c] != protocol.Empty {
				seenPiece = true
				continue
			}
			if seenPiece {
				return fmt.Errorf("column %d: empty cell at row %d below a piece", c, r)
			}
		}
	}
	return nil
}
