package domain

import "fmt"

// Board is indexed [row][column]; row 0 is the bottom of the grid
type Board [Rows][Columns]Player

// the forward directions (deltaRow, deltaCol) checked from every cell:
// right, up, up-right and up-left. together they cover every line exactly once.
var winDirections = [4][2]int{
	{0, 1},
	{1, 0},
	{1, 1},
	{1, -1},
}

func IsValidColumn(column int) bool {
	return column >= 0 && column < Columns
}

// ColumnTop returns the lowest empty row of the column, or NoRow if it is full
func (b *Board) ColumnTop(column int) int {
	for row := 0; row < Rows; row++ {
		if b[row][column] == None {
			return row
		}
	}
	return NoRow
}

func (b *Board) IsColumnFull(column int) bool {
	return b[Rows-1][column] != None
}

func (b *Board) IsFull() bool {
	for c := 0; c < Columns; c++ {
		if !b.IsColumnFull(c) {
			return false
		}
	}
	return true
}

// HasFourInARow scans the whole board for ToWin contiguous cells of the player
func (b *Board) HasFourInARow(player Player) bool {
	for row := 0; row < Rows; row++ {
		for col := 0; col < Columns; col++ {
			if b[row][col] != player {
				continue
			}
			for _, d := range winDirections {
				if b.runFrom(row, col, d[0], d[1], player) {
					return true
				}
			}
		}
	}
	return false
}

// runFrom reports whether ToWin cells starting at (row, col) and stepping by
// (deltaRow, deltaCol) all belong to player. the far end is bounds checked per axis.
func (b *Board) runFrom(row, col, deltaRow, deltaCol int, player Player) bool {
	endRow := row + (ToWin-1)*deltaRow
	endCol := col + (ToWin-1)*deltaCol
	if endRow < 0 || endRow >= Rows || endCol < 0 || endCol >= Columns {
		return false
	}

	for step := 1; step < ToWin; step++ {
		if b[row+step*deltaRow][col+step*deltaCol] != player {
			return false
		}
	}
	return true
}

// Replay rebuilds a board from an ordered move list. every move must land
// on the gravity drop row of its column.
func Replay(moves []Move) (Board, error) {
	var board Board
	for i, m := range moves {
		if !IsValidColumn(m.Column) {
			return Board{}, fmt.Errorf("move %d: column %d out of range", i, m.Column)
		}
		if !m.Player.Valid() {
			return Board{}, fmt.Errorf("move %d: invalid player", i)
		}
		top := board.ColumnTop(m.Column)
		if top == NoRow || top != m.Row {
			return Board{}, fmt.Errorf("move %d: row %d does not match drop row %d in column %d", i, m.Row, top, m.Column)
		}
		board[m.Row][m.Column] = m.Player
	}
	return board, nil
}
