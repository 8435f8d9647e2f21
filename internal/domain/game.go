package domain

import (
	"fmt"
	"time"
)

type Game struct {
	ID        string    `json:"gameId"`
	Board     Board     `json:"board"`
	Moves     []Move    `json:"moves"`
	Turn      Player    `json:"turn"`
	Winner    Player    `json:"winner"`
	Over      bool      `json:"isOver"`
	StartTime time.Time `json:"startTime"`
}

func NewGame(id string, startTime time.Time) *Game {
	return &Game{
		ID:        id,
		Moves:     []Move{},
		Turn:      InitialPlayer,
		Winner:    None,
		StartTime: startTime,
	}
}

// Restore rebuilds a game from persisted fields, deriving the board from the moves.
// The moves are replayed through the rules, and the stored turn, winner and over
// flag must agree with the result.
func Restore(id string, moves []Move, turn, winner Player, over bool, startTime time.Time) (*Game, error) {
	if _, err := Replay(moves); err != nil {
		return nil, fmt.Errorf("restore game %s: %w", id, err)
	}

	game := NewGame(id, startTime)
	for i, m := range moves {
		// rejections are reported as corruption, never as a move error
		if _, err := game.ApplyMove(m.Column, m.Player); err != nil {
			return nil, fmt.Errorf("restore game %s: move %d is not legal: %v", id, i, err)
		}
	}

	if game.Turn != turn || game.Winner != winner || game.Over != over {
		return nil, fmt.Errorf("restore game %s: stored turn=%q winner=%q over=%t, moves give turn=%q winner=%q over=%t",
			id, turn, winner, over, game.Turn, game.Winner, game.Over)
	}
	return game, nil
}

// ApplyMove validates the proposed move and, when legal, drops the disk,
// alternates the turn and settles win or draw. The game is left untouched on rejection.
func (g *Game) ApplyMove(column int, player Player) (Move, error) {
	if err := g.validateMove(column, player); err != nil {
		return Move{}, err
	}

	row := g.Board.ColumnTop(column)
	move := Move{Column: column, Row: row, Player: player}
	g.Moves = append(g.Moves, move)
	g.Board[row][column] = player

	g.Turn = player.Other()

	if g.Board.HasFourInARow(player) {
		g.Winner = player
		g.Over = true
		return move, nil
	}

	if g.Board.IsFull() {
		g.Over = true
	}

	return move, nil
}

func (g *Game) IsFinished() bool {
	return g.Over
}

func (g *Game) IsDraw() bool {
	return g.Over && g.Winner == None
}

func (g *Game) MoveCount() int {
	return len(g.Moves)
}

// Clone creates a deep copy so stores never share the move slice with callers
func (g *Game) Clone() *Game {
	c := *g
	c.Moves = make([]Move, len(g.Moves))
	copy(c.Moves, g.Moves)
	return &c
}
