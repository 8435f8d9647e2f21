package domain

import (
	"errors"
	"fmt"
)

// basic errors every rejection is classified by
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrGameNotFound  Error = "game not found"
	ErrGameOver      Error = "game over"
	ErrWrongTurn     Error = "wrong turn"
	ErrColumnFull    Error = "column full"
	ErrInvalidColumn Error = "invalid column"
)

// GameError is a rejected lookup or move. Kind is one of the Err* constants.
type GameError struct {
	GameID  string
	Kind    Error
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

func (e *GameError) Unwrap() error {
	return e.Kind
}

func NewGameNotFound(gameID string) *GameError {
	return &GameError{
		GameID:  gameID,
		Kind:    ErrGameNotFound,
		Message: fmt.Sprintf("Game [%s] not found", gameID),
	}
}

// IsRejection reports whether err is an expected rejection rather than a failure
func IsRejection(err error) bool {
	var gameErr *GameError
	return errors.As(err, &gameErr)
}

func (g *Game) validateMove(column int, player Player) error {
	if g.Over {
		return &GameError{
			GameID:  g.ID,
			Kind:    ErrGameOver,
			Message: fmt.Sprintf("Move of player [%s] is not possible. Game [%s] is over", player, g.ID),
		}
	}

	if player != g.Turn {
		return &GameError{
			GameID: g.ID,
			Kind:   ErrWrongTurn,
			Message: fmt.Sprintf("Move of player [%s] is not possible. In game [%s] it is player [%s] turn",
				player, g.ID, g.Turn),
		}
	}

	// range is checked before the column can be indexed
	if !IsValidColumn(column) {
		return &GameError{
			GameID: g.ID,
			Kind:   ErrInvalidColumn,
			Message: fmt.Sprintf("Move of player [%s] is not possible. Column [%d] of game [%s] is outside [0, %d)",
				player, column, g.ID, Columns),
		}
	}

	if g.Board.IsColumnFull(column) {
		return &GameError{
			GameID: g.ID,
			Kind:   ErrColumnFull,
			Message: fmt.Sprintf("Move of player [%s] is not possible. Column [%d] of game [%s] is full",
				player, column, g.ID),
		}
	}

	return nil
}
