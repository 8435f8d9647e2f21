// Package record converts games to and from their persisted row form.
// The board is never stored; it is rebuilt from the move list on load.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pufmi/connect4/internal/domain"
)

var ErrConcurrentUpdate = errors.New("game was modified concurrently")

type Game struct {
	GameID    string
	Moves     []byte
	Turn      string
	Winner    string
	IsOver    bool
	StartTime time.Time
}

func FromGame(game *domain.Game) (Game, error) {
	moves := game.Moves
	if moves == nil {
		moves = []domain.Move{}
	}
	movesJSON, err := json.Marshal(moves)
	if err != nil {
		return Game{}, fmt.Errorf("failed to marshal moves: %w", err)
	}

	return Game{
		GameID:    game.ID,
		Moves:     movesJSON,
		Turn:      game.Turn.String(),
		Winner:    game.Winner.String(),
		IsOver:    game.Over,
		StartTime: game.StartTime.UTC(),
	}, nil
}

func (r Game) ToGame() (*domain.Game, error) {
	var moves []domain.Move
	if len(r.Moves) > 0 {
		if err := json.Unmarshal(r.Moves, &moves); err != nil {
			return nil, fmt.Errorf("failed to unmarshal moves of game %s: %w", r.GameID, err)
		}
	}

	turn, err := domain.ParsePlayer(r.Turn)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", r.GameID, err)
	}
	winner, err := domain.ParsePlayer(r.Winner)
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", r.GameID, err)
	}

	return domain.Restore(r.GameID, moves, turn, winner, r.IsOver, r.StartTime.UTC())
}
