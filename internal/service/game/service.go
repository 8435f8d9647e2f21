package game

import (
	"context"
	"fmt"
	"log"

	"github.com/pufmi/connect4/internal/domain"
)

func (s *Service) StartNewGame(ctx context.Context) (*domain.Game, error) {
	game := domain.NewGame(s.newID(), s.now())

	if err := s.Repo.Save(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to save new game: %w", err)
	}

	log.Printf("[GAME] Started game %s, %s moves first", game.ID, game.Turn)
	return game, nil
}

// ApplyMove loads, validates, mutates and persists the game in a single store
// transaction so concurrent moves on one game can never both succeed.
func (s *Service) ApplyMove(ctx context.Context, gameID string, column int, player domain.Player) (*domain.Game, error) {
	var move domain.Move

	game, err := s.Repo.Update(ctx, gameID, func(g *domain.Game) error {
		m, err := g.ApplyMove(column, player)
		if err != nil {
			return err
		}
		move = m
		return nil
	})
	if err != nil {
		if domain.IsRejection(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to apply move to game %s: %w", gameID, err)
	}
	if game == nil {
		return nil, domain.NewGameNotFound(gameID)
	}

	log.Printf("[GAME] Game %s: %s dropped into column %d (row %d)", gameID, move.Player, move.Column, move.Row)

	if game.Over {
		if game.Winner != domain.None {
			log.Printf("[GAME] Game %s won by %s after %d moves", gameID, game.Winner, game.MoveCount())
		} else {
			log.Printf("[GAME] Game %s ended in a draw", gameID)
		}
	}

	return game, nil
}

func (s *Service) GetGame(ctx context.Context, gameID string) (*domain.Game, error) {
	game, err := s.Repo.FindByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game %s: %w", gameID, err)
	}
	if game == nil {
		return nil, domain.NewGameNotFound(gameID)
	}
	return game, nil
}

// ListRecentGames returns the most recently started games first.
// a non-positive limit falls back to DefaultRecentLimit.
func (s *Service) ListRecentGames(ctx context.Context, limit int) ([]*domain.Game, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}

	games, err := s.Repo.FindRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent games: %w", err)
	}
	if games == nil {
		games = []*domain.Game{}
	}
	return games, nil
}
