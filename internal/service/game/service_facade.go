package game

import (
	"context"
	"time"

	"github.com/pufmi/connect4/internal/domain"
	"github.com/pufmi/connect4/pkg/uid"
)

const (
	DefaultRecentLimit = 10
	MaxRecentLimit     = 100
)

// GameRepository is the persistence capability the service needs.
// FindByID and Update return (nil, nil) when the game does not exist.
// Update must run fn and persist its result as one atomic unit; if fn
// returns an error nothing is written and the error is returned as is.
type GameRepository interface {
	Save(ctx context.Context, game *domain.Game) error
	FindByID(ctx context.Context, gameID string) (*domain.Game, error)
	FindRecent(ctx context.Context, limit int) ([]*domain.Game, error)
	Update(ctx context.Context, gameID string, fn func(game *domain.Game) error) (*domain.Game, error)
}

// Service is the entry point for game logic (facade)
type Service struct {
	Repo  GameRepository
	now   func() time.Time
	newID func() string
}

func NewService(repo GameRepository) *Service {
	return &Service{
		Repo:  repo,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uid.GenerateGameID,
	}
}
