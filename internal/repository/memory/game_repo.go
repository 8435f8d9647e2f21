package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pufmi/connect4/internal/domain"
)

type entry struct {
	mu        sync.Mutex
	game      *domain.Game
	updatedAt time.Time
}

// GameRepo keeps games in process memory. Each game has its own lock so
// moves on different games never wait on each other.
type GameRepo struct {
	games map[string]*entry
	mu    sync.RWMutex
	now   func() time.Time
}

func NewGameRepo() *GameRepo {
	return &GameRepo{
		games: make(map[string]*entry),
		now:   time.Now,
	}
}

func (r *GameRepo) lookup(gameID string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.games[gameID]
	return e, exists
}

func (r *GameRepo) Save(ctx context.Context, game *domain.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	e, exists := r.games[game.ID]
	if !exists {
		e = &entry{}
		r.games[game.ID] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.game = game.Clone()
	e.updatedAt = r.now()
	return nil
}

func (r *GameRepo) FindByID(ctx context.Context, gameID string) (*domain.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, exists := r.lookup(gameID)
	if !exists {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game == nil {
		return nil, nil
	}
	return e.game.Clone(), nil
}

func (r *GameRepo) FindRecent(ctx context.Context, limit int) ([]*domain.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	entries := make([]*entry, 0, len(r.games))
	for _, e := range r.games {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	games := make([]*domain.Game, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.game != nil {
			games = append(games, e.game.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(games, func(i, j int) bool {
		if games[i].StartTime.Equal(games[j].StartTime) {
			return games[i].ID > games[j].ID
		}
		return games[i].StartTime.After(games[j].StartTime)
	})

	if limit >= 0 && len(games) > limit {
		games = games[:limit]
	}
	return games, nil
}

// Update runs fn against a private copy while holding the game's lock and
// only publishes the copy when fn succeeds.
func (r *GameRepo) Update(ctx context.Context, gameID string, fn func(game *domain.Game) error) (*domain.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e, exists := r.lookup(gameID)
	if !exists {
		return nil, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game == nil {
		return nil, nil
	}

	working := e.game.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}

	e.game = working
	e.updatedAt = r.now()
	return working.Clone(), nil
}

// DeleteFinishedBefore removes finished games last updated before cutoff
// and returns their ids
func (r *GameRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := []string{}
	for gameID, e := range r.games {
		e.mu.Lock()
		expired := e.game != nil && e.game.Over && e.updatedAt.Before(cutoff)
		e.mu.Unlock()

		if expired {
			delete(r.games, gameID)
			deleted = append(deleted, gameID)
		}
	}
	return deleted, nil
}
