package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pufmi/connect4/internal/domain"
	"github.com/pufmi/connect4/internal/repository/memory"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(memory.NewGameRepo())

	clock := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	seq := 0
	var mu sync.Mutex
	svc.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}
	svc.newID = func() string {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return fmt.Sprintf("game-%02d", seq)
	}
	return svc
}

// failingRepo fails every call with the same error
type failingRepo struct{ err error }

func (r failingRepo) Save(context.Context, *domain.Game) error { return r.err }
func (r failingRepo) FindByID(context.Context, string) (*domain.Game, error) {
	return nil, r.err
}
func (r failingRepo) FindRecent(context.Context, int) ([]*domain.Game, error) {
	return nil, r.err
}
func (r failingRepo) Update(context.Context, string, func(*domain.Game) error) (*domain.Game, error) {
	return nil, r.err
}

func TestService_StartNewGame(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	game, err := svc.StartNewGame(ctx)

	require.NoError(t, err)
	assert.Equal(t, "game-01", game.ID)
	assert.Equal(t, domain.InitialPlayer, game.Turn)
	assert.False(t, game.Over)

	stored, err := svc.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, game.ID, stored.ID)
}

func TestService_ApplyMove(t *testing.T) {
	t.Run("Accepted moves are persisted", func(t *testing.T) {
		ctx := context.Background()
		svc := newTestService(t)
		game, err := svc.StartNewGame(ctx)
		require.NoError(t, err)

		updated, err := svc.ApplyMove(ctx, game.ID, 3, domain.Ruby)

		require.NoError(t, err)
		assert.Equal(t, domain.Blue, updated.Turn)
		stored, err := svc.GetGame(ctx, game.ID)
		require.NoError(t, err)
		assert.Equal(t, updated.Moves, stored.Moves)
	})

	t.Run("Unknown game is GameNotFound", func(t *testing.T) {
		svc := newTestService(t)

		_, err := svc.ApplyMove(context.Background(), "nope", 0, domain.Ruby)

		assert.ErrorIs(t, err, domain.ErrGameNotFound)
		var gameErr *domain.GameError
		require.True(t, errors.As(err, &gameErr))
		assert.Equal(t, "nope", gameErr.GameID)
	})

	t.Run("Rejections are returned unwrapped and nothing is stored", func(t *testing.T) {
		ctx := context.Background()
		svc := newTestService(t)
		game, err := svc.StartNewGame(ctx)
		require.NoError(t, err)

		_, err = svc.ApplyMove(ctx, game.ID, domain.Columns, domain.Ruby)

		var gameErr *domain.GameError
		require.True(t, errors.As(err, &gameErr))
		assert.Equal(t, domain.ErrInvalidColumn, gameErr.Kind)
		assert.Equal(t, game.ID, gameErr.GameID)
		stored, err := svc.GetGame(ctx, game.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Moves)
	})

	t.Run("A won game rejects every further move", func(t *testing.T) {
		ctx := context.Background()
		svc := newTestService(t)
		game, err := svc.StartNewGame(ctx)
		require.NoError(t, err)

		var last *domain.Game
		for _, column := range []int{0, 6, 1, 6, 2, 6, 3} {
			current, err := svc.GetGame(ctx, game.ID)
			require.NoError(t, err)
			last, err = svc.ApplyMove(ctx, game.ID, column, current.Turn)
			require.NoError(t, err)
		}
		require.True(t, last.Over)
		assert.Equal(t, domain.Ruby, last.Winner)

		_, err = svc.ApplyMove(ctx, game.ID, 4, last.Turn)

		assert.ErrorIs(t, err, domain.ErrGameOver)
	})

	t.Run("Infrastructure errors are wrapped", func(t *testing.T) {
		svc := NewService(failingRepo{err: errors.New("db down")})

		_, err := svc.ApplyMove(context.Background(), "g1", 0, domain.Ruby)

		require.Error(t, err)
		assert.False(t, domain.IsRejection(err))
		assert.Contains(t, err.Error(), "db down")
	})
}

func TestService_ApplyMove_ConcurrentSameGame(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	game, err := svc.StartNewGame(ctx)
	require.NoError(t, err)

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(column int) {
			defer wg.Done()
			_, err := svc.ApplyMove(ctx, game.ID, column, domain.Ruby)
			results <- err
		}(i % domain.Columns)
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrWrongTurn)
	}
	assert.Equal(t, 1, accepted)

	stored, err := svc.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Moves, 1)
}

func TestService_ApplyMove_IndependentGames(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	var ids []string
	for i := 0; i < 5; i++ {
		game, err := svc.StartNewGame(ctx)
		require.NoError(t, err)
		ids = append(ids, game.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for _, column := range []int{0, 1, 0, 1, 0, 1, 0} {
				current, err := svc.GetGame(ctx, id)
				assert.NoError(t, err)
				_, err = svc.ApplyMove(ctx, id, column, current.Turn)
				assert.NoError(t, err)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		game, err := svc.GetGame(ctx, id)
		require.NoError(t, err)
		assert.True(t, game.Over)
		assert.Equal(t, domain.Ruby, game.Winner)
	}
}

func TestService_GetGame(t *testing.T) {
	t.Run("Missing game", func(t *testing.T) {
		svc := newTestService(t)

		_, err := svc.GetGame(context.Background(), "missing")

		assert.ErrorIs(t, err, domain.ErrGameNotFound)
		assert.Contains(t, err.Error(), "missing")
	})

	t.Run("Store failure is not a rejection", func(t *testing.T) {
		svc := NewService(failingRepo{err: errors.New("timeout")})

		_, err := svc.GetGame(context.Background(), "g1")

		require.Error(t, err)
		assert.False(t, domain.IsRejection(err))
	})
}

func TestService_ListRecentGames(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for i := 0; i < 12; i++ {
		_, err := svc.StartNewGame(ctx)
		require.NoError(t, err)
	}

	t.Run("Default limit is 10, newest first", func(t *testing.T) {
		games, err := svc.ListRecentGames(ctx, 0)

		require.NoError(t, err)
		require.Len(t, games, DefaultRecentLimit)
		assert.Equal(t, "game-12", games[0].ID)
		assert.Equal(t, "game-03", games[9].ID)
	})

	t.Run("Explicit limit", func(t *testing.T) {
		games, err := svc.ListRecentGames(ctx, 2)

		require.NoError(t, err)
		require.Len(t, games, 2)
		assert.Equal(t, "game-11", games[1].ID)
	})

	t.Run("Empty store gives an empty list", func(t *testing.T) {
		games, err := newTestService(t).ListRecentGames(ctx, 5)

		require.NoError(t, err)
		assert.NotNil(t, games)
		assert.Empty(t, games)
	})
}
