// Package repotest holds the behaviour every game store must share.
// Store packages run it from their own tests against a fresh store.
package repotest

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
	"github.com/pufmi/connect4/pkg/uid"
)

type Repository interface {
	Save(ctx context.Context, game *domain.Game) error
	FindByID(ctx context.Context, gameID string) (*domain.Game, error)
	FindRecent(ctx context.Context, limit int) ([]*domain.Game, error)
	Update(ctx context.Context, gameID string, fn func(game *domain.Game) error) (*domain.Game, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newGame(offset time.Duration) *domain.Game {
	return domain.NewGame(uid.GenerateGameID(), baseTime.Add(offset))
}

// RequireSameGame compares games field by field; stores may round start times
func RequireSameGame(t *testing.T, want, got *domain.Game) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Board, got.Board)
	assert.Equal(t, want.Moves, got.Moves)
	assert.Equal(t, want.Turn, got.Turn)
	assert.Equal(t, want.Winner, got.Winner)
	assert.Equal(t, want.Over, got.Over)
	assert.WithinDuration(t, want.StartTime, got.StartTime, time.Millisecond)
}

// Run exercises the store contract. newRepo must return an empty store.
func Run(t *testing.T, newRepo func(t *testing.T) Repository) {
	t.Run("Save and FindByID", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		// Given: a saved game with moves
		game := newGame(0)
		_, err := game.ApplyMove(3, domain.Ruby)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, game))

		// When: it is loaded back
		loaded, err := repo.FindByID(ctx, game.ID)

		// Then: every field survives and the board is rebuilt
		require.NoError(t, err)
		RequireSameGame(t, game, loaded)
	})

	t.Run("FindByID returns nil for an unknown game", func(t *testing.T) {
		repo := newRepo(t)

		loaded, err := repo.FindByID(context.Background(), uid.GenerateGameID())

		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Save is an idempotent upsert", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		game := newGame(0)

		require.NoError(t, repo.Save(ctx, game))
		require.NoError(t, repo.Save(ctx, game))

		_, err := game.ApplyMove(0, domain.Ruby)
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, game))

		loaded, err := repo.FindByID(ctx, game.ID)
		require.NoError(t, err)
		RequireSameGame(t, game, loaded)

		recent, err := repo.FindRecent(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, recent, 1)
	})

	t.Run("FindRecent orders by start time descending", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		var ids []string
		for i := 0; i < 5; i++ {
			game := newGame(time.Duration(i) * time.Minute)
			require.NoError(t, repo.Save(ctx, game))
			ids = append(ids, game.ID)
		}

		recent, err := repo.FindRecent(ctx, 3)

		require.NoError(t, err)
		require.Len(t, recent, 3)
		assert.Equal(t, ids[4], recent[0].ID)
		assert.Equal(t, ids[3], recent[1].ID)
		assert.Equal(t, ids[2], recent[2].ID)
	})

	t.Run("Update persists the mutated game", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		game := newGame(0)
		require.NoError(t, repo.Save(ctx, game))

		updated, err := repo.Update(ctx, game.ID, func(g *domain.Game) error {
			_, err := g.ApplyMove(5, domain.Ruby)
			return err
		})

		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, domain.Blue, updated.Turn)
		assert.Equal(t, domain.Ruby, updated.Board[0][5])

		loaded, err := repo.FindByID(ctx, game.ID)
		require.NoError(t, err)
		RequireSameGame(t, updated, loaded)
	})

	t.Run("Update writes nothing when fn fails", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		game := newGame(0)
		require.NoError(t, repo.Save(ctx, game))

		_, err := repo.Update(ctx, game.ID, func(g *domain.Game) error {
			_, err := g.ApplyMove(1, domain.Ruby)
			require.NoError(t, err)
			_, err = g.ApplyMove(1, domain.Ruby)
			return err
		})

		assert.ErrorIs(t, err, domain.ErrWrongTurn)
		loaded, err := repo.FindByID(ctx, game.ID)
		require.NoError(t, err)
		assert.Empty(t, loaded.Moves)
		assert.Equal(t, domain.Ruby, loaded.Turn)
	})

	t.Run("Update on an unknown game never calls fn", func(t *testing.T) {
		repo := newRepo(t)
		called := false

		updated, err := repo.Update(context.Background(), uid.GenerateGameID(), func(*domain.Game) error {
			called = true
			return nil
		})

		require.NoError(t, err)
		assert.Nil(t, updated)
		assert.False(t, called)
	})

	t.Run("Concurrent updates of one game serialize", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)
		game := newGame(0)
		require.NoError(t, repo.Save(ctx, game))

		const attempts = 8
		var wg sync.WaitGroup
		errs := make(chan error, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(column int) {
				defer wg.Done()
				_, err := repo.Update(ctx, game.ID, func(g *domain.Game) error {
					_, err := g.ApplyMove(column, domain.Ruby)
					return err
				})
				errs <- err
			}(i % domain.Columns)
		}
		wg.Wait()
		close(errs)

		accepted := 0
		for err := range errs {
			if err == nil {
				accepted++
				continue
			}
			if !errors.Is(err, domain.ErrWrongTurn) {
				assert.Fail(t, fmt.Sprintf("unexpected error: %v", err))
			}
		}
		assert.Equal(t, 1, accepted)

		loaded, err := repo.FindByID(ctx, game.ID)
		require.NoError(t, err)
		assert.Len(t, loaded.Moves, 1)
		assert.Equal(t, domain.Blue, loaded.Turn)
	})

	t.Run("DeleteFinishedBefore only removes finished games", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		finished := newGame(0)
		for _, column := range []int{0, 6, 1, 6, 2, 6, 3} {
			_, err := finished.ApplyMove(column, finished.Turn)
			require.NoError(t, err)
		}
		require.True(t, finished.Over)
		active := newGame(time.Minute)
		require.NoError(t, repo.Save(ctx, finished))
		require.NoError(t, repo.Save(ctx, active))

		deleted, err := repo.DeleteFinishedBefore(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Empty(t, deleted)

		deleted, err = repo.DeleteFinishedBefore(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, []string{finished.ID}, deleted)

		loaded, err := repo.FindByID(ctx, finished.ID)
		require.NoError(t, err)
		assert.Nil(t, loaded)

		loaded, err = repo.FindByID(ctx, active.ID)
		require.NoError(t, err)
		assert.NotNil(t, loaded)
	})
}
