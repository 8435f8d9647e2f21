package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pufmi/connect4/internal/domain"
	"github.com/pufmi/connect4/internal/repository/memory"
	"github.com/pufmi/connect4/internal/repository/repotest"
)

type fakeCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	failing bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string][]byte)}
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("connection refused")
	}
	c.values[key] = value
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return nil, errors.New("connection refused")
	}
	value, ok := c.values[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return value, nil
}

func (c *fakeCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("connection refused")
	}
	for _, key := range keys {
		delete(c.values, key)
	}
	return nil
}

// countingStore records how often reads reach the underlying store
type countingStore struct {
	*memory.GameRepo
	finds atomic.Int32
}

func (s *countingStore) FindByID(ctx context.Context, gameID string) (*domain.Game, error) {
	s.finds.Add(1)
	return s.GameRepo.FindByID(ctx, gameID)
}

// pausingStore holds its first FindByID after loading until release is closed
type pausingStore struct {
	*memory.GameRepo
	paused  atomic.Bool
	loaded  chan struct{}
	release chan struct{}
}

func (s *pausingStore) FindByID(ctx context.Context, gameID string) (*domain.Game, error) {
	game, err := s.GameRepo.FindByID(ctx, gameID)
	if s.paused.CompareAndSwap(false, true) {
		close(s.loaded)
		<-s.release
	}
	return game, err
}

func drop(column int, player domain.Player) func(*domain.Game) error {
	return func(g *domain.Game) error {
		_, err := g.ApplyMove(column, player)
		return err
	}
}

// finishGame plays a horizontal win for Ruby through the repository
func finishGame(t *testing.T, repo *CachedRepository, gameID string) *domain.Game {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, domain.NewGame(gameID, time.Now().UTC())))

	var game *domain.Game
	players := []domain.Player{domain.Ruby, domain.Blue}
	for i, column := range []int{0, 6, 1, 6, 2, 6, 3} {
		var err error
		game, err = repo.Update(ctx, gameID, drop(column, players[i%2]))
		require.NoError(t, err)
	}
	require.True(t, game.Over)
	return game
}

func TestCachedRepository_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repotest.Repository {
		return NewCachedRepository(memory.NewGameRepo(), newFakeCache(), time.Minute)
	})
}

func TestCachedRepository_FindByID(t *testing.T) {
	t.Run("Finished game is served from the cache", func(t *testing.T) {
		ctx := context.Background()
		store := &countingStore{GameRepo: memory.NewGameRepo()}
		cache := newFakeCache()
		repo := NewCachedRepository(store, cache, time.Minute)
		finished := finishGame(t, repo, "g1")

		first, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		second, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)

		assert.Zero(t, store.finds.Load())
		repotest.RequireSameGame(t, finished, first)
		repotest.RequireSameGame(t, first, second)
		assert.Contains(t, cache.values, "game:g1")
	})

	t.Run("Game in progress is always read from the store", func(t *testing.T) {
		ctx := context.Background()
		store := &countingStore{GameRepo: memory.NewGameRepo()}
		cache := newFakeCache()
		repo := NewCachedRepository(store, cache, time.Minute)
		require.NoError(t, repo.Save(ctx, domain.NewGame("g1", time.Now().UTC())))

		_, err := repo.FindByID(ctx, "g1")
		require.NoError(t, err)
		_, err = repo.FindByID(ctx, "g1")
		require.NoError(t, err)

		assert.Equal(t, int32(2), store.finds.Load())
		assert.Empty(t, cache.values)
	})

	t.Run("Unknown game is not cached", func(t *testing.T) {
		cache := newFakeCache()
		repo := NewCachedRepository(memory.NewGameRepo(), cache, time.Minute)

		game, err := repo.FindByID(context.Background(), "missing")

		require.NoError(t, err)
		assert.Nil(t, game)
		assert.Empty(t, cache.values)
	})

	t.Run("Cache outage falls back to the store", func(t *testing.T) {
		ctx := context.Background()
		store := &countingStore{GameRepo: memory.NewGameRepo()}
		cache := newFakeCache()
		repo := NewCachedRepository(store, cache, time.Minute)
		finishGame(t, repo, "g1")
		cache.failing = true

		game, err := repo.FindByID(ctx, "g1")

		require.NoError(t, err)
		require.NotNil(t, game)
		assert.Equal(t, int32(1), store.finds.Load())
	})

	t.Run("Undecodable entry is dropped", func(t *testing.T) {
		ctx := context.Background()
		store := &countingStore{GameRepo: memory.NewGameRepo()}
		cache := newFakeCache()
		repo := NewCachedRepository(store, cache, time.Minute)
		require.NoError(t, store.Save(ctx, domain.NewGame("g1", time.Now())))
		cache.values["game:g1"] = []byte("garbage")

		game, err := repo.FindByID(ctx, "g1")

		require.NoError(t, err)
		assert.Equal(t, "g1", game.ID)
		assert.NotContains(t, cache.values, "game:g1")
	})

	t.Run("Cached game in progress is ignored", func(t *testing.T) {
		ctx := context.Background()
		store := &countingStore{GameRepo: memory.NewGameRepo()}
		cache := newFakeCache()
		repo := NewCachedRepository(store, cache, time.Minute)
		game := domain.NewGame("g1", time.Now().UTC())
		require.NoError(t, store.Save(ctx, game))
		data, err := json.Marshal(game)
		require.NoError(t, err)
		cache.values["game:g1"] = data
		_, err = store.Update(ctx, "g1", drop(3, domain.Ruby))
		require.NoError(t, err)

		loaded, err := repo.FindByID(ctx, "g1")

		require.NoError(t, err)
		assert.Len(t, loaded.Moves, 1)
		assert.Equal(t, domain.Blue, loaded.Turn)
		assert.NotContains(t, cache.values, "game:g1")
	})
}

func TestCachedRepository_ReadRacingAMove(t *testing.T) {
	ctx := context.Background()
	store := &pausingStore{
		GameRepo: memory.NewGameRepo(),
		loaded:   make(chan struct{}),
		release:  make(chan struct{}),
	}
	cache := newFakeCache()
	repo := NewCachedRepository(store, cache, time.Minute)
	require.NoError(t, repo.Save(ctx, domain.NewGame("g1", time.Now().UTC())))

	// Given a reader that loaded the game before the move committed
	earlier := make(chan *domain.Game, 1)
	go func() {
		game, err := repo.FindByID(ctx, "g1")
		assert.NoError(t, err)
		earlier <- game
	}()
	<-store.loaded

	// When the move commits and the slow reader finishes afterwards
	_, err := repo.Update(ctx, "g1", drop(3, domain.Ruby))
	require.NoError(t, err)
	close(store.release)
	assert.Empty(t, (<-earlier).Moves)

	// Then later reads still see the move
	current, err := repo.FindByID(ctx, "g1")
	require.NoError(t, err)
	assert.Len(t, current.Moves, 1)
	assert.Equal(t, domain.Blue, current.Turn)
	assert.NotContains(t, cache.values, "game:g1")
}

func TestCachedRepository_Update(t *testing.T) {
	t.Run("Winning move caches the final state", func(t *testing.T) {
		ctx := context.Background()
		store := &countingStore{GameRepo: memory.NewGameRepo()}
		cache := newFakeCache()
		repo := NewCachedRepository(store, cache, time.Minute)
		require.NoError(t, repo.Save(ctx, domain.NewGame("g1", time.Now().UTC())))

		_, err := repo.Update(ctx, "g1", drop(4, domain.Ruby))
		require.NoError(t, err)
		assert.NotContains(t, cache.values, "game:g1")

		finished := finishGame(t, repo, "g2")
		require.Contains(t, cache.values, "game:g2")
		loaded, err := repo.FindByID(ctx, "g2")
		require.NoError(t, err)
		assert.Zero(t, store.finds.Load())
		repotest.RequireSameGame(t, finished, loaded)
	})

	t.Run("Rejected move keeps the cached game", func(t *testing.T) {
		ctx := context.Background()
		cache := newFakeCache()
		repo := NewCachedRepository(memory.NewGameRepo(), cache, time.Minute)
		finishGame(t, repo, "g1")

		_, err := repo.Update(ctx, "g1", drop(5, domain.Blue))

		assert.ErrorIs(t, err, domain.ErrGameOver)
		assert.Contains(t, cache.values, "game:g1")
	})
}

func TestCachedRepository_DeleteFinishedBeforeEvicts(t *testing.T) {
	ctx := context.Background()
	cache := newFakeCache()
	repo := NewCachedRepository(memory.NewGameRepo(), cache, time.Minute)
	finishGame(t, repo, "g1")
	require.NoError(t, repo.Save(ctx, domain.NewGame("g2", time.Now().UTC())))
	require.Contains(t, cache.values, "game:g1")

	deleted, err := repo.DeleteFinishedBefore(ctx, time.Now().Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, deleted)
	assert.NotContains(t, cache.values, "game:g1")
	game, err := repo.FindByID(ctx, "g1")
	require.NoError(t, err)
	assert.Nil(t, game)
}
