package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/pufmi/connect4/internal/domain"
)

const keyPrefix = "game:"

type Cache interface {
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, keys ...string) error
}

// Store is the game store being cached
type Store interface {
	Save(ctx context.Context, game *domain.Game) error
	FindByID(ctx context.Context, gameID string) (*domain.Game, error)
	FindRecent(ctx context.Context, limit int) ([]*domain.Game, error)
	Update(ctx context.Context, gameID string, fn func(game *domain.Game) error) (*domain.Game, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// CachedRepository serves finished games from the cache. A finished game can
// never change again, so its cached copy cannot go stale; games still in
// progress are always read from the store. Moves are always applied by the
// underlying store and the cache never decides a game's state.
type CachedRepository struct {
	store Store
	cache Cache
	ttl   time.Duration
}

func NewCachedRepository(store Store, cache Cache, ttl time.Duration) *CachedRepository {
	return &CachedRepository{store: store, cache: cache, ttl: ttl}
}

func cacheKey(gameID string) string {
	return keyPrefix + gameID
}

// put caches the game only once it is over
func (r *CachedRepository) put(ctx context.Context, game *domain.Game) {
	if !game.Over {
		return
	}
	data, err := json.Marshal(game)
	if err != nil {
		log.Printf("[REDIS] Failed to encode game %s: %v", game.ID, err)
		return
	}
	if err := r.cache.Set(ctx, cacheKey(game.ID), data, r.ttl); err != nil {
		log.Printf("[REDIS] Failed to cache game %s: %v", game.ID, err)
	}
}

func (r *CachedRepository) evict(ctx context.Context, gameIDs ...string) {
	if len(gameIDs) == 0 {
		return
	}
	keys := make([]string, len(gameIDs))
	for i, gameID := range gameIDs {
		keys[i] = cacheKey(gameID)
	}
	if err := r.cache.Del(ctx, keys...); err != nil {
		log.Printf("[REDIS] Failed to evict %d games: %v", len(keys), err)
	}
}

// Save evicts any cached copy since an upsert may replace a finished game
func (r *CachedRepository) Save(ctx context.Context, game *domain.Game) error {
	if err := r.store.Save(ctx, game); err != nil {
		return err
	}
	r.evict(ctx, game.ID)
	return nil
}

func (r *CachedRepository) FindByID(ctx context.Context, gameID string) (*domain.Game, error) {
	data, err := r.cache.Get(ctx, cacheKey(gameID))
	if err == nil {
		var game domain.Game
		if err := json.Unmarshal(data, &game); err == nil && game.Over {
			return &game, nil
		}
		log.Printf("[REDIS] Discarding unusable entry for game %s", gameID)
		r.evict(ctx, gameID)
	} else if !errors.Is(err, ErrCacheMiss) {
		log.Printf("[REDIS] Cache read failed for game %s, falling back to store: %v", gameID, err)
	}

	game, err := r.store.FindByID(ctx, gameID)
	if err != nil || game == nil {
		return game, err
	}
	r.put(ctx, game)
	return game, nil
}

func (r *CachedRepository) FindRecent(ctx context.Context, limit int) ([]*domain.Game, error) {
	return r.store.FindRecent(ctx, limit)
}

// Update caches the final state when the move ends the game
func (r *CachedRepository) Update(ctx context.Context, gameID string, fn func(game *domain.Game) error) (*domain.Game, error) {
	game, err := r.store.Update(ctx, gameID, fn)
	if err != nil || game == nil {
		return game, err
	}
	r.put(ctx, game)
	return game, nil
}

func (r *CachedRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	deleted, err := r.store.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	r.evict(ctx, deleted...)
	return deleted, nil
}
