package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pufmi/connect4/internal/domain"
	"github.com/pufmi/connect4/internal/repository/repotest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "games.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestStore_Contract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repotest.Repository {
		return openTempStore(t)
	})
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")

	require.Error(t, err)
}

func TestOpen_ReappliesSchemaOnExistingFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "games.db")

	store, err := Open(path)
	require.NoError(t, err)
	game := domain.NewGame("g1", time.Now())
	require.NoError(t, store.Save(ctx, game))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.FindByID(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "g1", loaded.ID)
}

func TestStore_RejectsCorruptHistory(t *testing.T) {
	ctx := context.Background()
	store := openTempStore(t)

	_, err := store.sqlDB.ExecContext(ctx,
		`INSERT INTO games (game_id, moves, turn, winner, is_over, start_time, updated_at) VALUES ('bad', '[{"column":2,"row":4,"player":"RUBY"}]', 'BLUE', '', 0, 0, 0)`)
	require.NoError(t, err)

	_, err = store.FindByID(ctx, "bad")

	require.Error(t, err)
}

func TestClose_NilStore(t *testing.T) {
	var store *Store

	assert.NoError(t, store.Close())
}
