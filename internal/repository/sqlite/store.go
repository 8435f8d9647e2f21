// Package sqlite provides a SQLite-backed game store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pufmi/connect4/internal/domain"
	"github.com/pufmi/connect4/internal/repository/record"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

const gameColumns = `game_id, moves, turn, winner, is_over, start_time`

// Store persists games in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite game store and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	// immediate transactions take the write lock on BEGIN, which serializes
	// read-modify-write cycles on the same database
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner, extra ...any) (*domain.Game, error) {
	var (
		rec       record.Game
		moves     string
		isOver    int
		startTime int64
	)
	dest := append([]any{&rec.GameID, &moves, &rec.Turn, &rec.Winner, &isOver, &startTime}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	rec.Moves = []byte(moves)
	rec.IsOver = isOver != 0
	rec.StartTime = fromMillis(startTime)
	return rec.ToGame()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Save inserts or replaces one game.
func (s *Store) Save(ctx context.Context, game *domain.Game) error {
	rec, err := record.FromGame(game)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
	INSERT INTO games (game_id, moves, turn, winner, is_over, start_time, updated_at, version)
	VALUES (?, ?, ?, ?, ?, ?, ?, 0)
	ON CONFLICT (game_id) DO UPDATE SET
		moves = excluded.moves,
		turn = excluded.turn,
		winner = excluded.winner,
		is_over = excluded.is_over,
		updated_at = excluded.updated_at,
		version = games.version + 1`,
		rec.GameID,
		string(rec.Moves),
		rec.Turn,
		rec.Winner,
		boolToInt(rec.IsOver),
		toMillis(rec.StartTime),
		toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("upsert game %s: %w", game.ID, err)
	}
	return nil
}

// FindByID returns nil without error when the game does not exist.
func (s *Store) FindByID(ctx context.Context, gameID string) (*domain.Game, error) {
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE game_id = ?`, gameID)
	game, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", gameID, err)
	}
	return game, nil
}

// FindRecent lists games by start time, newest first.
func (s *Store) FindRecent(ctx context.Context, limit int) ([]*domain.Game, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games ORDER BY start_time DESC, game_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.Game, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game rows: %w", err)
	}
	return games, nil
}

// Update runs fn inside one transaction. The version column guards the
// write so a stale snapshot can never overwrite a newer state.
func (s *Store) Update(ctx context.Context, gameID string, fn func(game *domain.Game) error) (*domain.Game, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var version int64
	row := tx.QueryRowContext(ctx, `SELECT `+gameColumns+`, version FROM games WHERE game_id = ?`, gameID)
	game, err := scanGame(row, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameID, err)
	}

	if err := fn(game); err != nil {
		return nil, err
	}

	rec, err := record.FromGame(game)
	if err != nil {
		return nil, err
	}
	result, err := tx.ExecContext(ctx, `
	UPDATE games
	SET moves = ?, turn = ?, winner = ?, is_over = ?, updated_at = ?, version = version + 1
	WHERE game_id = ? AND version = ?`,
		string(rec.Moves),
		rec.Turn,
		rec.Winner,
		boolToInt(rec.IsOver),
		toMillis(s.now()),
		gameID,
		version,
	)
	if err != nil {
		return nil, fmt.Errorf("update game %s: %w", gameID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update game %s: %w", gameID, err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("update game %s: %w", gameID, record.ErrConcurrentUpdate)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit game %s: %w", gameID, err)
	}
	return game, nil
}

// DeleteFinishedBefore removes finished games not touched since cutoff.
func (s *Store) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`DELETE FROM games WHERE is_over = 1 AND updated_at < ? RETURNING game_id`, toMillis(cutoff))
	if err != nil {
		return nil, fmt.Errorf("delete finished games: %w", err)
	}
	defer rows.Close()

	deleted := []string{}
	for rows.Next() {
		var gameID string
		if err := rows.Scan(&gameID); err != nil {
			return nil, fmt.Errorf("scan deleted game id: %w", err)
		}
		deleted = append(deleted, gameID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete finished games: %w", err)
	}
	return deleted, nil
}
