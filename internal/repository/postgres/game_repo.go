package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pufmi/connect4/internal/domain"
	"github.com/pufmi/connect4/internal/repository/record"
)

type GameRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{DB: db, now: time.Now}
}

const gameSelectFields = `game_id, moves, turn, winner, is_over, start_time`

// scanGame is a helper that scans a row into a domain game
func scanGame(row interface{ Scan(dest ...any) error }) (*domain.Game, error) {
	var rec record.Game
	err := row.Scan(
		&rec.GameID,
		&rec.Moves,
		&rec.Turn,
		&rec.Winner,
		&rec.IsOver,
		&rec.StartTime,
	)
	if err != nil {
		return nil, err
	}
	return rec.ToGame()
}

// Save inserts or updates the game record (UPSERT keyed by game_id)
func (r *GameRepo) Save(ctx context.Context, game *domain.Game) error {
	rec, err := record.FromGame(game)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO games (game_id, moves, turn, winner, is_over, start_time, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (game_id) DO UPDATE SET
		moves = EXCLUDED.moves,
		turn = EXCLUDED.turn,
		winner = EXCLUDED.winner,
		is_over = EXCLUDED.is_over,
		updated_at = EXCLUDED.updated_at,
		version = games.version + 1;
	`
	_, err = r.DB.ExecContext(ctx, query, rec.GameID, string(rec.Moves), rec.Turn, rec.Winner, rec.IsOver, rec.StartTime, r.now())
	if err != nil {
		return fmt.Errorf("failed to upsert game record: %w", err)
	}
	return nil
}

// FindByID retrieves a game by its identifier, nil if it does not exist
func (r *GameRepo) FindByID(ctx context.Context, gameID string) (*domain.Game, error) {
	query := `SELECT ` + gameSelectFields + ` FROM games WHERE game_id = $1;`

	game, err := scanGame(r.DB.QueryRowContext(ctx, query, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game by ID: %w", err)
	}
	return game, nil
}

// FindRecent retrieves the most recently started games
func (r *GameRepo) FindRecent(ctx context.Context, limit int) ([]*domain.Game, error) {
	query := `
	SELECT ` + gameSelectFields + `
	FROM games
	ORDER BY start_time DESC, game_id DESC
	LIMIT $1;
	`

	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.Game, 0, limit)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game row: %w", err)
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate game rows: %w", err)
	}
	return games, nil
}

// Update locks the game row for the duration of the transaction so
// concurrent moves against the same game are applied one after another
func (r *GameRepo) Update(ctx context.Context, gameID string, fn func(game *domain.Game) error) (*domain.Game, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	query := `SELECT ` + gameSelectFields + ` FROM games WHERE game_id = $1 FOR UPDATE;`
	game, err := scanGame(tx.QueryRowContext(ctx, query, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock game: %w", err)
	}

	if err := fn(game); err != nil {
		return nil, err
	}

	rec, err := record.FromGame(game)
	if err != nil {
		return nil, err
	}

	update := `
	UPDATE games
	SET moves = $2, turn = $3, winner = $4, is_over = $5, updated_at = $6, version = version + 1
	WHERE game_id = $1;
	`
	_, err = tx.ExecContext(ctx, update, gameID, string(rec.Moves), rec.Turn, rec.Winner, rec.IsOver, r.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update game record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return game, nil
}

// DeleteFinishedBefore deletes finished games not updated since cutoff
func (r *GameRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	query := `
	DELETE FROM games
	WHERE is_over = TRUE
	AND updated_at < $1
	RETURNING game_id;
	`
	rows, err := r.DB.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to cleanup finished games: %w", err)
	}
	defer rows.Close()

	deleted := []string{}
	for rows.Next() {
		var gameID string
		if err := rows.Scan(&gameID); err != nil {
			return nil, fmt.Errorf("failed to scan deleted game id: %w", err)
		}
		deleted = append(deleted, gameID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to cleanup finished games: %w", err)
	}

	return deleted, nil
}
