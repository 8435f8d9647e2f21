package postgres

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PoolConfig struct {
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
}

// Connect opens a pgx backed connection pool, verifies it and runs migrations
func Connect(connStr string, pool PoolConfig) (*sql.DB, error) {
	if connStr == "" {
		return nil, fmt.Errorf("database url is required")
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetimeMin) * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	log.Println("[STORE] Running database migrations...")
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	log.Println("[STORE] Database connected successfully")
	return db, nil
}
