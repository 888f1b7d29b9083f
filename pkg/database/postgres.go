package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDB wraps the database connection pool
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Only the log sink writes here, a small pool is plenty.
	config.MaxConns = 4
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// InsertLog stores one log record.
func (db *PostgresDB) InsertLog(ctx context.Context, rec LogRecord) error {
	query := `
		INSERT INTO research_logs (artifact_id, timestamp, level, message, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`
	var artifactID *string
	if rec.ArtifactID != "" {
		artifactID = &rec.ArtifactID
	}
	_, err := db.Pool.Exec(ctx, query, artifactID, rec.Timestamp, rec.Level, rec.Message, rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}
