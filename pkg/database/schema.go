package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LogRecord is one row of research_logs.
type LogRecord struct {
	ArtifactID string
	Timestamp  time.Time
	Level      string
	Message    string
	Metadata   json.RawMessage
}

func (db *PostgresDB) InitSchema(ctx context.Context) error {
	logsQuery := `
		CREATE TABLE IF NOT EXISTS research_logs (
			id SERIAL PRIMARY KEY,
			artifact_id TEXT,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		);
	`
	if _, err := db.Pool.Exec(ctx, logsQuery); err != nil {
		return fmt.Errorf("failed to create research_logs table: %w", err)
	}

	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_research_logs_artifact_id ON research_logs(artifact_id)"); err != nil {
		return fmt.Errorf("failed to create index on research_logs: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_research_logs_timestamp ON research_logs(timestamp DESC)"); err != nil {
		return fmt.Errorf("failed to create timestamp index on research_logs: %w", err)
	}

	return nil
}
