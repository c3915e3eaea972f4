package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE meeting_session_status AS ENUM ('running', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS meeting_sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		guild_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		room_name TEXT NOT NULL,
		file_id TEXT NOT NULL UNIQUE,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		status meeting_session_status NOT NULL DEFAULT 'running',
		summary_status TEXT NOT NULL DEFAULT 'BEFORE_START',
		utterance_num BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meeting_sessions_running ON meeting_sessions (guild_id, channel_id) WHERE status = 'running'`,
	`CREATE TABLE IF NOT EXISTS utterances (
		log_id TEXT NOT NULL,
		sequence_id BIGINT NOT NULL,
		speaker_id TEXT NOT NULL,
		content TEXT NOT NULL,
		spoken_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (log_id, sequence_id)
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
