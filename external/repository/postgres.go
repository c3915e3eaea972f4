package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foxseedlab/gijiroku/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

const sessionColumns = `id, guild_id, channel_id, room_name, file_id, started_at, ended_at, status, summary_status, utterance_num`

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	var endedAt *time.Time
	if err := row.Scan(&s.ID, &s.GuildID, &s.ChannelID, &s.RoomName, &s.FileID, &s.StartedAt, &endedAt, &s.Status, &s.SummaryStatus, &s.UtteranceNum); err != nil {
		return nil, err
	}
	s.EndedAt = endedAt
	return &s, nil
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO meeting_sessions (guild_id, channel_id, room_name, file_id, started_at, status)
		 VALUES ($1, $2, $3, $4, $5, 'running')
		 RETURNING `+sessionColumns,
		input.GuildID, input.ChannelID, input.RoomName, input.FileID, input.StartedAt)
	s, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) UpdateSessionCompleted(ctx context.Context, input repository.CompleteSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE meeting_sessions SET status = 'completed', ended_at = $2, utterance_num = $3 WHERE id = $1`,
		input.SessionID, input.EndedAt, input.UtteranceNum)
	return err
}

func (r *PostgresRepository) UpdateSummaryStatus(ctx context.Context, sessionID, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE meeting_sessions SET summary_status = $2 WHERE id = $1`,
		sessionID, status)
	return err
}

func (r *PostgresRepository) GetRunningSessionByChannel(ctx context.Context, guildID, channelID string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM meeting_sessions WHERE guild_id = $1 AND channel_id = $2 AND status = 'running'
		 LIMIT 1`,
		guildID, channelID)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresRepository) AppendUtterance(ctx context.Context, logID string, u repository.Utterance) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO utterances (log_id, sequence_id, speaker_id, content, spoken_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		logID, u.SequenceID, u.SpeakerID, u.Content, u.SpokenAt)
	return err
}

func (r *PostgresRepository) ListUtterances(ctx context.Context, logID string) ([]repository.Utterance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sequence_id, speaker_id, content, spoken_at
		 FROM utterances WHERE log_id = $1 ORDER BY sequence_id ASC`,
		logID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Utterance
	for rows.Next() {
		var u repository.Utterance
		if err := rows.Scan(&u.SequenceID, &u.SpeakerID, &u.Content, &u.SpokenAt); err != nil {
			return nil, err
		}
		list = append(list, u)
	}
	return list, rows.Err()
}
