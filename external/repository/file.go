package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/foxseedlab/gijiroku/internal/repository"
	"github.com/google/uuid"
)

const sessionEventsFile = "sessions.jsonl"

type utteranceLine struct {
	ID        int64  `json:"id"`
	StartTime string `json:"start_time"`
	UserID    string `json:"USER_ID"`
	Content   string `json:"content"`
}

type sessionEvent struct {
	Event   string                   `json:"event"`
	At      string                   `json:"at"`
	Session sessionEventSessionField `json:"session"`
}

type sessionEventSessionField struct {
	ID            string `json:"id"`
	GuildID       string `json:"guild_id,omitempty"`
	ChannelID     string `json:"channel_id,omitempty"`
	RoomName      string `json:"room_name,omitempty"`
	FileID        string `json:"file_id,omitempty"`
	Status        string `json:"status,omitempty"`
	SummaryStatus string `json:"summary_status,omitempty"`
	UtteranceNum  int64  `json:"utterance_num,omitempty"`
}

// FileRepository keeps one JSON-lines utterance log per session under dir and
// appends session lifecycle events to sessions.jsonl. Running sessions are
// tracked in memory only.
type FileRepository struct {
	dir string

	mu       sync.Mutex
	sessions map[string]*repository.Session
}

func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &FileRepository{
		dir:      dir,
		sessions: make(map[string]*repository.Session),
	}, nil
}

func (r *FileRepository) logPath(logID string) string {
	return filepath.Join(r.dir, logID+".jsonl")
}

func (r *FileRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	s := &repository.Session{
		ID:            uuid.NewString(),
		GuildID:       input.GuildID,
		ChannelID:     input.ChannelID,
		RoomName:      input.RoomName,
		FileID:        input.FileID,
		StartedAt:     input.StartedAt,
		Status:        repository.SessionStatusRunning,
		SummaryStatus: "BEFORE_START",
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	if err := r.appendEventLocked("created", s); err != nil {
		return nil, err
	}
	copied := *s
	return &copied, nil
}

func (r *FileRepository) UpdateSessionCompleted(_ context.Context, input repository.CompleteSessionInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[input.SessionID]
	if !ok {
		return fmt.Errorf("session %s not found", input.SessionID)
	}
	endedAt := input.EndedAt
	s.EndedAt = &endedAt
	s.Status = repository.SessionStatusCompleted
	s.UtteranceNum = input.UtteranceNum
	return r.appendEventLocked("completed", s)
}

func (r *FileRepository) UpdateSummaryStatus(_ context.Context, sessionID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s not found", sessionID)
	}
	s.SummaryStatus = status
	return r.appendEventLocked("summary_status", s)
}

func (r *FileRepository) GetRunningSessionByChannel(_ context.Context, guildID, channelID string) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.GuildID == guildID && s.ChannelID == channelID && s.Status == repository.SessionStatusRunning {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *FileRepository) appendEventLocked(event string, s *repository.Session) error {
	line, err := json.Marshal(sessionEvent{
		Event: event,
		At:    time.Now().Format(time.RFC3339Nano),
		Session: sessionEventSessionField{
			ID:            s.ID,
			GuildID:       s.GuildID,
			ChannelID:     s.ChannelID,
			RoomName:      s.RoomName,
			FileID:        s.FileID,
			Status:        string(s.Status),
			SummaryStatus: s.SummaryStatus,
			UtteranceNum:  s.UtteranceNum,
		},
	})
	if err != nil {
		return err
	}
	return appendLine(filepath.Join(r.dir, sessionEventsFile), line)
}

func (r *FileRepository) AppendUtterance(_ context.Context, logID string, u repository.Utterance) error {
	line, err := json.Marshal(utteranceLine{
		ID:        u.SequenceID,
		StartTime: u.SpokenAt.Format(time.RFC3339Nano),
		UserID:    u.SpeakerID,
		Content:   u.Content,
	})
	if err != nil {
		return err
	}
	return appendLine(r.logPath(logID), line)
}

// ListUtterances reads the log back in file order. Lines that fail to parse
// are skipped with a warning.
func (r *FileRepository) ListUtterances(_ context.Context, logID string) ([]repository.Utterance, error) {
	f, err := os.Open(r.logPath(logID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	var list []repository.Utterance
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line utteranceLine
		if err := json.Unmarshal(raw, &line); err != nil {
			slog.Warn("skipping unparseable utterance log line", "log_id", logID, "line", lineNo, "error", err)
			continue
		}
		spokenAt, err := time.Parse(time.RFC3339Nano, line.StartTime)
		if err != nil {
			slog.Warn("skipping utterance log line with invalid timestamp", "log_id", logID, "line", lineNo, "error", err)
			continue
		}
		list = append(list, repository.Utterance{
			SequenceID: line.ID,
			SpokenAt:   spokenAt,
			SpeakerID:  line.UserID,
			Content:    line.Content,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var _ repository.Repository = (*FileRepository)(nil)
