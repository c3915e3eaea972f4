// Package transcript holds the per-session utterance sequence and participant
// roster and builds the snapshot document persisted to object storage.
package transcript

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/gijiroku/internal/repository"
)

type Store struct {
	roomName  string
	fileID    string
	startedAt time.Time
	log       repository.UtteranceLog
	now       func() time.Time

	mu     sync.Mutex
	nextID int64
	roster []ParticipantRecord
	index  map[string]int
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(roomName, fileID string, startedAt time.Time, log repository.UtteranceLog, opts ...Option) *Store {
	s := &Store{
		roomName:  roomName,
		fileID:    fileID,
		startedAt: startedAt,
		log:       log,
		now:       time.Now,
		nextID:    1,
		index:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) FileID() string {
	return s.fileID
}

func (s *Store) RoomName() string {
	return s.roomName
}

func (s *Store) StartedAt() time.Time {
	return s.startedAt
}

// Append assigns the next sequence id and writes the utterance to the log.
// Log failures are logged and the id is not reused.
func (s *Store) Append(ctx context.Context, speakerID, text string) Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := Utterance{
		SequenceID: s.nextID,
		Timestamp:  s.now(),
		SpeakerID:  speakerID,
		Text:       text,
	}
	s.nextID++

	if err := s.log.AppendUtterance(ctx, s.fileID, repository.Utterance{
		SequenceID: u.SequenceID,
		SpokenAt:   u.Timestamp,
		SpeakerID:  u.SpeakerID,
		Content:    u.Text,
	}); err != nil {
		slog.Warn("failed to append utterance to log", "file_id", s.fileID, "sequence_id", u.SequenceID, "error", err)
	}
	return u
}

// UpsertParticipant records or updates a participant. Non-empty fields of p
// overwrite stored ones; records are never removed.
func (s *Store) UpsertParticipant(p ParticipantRecord) {
	if strings.TrimSpace(p.ID) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[p.ID]; ok {
		current := s.roster[i]
		if p.DisplayName != "" {
			current.DisplayName = p.DisplayName
		}
		merged := make(map[string]string, len(current.Attributes))
		for k, v := range current.Attributes {
			merged[k] = v
		}
		for k, v := range p.Attributes {
			if v != "" {
				merged[k] = v
			}
		}
		current.Attributes = withDefaultAttributes(merged)
		s.roster[i] = current
		return
	}

	if p.DisplayName == "" {
		p.DisplayName = p.ID
	}
	p.Attributes = withDefaultAttributes(p.Attributes)
	s.index[p.ID] = len(s.roster)
	s.roster = append(s.roster, p)
}

func (s *Store) Participants() []ParticipantRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyRosterLocked()
}

func (s *Store) copyRosterLocked() []ParticipantRecord {
	out := make([]ParticipantRecord, len(s.roster))
	for i, p := range s.roster {
		attrs := make(map[string]string, len(p.Attributes))
		for k, v := range p.Attributes {
			attrs[k] = v
		}
		out[i] = ParticipantRecord{ID: p.ID, DisplayName: p.DisplayName, Attributes: attrs}
	}
	return out
}

// AppendedCount is the number of utterances accepted so far.
func (s *Store) AppendedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID - 1
}

// Snapshot reads the utterance log back and combines it with the roster.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	roster := s.copyRosterLocked()
	s.mu.Unlock()

	records, err := s.log.ListUtterances(ctx, s.fileID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read utterance log %s: %w", s.fileID, err)
	}

	utterances := make([]Utterance, 0, len(records))
	speakers := make(map[string]struct{})
	for _, r := range records {
		utterances = append(utterances, Utterance{
			SequenceID: r.SequenceID,
			Timestamp:  r.SpokenAt,
			SpeakerID:  r.SpeakerID,
			Text:       r.Content,
		})
		speakers[r.SpeakerID] = struct{}{}
	}

	return Snapshot{
		Meta: Meta{
			RoomName:         s.roomName,
			StartedAt:        s.startedAt,
			ParticipantCount: len(roster),
			SpeakerCount:     len(speakers),
		},
		Participants: roster,
		Utterances:   utterances,
	}, nil
}
