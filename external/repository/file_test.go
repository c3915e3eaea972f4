package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/foxseedlab/gijiroku/internal/repository"
)

func TestFileRepository_UtteranceRoundTrip(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"hello", "world"} {
		if err := repo.AppendUtterance(ctx, "room_20260301_100000", repository.Utterance{
			SequenceID: int64(i + 1),
			SpokenAt:   at.Add(time.Duration(i) * time.Second),
			SpeakerID:  "user-1",
			Content:    text,
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got, err := repo.ListUtterances(ctx, "room_20260301_100000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 utterances, got %d", len(got))
	}
	if got[1].SequenceID != 2 || got[1].Content != "world" || !got[1].SpokenAt.Equal(at.Add(time.Second)) {
		t.Fatalf("unexpected utterance: %+v", got[1])
	}
}

func TestFileRepository_SkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileRepository(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := `{"id":1,"start_time":"2026-03-01T10:00:00Z","USER_ID":"a","content":"x"}
not json
{"id":2,"start_time":"2026-03-01T10:00:01Z","USER_ID":"b","content":"y"}
`
	if err := os.WriteFile(filepath.Join(dir, "log.jsonl"), []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	got, err := repo.ListUtterances(context.Background(), "log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].SpeakerID != "a" || got[1].SpeakerID != "b" {
		t.Fatalf("unexpected utterances: %+v", got)
	}
}

func TestFileRepository_MissingLogIsEmpty(t *testing.T) {
	repo, err := NewFileRepository(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := repo.ListUtterances(context.Background(), "nothing")
	if err != nil || len(got) != 0 {
		t.Fatalf("unexpected result: %v %v", got, err)
	}
}

func TestFileRepository_SessionLifecycle(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFileRepository(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	s, err := repo.CreateSession(ctx, repository.CreateSessionInput{GuildID: "g", ChannelID: "c", RoomName: "room", FileID: "room_1", StartedAt: time.Now()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	running, err := repo.GetRunningSessionByChannel(ctx, "g", "c")
	if err != nil || running == nil || running.ID != s.ID {
		t.Fatalf("unexpected running session: %+v %v", running, err)
	}
	if err := repo.UpdateSummaryStatus(ctx, s.ID, "IN_PROGRESS"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.UpdateSessionCompleted(ctx, repository.CompleteSessionInput{SessionID: s.ID, EndedAt: time.Now(), UtteranceNum: 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	running, err = repo.GetRunningSessionByChannel(ctx, "g", "c")
	if err != nil || running != nil {
		t.Fatalf("expected no running session, got %+v %v", running, err)
	}
	if _, err := os.Stat(filepath.Join(dir, sessionEventsFile)); err != nil {
		t.Fatalf("expected session events file: %v", err)
	}
}
