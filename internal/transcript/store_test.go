package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/gijiroku/internal/repository"
)

type memoryLog struct {
	mu        sync.Mutex
	lines     []repository.Utterance
	failNext  bool
	listErr   error
	appendLog []string
}

func (m *memoryLog) AppendUtterance(_ context.Context, logID string, u repository.Utterance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLog = append(m.appendLog, logID)
	if m.failNext {
		m.failNext = false
		return errors.New("disk full")
	}
	m.lines = append(m.lines, u)
	return nil
}

func (m *memoryLog) ListUtterances(_ context.Context, _ string) ([]repository.Utterance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]repository.Utterance, len(m.lines))
	copy(out, m.lines)
	return out, nil
}

func newTestStore(log *memoryLog) *Store {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return NewStore("weekly", "weekly_20260301_100000", start, log, WithClock(func() time.Time { return start.Add(time.Minute) }))
}

func TestAppend_ConcurrentIDsAreDenseAndUnique(t *testing.T) {
	log := &memoryLog{}
	store := newTestStore(log)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	ids := make(chan int64, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Go(func() {
			for i := 0; i < perWorker; i++ {
				ids <- store.Append(context.Background(), "speaker", "text").SequenceID
			}
		})
	}
	wg.Wait()
	close(ids)

	var got []int
	for id := range ids {
		got = append(got, int(id))
	}
	sort.Ints(got)
	for i, id := range got {
		if id != i+1 {
			t.Fatalf("expected id %d at position %d, got %d", i+1, i, id)
		}
	}
	for i, u := range log.lines {
		if u.SequenceID != int64(i+1) {
			t.Fatalf("log order does not match sequence ids at %d: %d", i, u.SequenceID)
		}
	}
}

func TestAppend_LogFailureDoesNotReuseID(t *testing.T) {
	log := &memoryLog{failNext: true}
	store := newTestStore(log)

	first := store.Append(context.Background(), "a", "lost")
	second := store.Append(context.Background(), "a", "kept")
	if first.SequenceID != 1 || second.SequenceID != 2 {
		t.Fatalf("unexpected ids: %d %d", first.SequenceID, second.SequenceID)
	}
	if len(log.lines) != 1 || log.lines[0].SequenceID != 2 {
		t.Fatalf("unexpected log contents: %+v", log.lines)
	}
	if store.AppendedCount() != 2 {
		t.Fatalf("unexpected appended count: %d", store.AppendedCount())
	}
}

func TestAppend_UsesFileIDAsLogID(t *testing.T) {
	log := &memoryLog{}
	store := newTestStore(log)
	store.Append(context.Background(), "a", "hi")
	if len(log.appendLog) != 1 || log.appendLog[0] != "weekly_20260301_100000" {
		t.Fatalf("unexpected log ids: %v", log.appendLog)
	}
}

func TestUpsertParticipant_DefaultsAndMerge(t *testing.T) {
	store := newTestStore(&memoryLog{})
	store.UpsertParticipant(ParticipantRecord{ID: "u1", DisplayName: "Alice", Attributes: map[string]string{"role": "PM"}})
	store.UpsertParticipant(ParticipantRecord{ID: "u2"})
	store.UpsertParticipant(ParticipantRecord{ID: "u1", Attributes: map[string]string{"age": "30"}})

	got := store.Participants()
	if len(got) != 2 {
		t.Fatalf("expected 2 participants, got %d", len(got))
	}
	if got[0].ID != "u1" || got[0].DisplayName != "Alice" {
		t.Fatalf("unexpected first participant: %+v", got[0])
	}
	if got[0].Attributes["role"] != "PM" || got[0].Attributes["age"] != "30" || got[0].Attributes["sex"] != "unknown" {
		t.Fatalf("unexpected merged attributes: %+v", got[0].Attributes)
	}
	if got[1].DisplayName != "u2" || got[1].Attributes["occupation"] != "unknown" {
		t.Fatalf("unexpected defaults: %+v", got[1])
	}
}

func TestSnapshot_CountsAndRetainedParticipants(t *testing.T) {
	store := newTestStore(&memoryLog{})
	for _, id := range []string{"a", "b", "c"} {
		store.UpsertParticipant(ParticipantRecord{ID: id, DisplayName: strings.ToUpper(id)})
	}
	store.Append(context.Background(), "a", "one")
	store.Append(context.Background(), "b", "two")
	store.Append(context.Background(), "a", "three")

	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Meta.ParticipantCount != 3 {
		t.Fatalf("expected 3 participants, got %d", snap.Meta.ParticipantCount)
	}
	if snap.Meta.SpeakerCount != 2 {
		t.Fatalf("expected 2 speakers, got %d", snap.Meta.SpeakerCount)
	}
	if len(snap.Utterances) != 3 || snap.Utterances[2].Text != "three" {
		t.Fatalf("unexpected utterances: %+v", snap.Utterances)
	}
	if snap.Meta.RoomName != "weekly" {
		t.Fatalf("unexpected room name: %s", snap.Meta.RoomName)
	}
}

func TestSnapshot_ReadFailure(t *testing.T) {
	store := newTestStore(&memoryLog{listErr: errors.New("io")})
	if _, err := store.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error when the log cannot be read")
	}
}

func TestSnapshot_JSONShape(t *testing.T) {
	store := newTestStore(&memoryLog{})
	store.UpsertParticipant(ParticipantRecord{ID: "u1", DisplayName: "Alice"})
	store.Append(context.Background(), "u1", "hello")
	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc struct {
		Metadata     map[string]any      `json:"metadata"`
		Participants []map[string]string `json:"participants"`
		Utterances   []map[string]any    `json:"utterances"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Metadata["roomname"] != "weekly" || doc.Metadata["participant_num"] != float64(1) {
		t.Fatalf("unexpected metadata: %v", doc.Metadata)
	}
	if doc.Participants[0]["USER_ID"] != "u1" || doc.Participants[0]["name"] != "Alice" || doc.Participants[0]["age"] != "unknown" {
		t.Fatalf("unexpected participant: %v", doc.Participants[0])
	}
	if doc.Utterances[0]["USER_ID"] != "u1" || doc.Utterances[0]["content"] != "hello" || doc.Utterances[0]["id"] != float64(1) {
		t.Fatalf("unexpected utterance: %v", doc.Utterances[0])
	}

	var back Snapshot
	if err := json.Unmarshal(body, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.Participants[0].DisplayName != "Alice" || back.Participants[0].Attributes["role"] != "unknown" {
		t.Fatalf("unexpected decoded participant: %+v", back.Participants[0])
	}
	if back.SpeakerNames()["u1"] != "Alice" {
		t.Fatalf("unexpected speaker names: %v", back.SpeakerNames())
	}
}
