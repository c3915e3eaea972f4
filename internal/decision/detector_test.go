package decision

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/gijiroku/internal/classifier"
	"github.com/foxseedlab/gijiroku/internal/generator"
)

type mockClassifier struct {
	mu    sync.Mutex
	top   func(text string) string
	err   error
	calls int
	texts []string
}

func (m *mockClassifier) Classify(_ context.Context, text string, labels []string) (classifier.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.texts = append(m.texts, text)
	if m.err != nil {
		return classifier.Result{}, m.err
	}
	top := m.top(text)
	result := classifier.Result{Labels: []string{top}, Scores: []float64{0.9}}
	for _, l := range labels {
		if l != top {
			result.Labels = append(result.Labels, l)
			result.Scores = append(result.Scores, 0.01)
		}
	}
	return result, nil
}

type mockGenerator struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	prompts   []string
}

func (m *mockGenerator) Generate(_ context.Context, req generator.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, req.Prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return `{"is_vote": false}`, nil
	}
	r := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return r, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *mockPublisher) PublishVoteCreated(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func alwaysDecision(string) string { return DecisionLabel }

func neverDecision(string) string { return "인사나 안부만 주고받는 발화" }

func newTestDetector(zs *mockClassifier, gen *mockGenerator, pub *mockPublisher, clock *fakeClock) *Detector {
	return NewDetector(zs, gen, pub, WithClock(clock.Now))
}

func TestHandle_EmitsConfirmedVote(t *testing.T) {
	zs := &mockClassifier{top: alwaysDecision}
	gen := &mockGenerator{responses: []string{`{"is_vote":true,"topic":"lunch choice","options":["pizza","salad"]}`}}
	pub := &mockPublisher{}
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	d := newTestDetector(zs, gen, pub, clock)

	d.handle(context.Background(), segment{speakerID: "alice", text: "점심 피자랑 샐러드 중에 뭐로 할까요?"})

	events := pub.Events()
	if len(events) != 1 {
		t.Fatalf("unexpected event count: %d", len(events))
	}
	want := Event{Topic: "lunch choice", Options: []string{"pizza", "salad"}, Proposer: "alice", CreatedAt: clock.now}
	if !reflect.DeepEqual(events[0], want) {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestHandle_CooldownSuppressesSecondAttempt(t *testing.T) {
	zs := &mockClassifier{top: alwaysDecision}
	gen := &mockGenerator{responses: []string{
		`{"is_vote":true,"topic":"lunch choice","options":[]}`,
		`{"is_vote":true,"topic":"next meeting date","options":[]}`,
	}}
	pub := &mockPublisher{}
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	d := newTestDetector(zs, gen, pub, clock)

	d.handle(context.Background(), segment{speakerID: "alice", text: "first"})
	clock.Advance(10 * time.Second)
	d.handle(context.Background(), segment{speakerID: "bob", text: "second"})

	if len(pub.Events()) != 1 {
		t.Fatalf("expected one event inside cooldown, got %d", len(pub.Events()))
	}
	if zs.calls != 1 {
		t.Fatalf("expected classification to be skipped during cooldown, got %d calls", zs.calls)
	}

	clock.Advance(21 * time.Second)
	d.handle(context.Background(), segment{speakerID: "bob", text: "third"})
	if len(pub.Events()) != 2 {
		t.Fatalf("expected a second event after cooldown, got %d", len(pub.Events()))
	}
}

func TestHandle_NegativeLabelSkipsGenerator(t *testing.T) {
	zs := &mockClassifier{top: neverDecision}
	gen := &mockGenerator{}
	pub := &mockPublisher{}
	d := newTestDetector(zs, gen, pub, &fakeClock{now: time.Now()})

	d.handle(context.Background(), segment{speakerID: "alice", text: "안녕하세요"})

	if gen.calls != 0 {
		t.Fatalf("expected generator not to be called, got %d calls", gen.calls)
	}
	if len(pub.Events()) != 0 {
		t.Fatalf("unexpected events: %+v", pub.Events())
	}
}

func TestHandle_RejectedVerdictLeavesCooldownUntouched(t *testing.T) {
	for _, resp := range []string{`{"is_vote": false}`, `not json at all`, `{"is_vote":true,"topic":""}`, `[]`} {
		t.Run(resp, func(t *testing.T) {
			zs := &mockClassifier{top: alwaysDecision}
			gen := &mockGenerator{responses: []string{resp, `{"is_vote":true,"topic":"budget","options":["yes","no"]}`}}
			pub := &mockPublisher{}
			clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
			d := newTestDetector(zs, gen, pub, clock)

			d.handle(context.Background(), segment{speakerID: "alice", text: "first"})
			if len(pub.Events()) != 0 {
				t.Fatalf("unexpected event for response %q", resp)
			}
			clock.Advance(time.Second)
			d.handle(context.Background(), segment{speakerID: "bob", text: "second"})
			if len(pub.Events()) != 1 {
				t.Fatalf("expected detection to remain armed, got %d events", len(pub.Events()))
			}
		})
	}
}

func TestHandle_ClassifierErrorEndsAttempt(t *testing.T) {
	zs := &mockClassifier{top: alwaysDecision, err: errors.New("unavailable")}
	gen := &mockGenerator{}
	pub := &mockPublisher{}
	d := newTestDetector(zs, gen, pub, &fakeClock{now: time.Now()})

	d.handle(context.Background(), segment{speakerID: "alice", text: "x"})

	if gen.calls != 0 || len(pub.Events()) != 0 {
		t.Fatalf("unexpected calls: generator=%d events=%d", gen.calls, len(pub.Events()))
	}
}

func TestHandle_PromptIncludesWindowAndCandidate(t *testing.T) {
	zs := &mockClassifier{top: func(text string) string {
		if text == "투표로 정할까요?" {
			return DecisionLabel
		}
		return "회의 순서나 진행을 안내하는 발화"
	}}
	gen := &mockGenerator{}
	pub := &mockPublisher{}
	d := newTestDetector(zs, gen, pub, &fakeClock{now: time.Now()})

	d.handle(context.Background(), segment{speakerID: "alice", text: "오늘 안건은 워크숍 장소입니다"})
	d.handle(context.Background(), segment{speakerID: "bob", text: "투표로 정할까요?"})

	if gen.calls != 1 {
		t.Fatalf("unexpected generator calls: %d", gen.calls)
	}
	prompt := gen.prompts[0]
	for _, want := range []string{"alice: 오늘 안건은 워크숍 장소입니다", "[후보 발화]\nbob: 투표로 정할까요?"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt is missing %q:\n%s", want, prompt)
		}
	}
	if zs.texts[1] != "투표로 정할까요?" {
		t.Fatalf("expected classifier to see the line alone, got %q", zs.texts[1])
	}
}

func TestRun_ProcessesQueuedSegments(t *testing.T) {
	zs := &mockClassifier{top: alwaysDecision}
	gen := &mockGenerator{responses: []string{`[{"is_vote":true,"topic":"release date","options":"friday"}]`}}
	pub := &mockPublisher{}
	d := NewDetector(zs, gen, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.OnSegment("alice", "언제 배포할지 정하죠")

	deadline := time.After(2 * time.Second)
	for len(pub.Events()) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for event")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	ev := pub.Events()[0]
	if ev.Topic != "release date" || len(ev.Options) != 0 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestOnSegment_DropsWhenQueueFull(t *testing.T) {
	d := NewDetector(&mockClassifier{top: neverDecision}, &mockGenerator{}, &mockPublisher{}, WithQueueSize(1))

	d.OnSegment("alice", "one")
	d.OnSegment("alice", "two")

	if len(d.queue) != 1 {
		t.Fatalf("unexpected queue length: %d", len(d.queue))
	}
}

func TestWindow_EvictsOldest(t *testing.T) {
	w := NewWindow(2)
	w.Push("a")
	w.Push("b")
	w.Push("c")
	if got := w.Lines(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("unexpected lines: %v", got)
	}
}
