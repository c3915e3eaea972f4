package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/foxseedlab/gijiroku/internal/decision"
	"github.com/foxseedlab/gijiroku/internal/discord"
	"github.com/foxseedlab/gijiroku/internal/pipeline"
	"github.com/foxseedlab/gijiroku/internal/repository"
	"github.com/foxseedlab/gijiroku/internal/snapshot"
	"github.com/foxseedlab/gijiroku/internal/status"
	"github.com/foxseedlab/gijiroku/internal/summarizer"
	"github.com/foxseedlab/gijiroku/internal/summary"
	"github.com/foxseedlab/gijiroku/internal/transcript"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

const (
	finalPersistTimeout = 30 * time.Second
	silenceFillMargin   = 200 * time.Millisecond
)

// meeting is the runtime of one session: its transcript, detector, audio
// tracks and background tasks.
type meeting struct {
	m         *Manager
	guildID   string
	channelID string
	record    *repository.Session
	store     *transcript.Store
	detector  *decision.Detector
	voice     discord.VoiceConnection
	scheduler *cron.Cron

	ctx          context.Context
	cancel       context.CancelFunc
	bgCtx        context.Context
	bgCancel     context.CancelFunc
	detectorStop context.CancelFunc
	detectorDone chan struct{}

	tasks     sync.WaitGroup
	pipelines sync.WaitGroup

	mu           sync.Mutex
	participants map[string]struct{}
	tracks       map[string]*track
	ended        bool

	shutdownOnce sync.Once
}

func (mt *meeting) logAttrs() []any {
	return []any{"session_id", mt.record.ID, "file_id", mt.store.FileID(), "room", mt.store.RoomName()}
}

// start launches the detector, periodic snapshot job, and audio router.
func (mt *meeting) start() error {
	detectorCtx, stop := context.WithCancel(mt.ctx)
	mt.detectorStop = stop
	mt.detectorDone = make(chan struct{})
	go func() {
		defer close(mt.detectorDone)
		defer recoverTask("decision detector", mt.logAttrs()...)
		mt.detector.Run(detectorCtx)
	}()

	schedule := fmt.Sprintf("@every %ds", mt.m.cfg.SnapshotIntervalSec)
	if _, err := mt.scheduler.AddFunc(schedule, mt.persistPeriodicSnapshot); err != nil {
		return fmt.Errorf("schedule periodic snapshot: %w", err)
	}
	mt.scheduler.Start()

	// ReceiveAudio returns once the voice connection stops delivering packets.
	go func() {
		defer recoverTask("voice receiver", mt.logAttrs()...)
		mt.voice.ReceiveAudio(mt.route)
	}()
	return nil
}

// addParticipant records a join and reports how many remote participants
// are present.
func (mt *meeting) addParticipant(userID string, profile discord.MemberProfile) int {
	attrs := map[string]string{}
	if profile.Role != "" {
		attrs["role"] = profile.Role
	}
	mt.store.UpsertParticipant(transcript.ParticipantRecord{ID: userID, DisplayName: profile.DisplayName, Attributes: attrs})

	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.participants[userID] = struct{}{}
	return len(mt.participants)
}

// removeParticipant ends the user's track. It reports whether the meeting
// just became empty.
func (mt *meeting) removeParticipant(userID string) bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if _, ok := mt.participants[userID]; !ok {
		return false
	}
	delete(mt.participants, userID)
	if t, ok := mt.tracks[userID]; ok {
		delete(mt.tracks, userID)
		t.end()
	}
	return len(mt.participants) == 0
}

// route hands one Opus packet to the speaker's track, starting a pipeline
// on the first packet.
func (mt *meeting) route(userID string, packet []byte) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.ended {
		return
	}
	t, ok := mt.tracks[userID]
	if !ok {
		var err error
		t, err = mt.startTrackLocked(userID)
		if err != nil {
			slog.Error("failed to start audio track", append(mt.logAttrs(), "user_id", userID, "error", err)...)
			return
		}
	}
	if !t.offer(packet) && (t.dropped == 1 || t.dropped%warnSampleInterval == 0) {
		slog.Warn("audio track queue is full; dropping packet", append(mt.logAttrs(), "user_id", userID, "dropped", t.dropped)...)
	}
}

func (mt *meeting) startTrackLocked(userID string) (*track, error) {
	deps := mt.m.deps
	decoder, err := deps.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	resampler, err := deps.NewResampler()
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	t := newTrack(userID, mt.m.cfg.TrackPacketQueueLength)
	mt.tracks[userID] = t

	store := mt.store
	p := pipeline.New(pipeline.Config{
		SpeakerID:  userID,
		Resampler:  resampler,
		VAD:        deps.NewVAD(),
		Recognizer: deps.Recognizer,
		PreRoll:    mt.m.cfg.VADMinSpeech(),
		Sinks: []pipeline.Sink{
			pipeline.SinkFunc(func(ctx context.Context, speakerID, text string) {
				store.Append(ctx, speakerID, text)
			}),
			mt.detector,
		},
	})
	src := &trackSource{
		userID:      userID,
		packets:     t.packets,
		decoder:     decoder,
		silenceFill: mt.m.cfg.VADMinSilence() + silenceFillMargin,
	}
	mt.pipelines.Go(func() {
		defer recoverTask("audio track pipeline", append(mt.logAttrs(), "user_id", userID)...)
		if err := p.Run(mt.ctx, src); err != nil {
			slog.Error("audio track pipeline stopped", append(mt.logAttrs(), "user_id", userID, "error", err)...)
		}
	})
	slog.Info("audio track started", append(mt.logAttrs(), "user_id", userID)...)
	return t, nil
}

// displayName resolves a speaker id through the roster, falling back to the id.
func (mt *meeting) displayName(userID string) string {
	for _, p := range mt.store.Participants() {
		if p.ID == userID {
			return p.DisplayName
		}
	}
	return userID
}

func (mt *meeting) persistPeriodicSnapshot() {
	defer recoverTask("periodic snapshot", mt.logAttrs()...)
	if err := mt.persistSnapshot(mt.bgCtx, summary.MeetingLogKey(mt.store.FileID())); err != nil {
		slog.Error("failed to persist periodic snapshot", append(mt.logAttrs(), "error", err)...)
		return
	}
	slog.Info("periodic snapshot persisted", mt.logAttrs()...)
}

func (mt *meeting) persistSnapshot(ctx context.Context, key string) error {
	snap, err := mt.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("build snapshot: %w", err)
	}
	return mt.m.deps.Snapshots.Put(ctx, key, snap)
}

// requestRecap starts one recap request: persist a recap input, start the
// recap job, poll for its output, and DM the requester. It reports false
// once the meeting is shutting down.
func (mt *meeting) requestRecap(requesterID string) bool {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.ended {
		return false
	}
	mt.tasks.Go(func() {
		defer recoverTask("recap request", append(mt.logAttrs(), "requester_id", requesterID)...)
		ctx := mt.bgCtx
		requestFileID := summary.RecapRequestID(mt.store.FileID(), uuid.NewString())
		attrs := slices.Clip(append(mt.logAttrs(), "requester_id", requesterID, "request_file_id", requestFileID))

		if err := mt.persistSnapshot(ctx, summary.RecapInputKey(summary.RecapInputFolder, requestFileID)); err != nil {
			slog.Error("failed to persist recap input", append(attrs, "error", err)...)
			return
		}
		job, err := mt.m.deps.Summarizer.RequestRecap(ctx, summarizer.RecapRequest{
			FileID:       requestFileID,
			InputFolder:  summary.RecapInputFolder,
			OutputFolder: summary.RecapOutputFolder,
		})
		if err != nil {
			slog.Error("failed to start recap job", append(attrs, "error", err)...)
			return
		}
		mt.tasks.Go(func() {
			if err := job.Wait(ctx); err != nil && ctx.Err() == nil {
				slog.Error("recap job failed", append(attrs, "error", err)...)
			}
		})

		doc, found, err := mt.m.deps.Snapshots.PollUntilAvailable(ctx,
			summary.RecapOutputKey(summary.RecapOutputFolder, requestFileID, 0),
			snapshot.PollOptions{MaxAttempts: mt.m.cfg.RecapPollAttempts, Delay: mt.m.cfg.RecapPollDelay()})
		if err != nil {
			slog.Error("failed to poll recap output", append(attrs, "error", err)...)
			return
		}
		if !found {
			slog.Warn("recap output never became available", attrs...)
			return
		}
		if err := publishRecap(mt.m.deps.Discord, requesterID, mt.store.RoomName(), doc); err != nil {
			slog.Error("failed to deliver recap", append(attrs, "error", err)...)
			return
		}
		slog.Info("recap delivered", attrs...)
	})
	return true
}

// shutdown ends the meeting once. Each step runs even if an earlier one
// panics, so the final snapshot is always attempted.
func (mt *meeting) shutdown(reason string) {
	mt.shutdownOnce.Do(func() {
		attrs := append(mt.logAttrs(), "reason", reason)
		slog.Info("shutting down meeting", attrs...)

		// No new tracks or recap tasks start past this point.
		mt.mu.Lock()
		mt.ended = true
		mt.mu.Unlock()

		runStep("stop background tasks", attrs, func() {
			mt.bgCancel()
			<-mt.scheduler.Stop().Done()
		})
		runStep("disconnect voice", attrs, func() {
			if err := mt.voice.Disconnect(); err != nil {
				slog.Warn("voice disconnect failed", append(attrs, "error", err)...)
			}
		})
		runStep("end audio tracks", attrs, func() {
			mt.mu.Lock()
			for id, t := range mt.tracks {
				delete(mt.tracks, id)
				t.end()
			}
			mt.mu.Unlock()
			mt.pipelines.Wait()
		})
		runStep("stop decision detector", attrs, func() {
			mt.detectorStop()
			<-mt.detectorDone
		})

		persisted := false
		runStep("persist final snapshot", attrs, func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(mt.ctx), finalPersistTimeout)
			defer cancel()
			if err := mt.persistSnapshot(ctx, summary.MeetingLogKey(mt.store.FileID())); err != nil {
				slog.Error("failed to persist final snapshot", append(attrs, "error", err)...)
				return
			}
			persisted = true
			slog.Info("final snapshot persisted", attrs...)
		})
		runStep("complete session record", attrs, func() {
			if err := mt.m.deps.Repository.UpdateSessionCompleted(context.WithoutCancel(mt.ctx), repository.CompleteSessionInput{
				SessionID:    mt.record.ID,
				EndedAt:      mt.m.now(),
				UtteranceNum: mt.store.AppendedCount(),
			}); err != nil {
				slog.Error("failed to complete session record", append(attrs, "error", err)...)
			}
		})
		runStep("announce meeting end", attrs, func() {
			if err := mt.m.deps.Discord.SendChannelMessage(mt.channelID, messageMeetingEnded); err != nil {
				slog.Warn("failed to announce meeting end", append(attrs, "error", err)...)
			}
		})

		if !mt.m.cfg.SummarizeEnabled {
			slog.Info("summarization disabled; skipping handoff", attrs...)
		} else if !persisted {
			slog.Error("final snapshot missing; skipping summarization", attrs...)
		} else {
			runStep("summarize", attrs, func() { mt.summarize(attrs) })
		}

		mt.cancel()
		mt.tasks.Wait()
		slog.Info("meeting shut down", attrs...)
	})
}

// summarize hands the final snapshot to the summarizer and reports status.
// COMPLETED is reported only when the summarizer succeeds.
func (mt *meeting) summarize(attrs []any) {
	ctx := mt.m.ctx
	mt.reportStatus(ctx, status.InProgress, attrs)
	job, err := mt.m.deps.Summarizer.RequestSummary(ctx, mt.store.FileID())
	if err != nil {
		slog.Error("failed to start summarizer", append(attrs, "error", err)...)
		return
	}
	if err := job.Wait(ctx); err != nil {
		slog.Error("summarizer failed; status left in progress", append(attrs, "error", err)...)
		return
	}
	mt.reportStatus(ctx, status.Completed, attrs)
	slog.Info("summarizer finished", attrs...)
}

func (mt *meeting) reportStatus(ctx context.Context, s status.SessionStatus, attrs []any) {
	if err := mt.m.deps.Status.UpdateStatus(ctx, mt.store.RoomName(), s); err != nil {
		slog.Error("failed to report session status", append(attrs, "status", s, "error", err)...)
	}
	if err := mt.m.deps.Repository.UpdateSummaryStatus(ctx, mt.record.ID, string(s)); err != nil {
		slog.Error("failed to record summary status", append(attrs, "status", s, "error", err)...)
	}
}

func runStep(name string, attrs []any, fn func()) {
	defer recoverTask(name, attrs...)
	fn()
}

func recoverTask(name string, attrs ...any) {
	if rec := recover(); rec != nil {
		slog.Error("session task panicked", append(attrs, "task", name, "panic", rec, "stack", string(debug.Stack()))...)
	}
}
