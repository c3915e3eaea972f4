// Package summary turns persisted transcript snapshots into recaps and
// final meeting minutes using a generative model.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/gijiroku/internal/generator"
	"github.com/foxseedlab/gijiroku/internal/snapshot"
	"github.com/foxseedlab/gijiroku/internal/transcript"
)

const defaultContextBuffer = 10

var (
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrEmptyConversation = errors.New("conversation is empty")
	ErrNoTopics          = errors.New("no topics were extracted")
)

type RecapInput struct {
	FileID         string
	EndUtteranceID int64
	InputFolder    string
	OutputFolder   string
}

type Service struct {
	snapshots     *snapshot.Store
	generator     generator.Generator
	contextBuffer int
}

type Option func(*Service)

// WithContextBuffer sets how many utterances around a topic range are
// included when detailing it.
func WithContextBuffer(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.contextBuffer = n
		}
	}
}

func NewService(snapshots *snapshot.Store, gen generator.Generator, opts ...Option) *Service {
	s := &Service{snapshots: snapshots, generator: gen, contextBuffer: defaultContextBuffer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recap summarizes the conversation so far and stores the result next to
// the request. It returns the stored key.
func (s *Service) Recap(ctx context.Context, in RecapInput) (string, error) {
	if in.InputFolder == "" {
		in.InputFolder = RecapInputFolder
	}
	if in.OutputFolder == "" {
		in.OutputFolder = RecapOutputFolder
	}
	doc, err := s.load(ctx, RecapInputKey(in.InputFolder, in.FileID))
	if err != nil {
		return "", err
	}

	lines, cut := conversationLines(doc, in.EndUtteranceID)
	if in.EndUtteranceID > 0 && !cut {
		slog.Warn("recap cut-off id not found; using the full conversation", "file_id", in.FileID, "end_id", in.EndUtteranceID)
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("recap %s: %w", in.FileID, ErrEmptyConversation)
	}
	slog.Info("generating recap", "file_id", in.FileID, "utterances", len(lines))

	raw, err := s.generator.Generate(ctx, generator.Request{Prompt: buildRecapPrompt(strings.Join(lines, "\n")), JSON: true})
	if err != nil {
		return "", fmt.Errorf("generate recap: %w", err)
	}
	var recap Recap
	if err := decodeModelJSON(raw, &recap); err != nil {
		return "", fmt.Errorf("recap %s: %w", in.FileID, err)
	}

	key := RecapOutputKey(in.OutputFolder, in.FileID, in.EndUtteranceID)
	if err := s.snapshots.Put(ctx, key, recap); err != nil {
		return "", err
	}
	slog.Info("recap stored", "file_id", in.FileID, "key", key)
	return key, nil
}

// Final builds the meeting minutes for fileID in three passes: structure,
// per-topic detail, and consolidation. A topic that fails to detail is kept
// with its error recorded.
func (s *Service) Final(ctx context.Context, fileID string) (string, error) {
	doc, err := s.load(ctx, MeetingLogKey(fileID))
	if err != nil {
		return "", err
	}

	st, err := s.analyzeStructure(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("final %s: %w", fileID, err)
	}
	if len(st.Topics) == 0 {
		return "", fmt.Errorf("final %s: %w", fileID, ErrNoTopics)
	}
	slog.Info("meeting structure analyzed", "file_id", fileID, "main_topic", st.MainTopic, "topics", len(st.Topics))

	participantsJSON, err := json.MarshalIndent(doc.Participants, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal participants: %w", err)
	}
	topics := make([]Topic, 0, len(st.Topics))
	for i, t := range st.Topics {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		t.SubTopicID = fmt.Sprint(i + 1)
		topics = append(topics, s.detailTopic(ctx, doc, t, string(participantsJSON)))
	}

	topicsJSON, err := json.MarshalIndent(topics, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal topics: %w", err)
	}
	raw, err := s.generator.Generate(ctx, generator.Request{Prompt: buildConsolidationPrompt(string(topicsJSON)), JSON: true})
	if err != nil {
		return "", fmt.Errorf("generate consolidation: %w", err)
	}
	var c consolidation
	if err := decodeModelJSON(raw, &c); err != nil {
		return "", fmt.Errorf("final %s: %w", fileID, err)
	}

	out := FinalDocument{
		Metadata: doc.Meta,
		FinalSummary: FinalSummary{
			MainTopic:   st.MainTopic,
			Domain:      st.Domain,
			Summary:     c.Summary,
			Decisions:   nonNilStrings(c.Decisions),
			ActionItems: nonNilActionItems(c.ActionItems),
			Topics:      topics,
		},
		Participants: doc.Participants,
		Utterances:   doc.Utterances,
	}
	key := FinalOutputKey(fileID)
	if err := s.snapshots.Put(ctx, key, out); err != nil {
		return "", err
	}
	slog.Info("final summary stored", "file_id", fileID, "key", key)
	return key, nil
}

func (s *Service) load(ctx context.Context, key string) (transcript.Snapshot, error) {
	raw, found, err := s.snapshots.Get(ctx, key)
	if err != nil {
		return transcript.Snapshot{}, fmt.Errorf("load %s: %w", key, err)
	}
	if !found {
		return transcript.Snapshot{}, fmt.Errorf("load %s: %w", key, ErrSnapshotNotFound)
	}
	var doc transcript.Snapshot
	if err := json.Unmarshal(raw, &doc); err != nil {
		return transcript.Snapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return doc, nil
}

func (s *Service) analyzeStructure(ctx context.Context, doc transcript.Snapshot) (structure, error) {
	meta, err := json.MarshalIndent(doc.Meta, "", "  ")
	if err != nil {
		return structure{}, err
	}
	participants, err := json.MarshalIndent(doc.Participants, "", "  ")
	if err != nil {
		return structure{}, err
	}
	lines, _ := conversationLines(doc, 0)
	if len(lines) == 0 {
		return structure{}, ErrEmptyConversation
	}
	input := fmt.Sprintf("# Metadata\n%s\n\n# Participants\n%s\n\n# Conversation\n%s\n", meta, participants, strings.Join(lines, "\n"))

	raw, err := s.generator.Generate(ctx, generator.Request{Prompt: buildStructurePrompt(input), JSON: true})
	if err != nil {
		return structure{}, fmt.Errorf("generate structure: %w", err)
	}
	var st structure
	if err := decodeModelJSON(raw, &st); err != nil {
		return structure{}, err
	}
	return st, nil
}

func (s *Service) detailTopic(ctx context.Context, doc transcript.Snapshot, t Topic, participants string) Topic {
	segment := segmentLines(doc, int64(t.StartID), int64(t.EndID), s.contextBuffer)
	if len(segment) == 0 {
		slog.Warn("topic range not found in transcript", "sub_topic", t.SubTopic, "start_id", t.StartID, "end_id", t.EndID)
		t.Error = "utterance range not found"
		return t
	}
	raw, err := s.generator.Generate(ctx, generator.Request{
		Prompt: buildDetailPrompt(t, s.contextBuffer, participants, strings.Join(segment, "\n")),
		JSON:   true,
	})
	if err != nil {
		slog.Error("failed to detail topic", "sub_topic", t.SubTopic, "error", err)
		t.Error = err.Error()
		return t
	}
	var d topicDetail
	if err := decodeModelJSON(raw, &d); err != nil {
		slog.Warn("failed to parse topic detail", "sub_topic", t.SubTopic, "error", err)
		t.Error = err.Error()
		return t
	}
	t.ShortSummary = d.ShortSummary
	t.Details = d.Details
	t.SegmentDecisions = d.SegmentDecisions
	t.SegmentActionItems = d.SegmentActionItems
	return t
}

func formatUtterance(u transcript.Utterance, names map[string]string) string {
	label, ok := names[u.SpeakerID]
	if !ok {
		label = u.SpeakerID
	}
	return fmt.Sprintf("[ID: %d] %s: %s", u.SequenceID, label, u.Text)
}

// conversationLines renders utterances up to and including endID (all when
// endID is zero). The bool reports whether endID was found.
func conversationLines(doc transcript.Snapshot, endID int64) ([]string, bool) {
	names := doc.SpeakerNames()
	lines := make([]string, 0, len(doc.Utterances))
	for _, u := range doc.Utterances {
		if u.SpeakerID != "" && u.Text != "" && u.SequenceID > 0 {
			lines = append(lines, formatUtterance(u, names))
		}
		if endID > 0 && u.SequenceID == endID {
			return lines, true
		}
	}
	return lines, false
}

// segmentLines renders the utterances between startID and endID plus buffer
// utterances on each side. It returns nil when either id is missing.
func segmentLines(doc transcript.Snapshot, startID, endID int64, buffer int) []string {
	startIdx, endIdx := -1, -1
	for i, u := range doc.Utterances {
		if u.SequenceID == startID && startIdx == -1 {
			startIdx = i
		}
		if u.SequenceID == endID {
			endIdx = i
		}
	}
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return nil
	}
	from := max(0, startIdx-buffer)
	to := min(len(doc.Utterances), endIdx+1+buffer)
	names := doc.SpeakerNames()
	lines := make([]string, 0, to-from)
	for _, u := range doc.Utterances[from:to] {
		lines = append(lines, formatUtterance(u, names))
	}
	return lines
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilActionItems(items []ActionItem) []ActionItem {
	if items == nil {
		return []ActionItem{}
	}
	return items
}
