package summary

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/foxseedlab/gijiroku/internal/transcript"
)

type Recap struct {
	CurrentTopic string   `json:"current_topic"`
	SummarySoFar []string `json:"summary_so_far"`
	KeyDecisions []string `json:"key_decisions"`
	CatchUpTip   string   `json:"catch_up_tip"`
}

type ActionItem struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee"`
	DueDate  string `json:"due_date"`
}

// UtteranceRef is an utterance id that models may emit as a number or a
// string.
type UtteranceRef int64

func (r *UtteranceRef) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*r = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*r = UtteranceRef(n)
	return nil
}

type Topic struct {
	SubTopicID         string          `json:"sub_topic_id"`
	SubTopic           string          `json:"sub_topic"`
	Type               string          `json:"type"`
	StartID            UtteranceRef    `json:"start_id"`
	EndID              UtteranceRef    `json:"end_id"`
	ShortSummary       string          `json:"short_summary,omitempty"`
	Details            json.RawMessage `json:"details,omitempty"`
	SegmentDecisions   []string        `json:"segment_decisions,omitempty"`
	SegmentActionItems []ActionItem    `json:"segment_action_items,omitempty"`
	Error              string          `json:"error,omitempty"`
}

type structure struct {
	MainTopic string  `json:"main_topic"`
	Domain    string  `json:"domain"`
	Topics    []Topic `json:"topics"`
}

type topicDetail struct {
	ShortSummary       string          `json:"short_summary"`
	Details            json.RawMessage `json:"details"`
	SegmentDecisions   []string        `json:"segment_decisions"`
	SegmentActionItems []ActionItem    `json:"segment_action_items"`
}

type consolidation struct {
	Summary     string       `json:"summary"`
	Decisions   []string     `json:"decisions"`
	ActionItems []ActionItem `json:"action_items"`
}

type FinalSummary struct {
	MainTopic   string       `json:"main_topic"`
	Domain      string       `json:"domain"`
	Summary     string       `json:"summary"`
	Decisions   []string     `json:"decisions"`
	ActionItems []ActionItem `json:"action_items"`
	Topics      []Topic      `json:"topics"`
}

// FinalDocument is the end-of-session meeting minutes.
type FinalDocument struct {
	Metadata     transcript.Meta                `json:"metadata"`
	FinalSummary FinalSummary                   `json:"final_summary"`
	Participants []transcript.ParticipantRecord `json:"participants"`
	Utterances   []transcript.Utterance         `json:"utterances"`
}
