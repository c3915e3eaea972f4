package transcript

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// DefaultAttributeKeys are always present on a participant record.
var DefaultAttributeKeys = []string{"age", "occupation", "role", "sex"}

const unknownAttribute = "unknown"

type Utterance struct {
	SequenceID int64     `json:"id"`
	Timestamp  time.Time `json:"start_time"`
	SpeakerID  string    `json:"USER_ID"`
	Text       string    `json:"content"`
}

// ParticipantRecord serializes flat: {"USER_ID":..., "name":..., "<attr>":...}.
type ParticipantRecord struct {
	ID          string
	DisplayName string
	Attributes  map[string]string
}

type Meta struct {
	RoomName         string    `json:"roomname"`
	StartedAt        time.Time `json:"date"`
	ParticipantCount int       `json:"participant_num"`
	SpeakerCount     int       `json:"speaker_num"`
}

// Snapshot is the persisted transcript document.
type Snapshot struct {
	Meta         Meta                `json:"metadata"`
	Participants []ParticipantRecord `json:"participants"`
	Utterances   []Utterance         `json:"utterances"`
}

func (p ParticipantRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(p.Attributes)+2)
	for k, v := range p.Attributes {
		out[k] = v
	}
	out["USER_ID"] = p.ID
	out["name"] = p.DisplayName
	return json.Marshal(out)
}

func (p *ParticipantRecord) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p.Attributes = make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			s = fmt.Sprint(v)
		}
		switch k {
		case "USER_ID":
			p.ID = s
		case "name":
			p.DisplayName = s
		default:
			p.Attributes[k] = s
		}
	}
	return nil
}

// AttributeKeys returns the record's attribute keys in sorted order.
func (p ParticipantRecord) AttributeKeys() []string {
	keys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SpeakerNames maps speaker ids to display names, falling back to the id.
func (s Snapshot) SpeakerNames() map[string]string {
	names := make(map[string]string, len(s.Participants))
	for _, p := range s.Participants {
		if p.DisplayName != "" {
			names[p.ID] = p.DisplayName
		} else {
			names[p.ID] = p.ID
		}
	}
	return names
}

func withDefaultAttributes(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs)+len(DefaultAttributeKeys))
	for _, k := range DefaultAttributeKeys {
		out[k] = unknownAttribute
	}
	for k, v := range attrs {
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}
