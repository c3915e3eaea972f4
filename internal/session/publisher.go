package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/foxseedlab/gijiroku/internal/decision"
	"github.com/foxseedlab/gijiroku/internal/discord"
	"github.com/foxseedlab/gijiroku/internal/summary"
)

const (
	eventVoteCreated    = "VOTE_CREATED"
	eventRecapGenerated = "RECAP_GENERATED"
)

type eventEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// channelPublisher broadcasts vote events to the meeting channel with the
// event envelope attached as JSON.
type channelPublisher struct {
	discord   discord.Client
	channelID string
	names     func(userID string) string
}

func (p *channelPublisher) PublishVoteCreated(_ context.Context, event decision.Event) error {
	body, err := json.Marshal(eventEnvelope{Type: eventVoteCreated, Data: event})
	if err != nil {
		return fmt.Errorf("marshal vote event: %w", err)
	}
	return p.discord.SendChannelMessageWithFile(p.channelID, discord.FileMessage{
		Content:  voteMessage(event.Topic, event.Options, p.names(event.Proposer)),
		Filename: voteAttachmentName,
		FileBody: body,
	})
}

// publishRecap sends a generated recap to the requester only.
func publishRecap(dc discord.Client, requesterID, roomName string, doc json.RawMessage) error {
	body, err := json.Marshal(eventEnvelope{Type: eventRecapGenerated, Data: doc})
	if err != nil {
		return fmt.Errorf("marshal recap event: %w", err)
	}
	var recap summary.Recap
	if err := json.Unmarshal(doc, &recap); err != nil {
		slog.Warn("recap document has an unexpected shape; sending attachment only", "error", err)
	}
	return dc.SendDirectMessageWithFile(requesterID, discord.FileMessage{
		Content:  recapMessage(roomName, recap),
		Filename: recapAttachmentName,
		FileBody: body,
	})
}
