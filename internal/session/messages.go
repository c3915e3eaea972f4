package session

import (
	"fmt"
	"strings"

	"github.com/foxseedlab/gijiroku/internal/discord"
	"github.com/foxseedlab/gijiroku/internal/summary"
)

const (
	slashCommandRecap            = "recap"
	slashCommandRecapDescription = "지금까지의 회의 내용을 요약해서 DM으로 보내 드립니다."

	messageEphemeralWrongGuild     = ":warning: **이 서버에서는 사용할 수 없습니다.**"
	messageEphemeralUnknownCommand = ":warning: **알 수 없는 명령입니다.**"
	messageEphemeralLookupFailed   = ":warning: **음성 채널 참여 상태를 확인하지 못했습니다.**"
	messageEphemeralJoinVCFirst    = ":warning: **회의 음성 채널에 들어온 뒤에 실행해 주세요.**"
	messageEphemeralNoMeeting      = ":warning: **진행 중인 회의가 없습니다.**"
	messageEphemeralRecapAccepted  = ":hourglass: **요약을 만들고 있습니다. 완료되면 DM으로 보내 드립니다.**"

	messageMeetingStarted = ":microphone2: **회의 기록을 시작했습니다.**\n-# /recap 명령으로 지금까지의 내용을 받아볼 수 있습니다."
	messageMeetingEnded   = ":pause_button: **회의 기록을 마쳤습니다.**"

	voteAttachmentName  = "vote_created.json"
	recapAttachmentName = "recap_generated.json"
)

// SlashCommandDefinitions lists the guild commands the bot registers.
func SlashCommandDefinitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{Name: slashCommandRecap, Description: slashCommandRecapDescription},
	}
}

func voteMessage(topic string, options []string, proposer string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, ":ballot_box: **투표 제안: %s**\n", topic)
	if len(options) > 0 {
		sb.WriteString("선택지: " + strings.Join(options, " / ") + "\n")
	}
	fmt.Fprintf(&sb, "-# 제안자: %s", proposer)
	return sb.String()
}

func recapMessage(roomName string, r summary.Recap) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, ":page_facing_up: **%s 회의 중간 요약**\n", roomName)
	if r.CurrentTopic != "" {
		fmt.Fprintf(&sb, "**현재 주제**: %s\n", r.CurrentTopic)
	}
	if len(r.SummarySoFar) > 0 {
		sb.WriteString("**지금까지의 흐름**\n")
		for i, item := range r.SummarySoFar {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
		}
	}
	if len(r.KeyDecisions) > 0 {
		sb.WriteString("**결정 사항**\n")
		for _, item := range r.KeyDecisions {
			sb.WriteString("- " + item + "\n")
		}
	}
	if r.CatchUpTip != "" {
		fmt.Fprintf(&sb, ":bulb: %s", r.CatchUpTip)
	}
	return strings.TrimRight(sb.String(), "\n")
}
