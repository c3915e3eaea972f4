package decision

import (
	"encoding/json"
	"errors"
	"strings"
)

// DecisionLabel is the only candidate label that lets a line through to
// the confirmation step.
const DecisionLabel = "참여자들에게 선택지를 제시하거나 투표로 정하자고 요청하는 발화"

var candidateLabels = []string{
	DecisionLabel,
	"인사나 안부만 주고받는 발화",
	"아무것도 정하지 않는 잡담이나 농담",
	"결정을 요구하지 않고 정보나 상황만 설명하는 발화",
	"회의 순서나 진행을 안내하는 발화",
	"의견은 묻지만 투표까지는 필요 없는 발화",
}

// CandidateLabels returns the zero-shot label set, decision label first.
func CandidateLabels() []string {
	out := make([]string, len(candidateLabels))
	copy(out, candidateLabels)
	return out
}

const confirmInstructions = `너는 회의록을 정리하는 서기다.
아래 대화 흐름을 참고해서 마지막 [후보 발화]가 참여자들의 선택이나 투표를 요청하는 발언인지 판단하라.

[기준]
- "어느 쪽으로 할까요?", "투표로 정하죠", "1번과 2번 중에 골라 주세요"처럼 구체적인 선택을 요구하면 투표다.
- 일정, 장소, 방식 같은 여러 후보 중 하나를 고르게 하는 경우도 투표다.
- 안건에 대한 찬반을 묻는 경우도 투표다.
- 단순한 제안, 설명, 잡담, 농담은 투표가 아니다.
- topic은 "점심 메뉴 선정"처럼 짧은 명사구로 쓴다.
- options에는 후보 발화나 바로 앞뒤 발화에 나온 선택지만 넣고, 없으면 []로 둔다.

[출력]
JSON 객체 하나만 출력하라.
투표인 경우: {"is_vote": true, "topic": "주제", "options": ["선택지1", "선택지2"]}
투표가 아닌 경우: {"is_vote": false}`

func buildConfirmPrompt(window *Window, speakerID, text string) string {
	var sb strings.Builder
	sb.WriteString(confirmInstructions)
	sb.WriteString("\n\n[대화 컨텍스트]\n")
	sb.WriteString(window.String())
	sb.WriteString("\n\n[후보 발화]\n")
	sb.WriteString(formatLine(speakerID, text))
	sb.WriteString("\n")
	return sb.String()
}

var errNotAVote = errors.New("not a vote")

type extraction struct {
	Topic   string
	Options []string
}

// parseConfirmation accepts a single object or a list whose first element is
// that object. Anything else, a false verdict, or an empty topic is rejected.
func parseConfirmation(raw string) (extraction, error) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return extraction{}, err
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return extraction{}, errNotAVote
		}
		v = list[0]
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return extraction{}, errNotAVote
	}
	if isVote, _ := obj["is_vote"].(bool); !isVote {
		return extraction{}, errNotAVote
	}
	topic, _ := obj["topic"].(string)
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return extraction{}, errNotAVote
	}
	options := []string{}
	if list, ok := obj["options"].([]any); ok {
		for _, o := range list {
			if s, ok := o.(string); ok {
				options = append(options, s)
			}
		}
	}
	return extraction{Topic: topic, Options: options}, nil
}
