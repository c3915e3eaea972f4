package summary

import (
	"fmt"
	"strings"
)

const recapPromptTemplate = `너는 회의에 늦게 들어온 참가자에게 지금까지의 흐름을 알려 주는 서기다.
아래 [대화]를 읽고 늦게 온 사람이 바로 회의에 참여할 수 있도록 요약하라.

[출력]
마크다운 없이 JSON 객체 하나만 출력하라.
{
  "current_topic": "지금 논의 중인 주제",
  "summary_so_far": ["지금까지 나온 핵심 흐름을 시간 순서대로"],
  "key_decisions": ["확정된 결정 사항, 없으면 빈 배열"],
  "catch_up_tip": "지금 바로 참여하려면 알아야 할 한 문장"
}

[대화]
%s
`

const structurePromptTemplate = `너는 회의록의 뼈대를 잡는 분석가다.
아래 회의 기록을 읽고 회의의 큰 주제와 분야를 정한 뒤, 대화를 주제별 구간으로 나눠라.
각 구간은 발화 ID 범위(start_id, end_id)로 표시하고 type은 discussion, decision, report, brainstorming 중 하나로 정한다.

[출력]
마크다운 없이 JSON 객체 하나만 출력하라.
{
  "main_topic": "회의 전체 주제",
  "domain": "회의 분야",
  "topics": [
    {"sub_topic": "구간 주제", "type": "discussion", "start_id": 1, "end_id": 10}
  ]
}

%s
`

const detailPromptTemplate = `너는 회의록의 한 구간을 자세히 정리하는 분석가다.

[분석 대상]
- 주제: %s
- 핵심 구간: ID %d ~ %d
- 앞뒤로 최대 %d개의 발화가 문맥 참고용으로 함께 들어 있다.

[참가자]
%s

[지시]
1. details는 아래 작성 지침의 구조를 따른다.
2. segment_decisions에는 이 구간에서 합의된 내용만 문장으로 넣는다. 없으면 빈 배열.
3. segment_action_items에는 할 일(task), 담당자(assignee), 기한(due_date)을 넣는다.
   assignee는 참가자 목록의 name 값을 쓰고, 알 수 없으면 "미정"으로 쓴다. 기한을 모르면 "미정"으로 쓴다.

[작성 지침]
%s

[출력]
마크다운 없이 JSON 객체 하나만 출력하라.
{
  "short_summary": "이 구간의 한두 문장 요약",
  "details": {},
  "segment_decisions": [],
  "segment_action_items": [{"task": "", "assignee": "", "due_date": ""}]
}

[대화]
%s
`

const consolidationPromptTemplate = `너는 구간별로 정리된 회의 분석 결과를 하나의 최종 회의록으로 묶는 편집자다.
아래 [구간 분석]을 바탕으로 회의 전체 요약, 결정 사항, 실행 항목을 정리하라.
같은 내용이 여러 구간에 나오면 하나로 합친다.

[출력]
마크다운 없이 JSON 객체 하나만 출력하라.
{
  "summary": "회의 전체 요약",
  "decisions": ["최종 결정 사항"],
  "action_items": [{"task": "", "assignee": "", "due_date": ""}]
}

[구간 분석]
%s
`

var topicTypeGuides = map[string]string{
	"discussion":    `{"background": "논의 배경", "opinions": ["참가자별 주요 의견"], "open_issues": ["남은 쟁점"]}`,
	"decision":      `{"options": ["검토한 선택지"], "rationale": "결정 근거", "outcome": "결정 결과"}`,
	"report":        `{"reporter": "보고자 이름", "key_points": ["보고 핵심"], "questions": ["나온 질문"]}`,
	"brainstorming": `{"ideas": ["나온 아이디어"], "favored": ["반응이 좋았던 아이디어"]}`,
}

const defaultTopicGuide = `{"key_points": ["핵심 내용"]}`

func topicGuide(topicType string) string {
	if g, ok := topicTypeGuides[strings.ToLower(topicType)]; ok {
		return g
	}
	return defaultTopicGuide
}

func buildRecapPrompt(conversation string) string {
	return fmt.Sprintf(recapPromptTemplate, conversation)
}

func buildStructurePrompt(meetingInput string) string {
	return fmt.Sprintf(structurePromptTemplate, meetingInput)
}

func buildDetailPrompt(t Topic, buffer int, participants, segment string) string {
	return fmt.Sprintf(detailPromptTemplate, t.SubTopic, t.StartID, t.EndID, buffer, participants, topicGuide(t.Type), segment)
}

func buildConsolidationPrompt(topicsJSON string) string {
	return fmt.Sprintf(consolidationPromptTemplate, topicsJSON)
}
