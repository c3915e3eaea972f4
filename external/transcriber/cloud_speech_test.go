package transcriber

import (
	"context"
	"errors"
	"testing"

	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/gijiroku/internal/audio"
	"github.com/foxseedlab/gijiroku/internal/transcriber"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type mockRecognizeClient struct {
	requests []*speechpb.RecognizeRequest
	errs     []error
	resp     *speechpb.RecognizeResponse
}

func (m *mockRecognizeClient) Recognize(_ context.Context, req *speechpb.RecognizeRequest, _ ...gax.CallOption) (*speechpb.RecognizeResponse, error) {
	m.requests = append(m.requests, req)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return m.resp, nil
}

func result(text string, conf float32) *speechpb.SpeechRecognitionResult {
	return &speechpb.SpeechRecognitionResult{
		Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: text, Confidence: conf}},
	}
}

func testSegment() audio.Frame {
	return audio.Frame{Samples: make([]int16, 1600), SampleRate: 16000, Channels: 1}
}

func TestRecognize_BuildsRequestAndReturnsFinals(t *testing.T) {
	client := &mockRecognizeClient{resp: &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		result("안녕하세요", 0.9),
		{Alternatives: nil},
		result("회의를 시작합니다", 0),
	}}}
	r := newCloudSpeechRecognizer(client, CloudSpeechConfig{ProjectID: "p", Language: "ko-KR", Model: "long", PrimingPrompt: "예산, 일정"}, "global")

	events, err := r.Recognize(context.Background(), testSegment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].Text != "안녕하세요" || events[1].Type != transcriber.EventFinal {
		t.Fatalf("unexpected events: %+v", events)
	}
	req := client.requests[0]
	if req.GetRecognizer() != "projects/p/locations/global/recognizers/_" {
		t.Fatalf("unexpected recognizer: %s", req.GetRecognizer())
	}
	if got := req.GetConfig().GetExplicitDecodingConfig().GetSampleRateHertz(); got != 16000 {
		t.Fatalf("unexpected sample rate: %d", got)
	}
	if len(req.GetContent()) != 3200 {
		t.Fatalf("unexpected content length: %d", len(req.GetContent()))
	}
	phrases := req.GetConfig().GetAdaptation().GetPhraseSets()[0].GetInlinePhraseSet().GetPhrases()
	if len(phrases) != 2 || phrases[1].GetValue() != "일정" {
		t.Fatalf("unexpected phrases: %v", phrases)
	}
}

func TestRecognize_DropsLowConfidence(t *testing.T) {
	client := &mockRecognizeClient{resp: &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{
		result("noise", 0.2),
		result("speech", 0.8),
	}}}
	r := newCloudSpeechRecognizer(client, CloudSpeechConfig{ProjectID: "p", Language: "ko-KR", MinConfidence: 0.6}, "global")
	events, err := r.Recognize(context.Background(), testSegment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].Text != "speech" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestRecognize_RetriesTransientOnce(t *testing.T) {
	client := &mockRecognizeClient{
		errs: []error{status.Error(codes.Unavailable, "try again")},
		resp: &speechpb.RecognizeResponse{Results: []*speechpb.SpeechRecognitionResult{result("ok", 0.9)}},
	}
	r := newCloudSpeechRecognizer(client, CloudSpeechConfig{ProjectID: "p", Language: "ko-KR"}, "global")
	events, err := r.Recognize(context.Background(), testSegment())
	if err != nil || len(events) != 1 {
		t.Fatalf("unexpected result: %v %v", events, err)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(client.requests))
	}
}

func TestRecognize_PermanentErrorReturned(t *testing.T) {
	client := &mockRecognizeClient{errs: []error{status.Error(codes.PermissionDenied, "no")}}
	r := newCloudSpeechRecognizer(client, CloudSpeechConfig{ProjectID: "p", Language: "ko-KR"}, "global")
	if _, err := r.Recognize(context.Background(), testSegment()); err == nil {
		t.Fatal("expected error")
	}
	if len(client.requests) != 1 {
		t.Fatalf("expected a single request, got %d", len(client.requests))
	}
}

func TestRecognize_EmptySegment(t *testing.T) {
	client := &mockRecognizeClient{}
	r := newCloudSpeechRecognizer(client, CloudSpeechConfig{ProjectID: "p"}, "global")
	events, err := r.Recognize(context.Background(), audio.Frame{})
	if err != nil || events != nil || len(client.requests) != 0 {
		t.Fatalf("unexpected result: %v %v", events, err)
	}
}

func TestIsTransientRecognizeError(t *testing.T) {
	if isTransientRecognizeError(context.Canceled) {
		t.Fatal("context cancellation must not be transient")
	}
	if isTransientRecognizeError(errors.New("plain")) {
		t.Fatal("non-grpc errors must not be transient")
	}
	if !isTransientRecognizeError(status.Error(codes.ResourceExhausted, "quota")) {
		t.Fatal("resource exhausted should be transient")
	}
}

func TestCloudSpeechRecognizer_AcceptsSpeechClient(t *testing.T) {
	var _ recognizeClient = (*speech.Client)(nil)
}
