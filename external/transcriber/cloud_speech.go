package transcriber

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/gijiroku/internal/audio"
	"github.com/foxseedlab/gijiroku/internal/transcriber"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	primingPhraseBoost    = 10
)

type CloudSpeechConfig struct {
	ProjectID       string
	CredentialsJSON string
	Language        string
	Location        string
	Model           string
	PrimingPrompt   string
	MinConfidence   float64
}

type recognizeClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
}

// CloudSpeechRecognizer runs synchronous Cloud Speech v2 recognition on
// VAD-bounded segments.
type CloudSpeechRecognizer struct {
	client        recognizeClient
	closeFn       func() error
	recognizer    string
	language      string
	model         string
	phrases       []string
	minConfidence float32
}

func NewCloudSpeechRecognizer(ctx context.Context, cfg CloudSpeechConfig) (*CloudSpeechRecognizer, error) {
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "global"
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", location, speechAPIEndpointPort)))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	slog.Info("cloud speech recognizer initialized", "location", location, "language", cfg.Language, "model", cfg.Model)

	r := newCloudSpeechRecognizer(client, cfg, location)
	r.closeFn = client.Close
	return r, nil
}

func newCloudSpeechRecognizer(client recognizeClient, cfg CloudSpeechConfig, location string) *CloudSpeechRecognizer {
	return &CloudSpeechRecognizer{
		client:        client,
		closeFn:       func() error { return nil },
		recognizer:    fmt.Sprintf("projects/%s/locations/%s/recognizers/_", cfg.ProjectID, location),
		language:      cfg.Language,
		model:         strings.TrimSpace(cfg.Model),
		phrases:       primingPhrases(cfg.PrimingPrompt),
		minConfidence: float32(cfg.MinConfidence),
	}
}

func (r *CloudSpeechRecognizer) Close() error {
	return r.closeFn()
}

func (r *CloudSpeechRecognizer) Recognize(ctx context.Context, segment audio.Frame) ([]transcriber.SpeechEvent, error) {
	if len(segment.Samples) == 0 {
		return nil, nil
	}
	req := &speechpb.RecognizeRequest{
		Recognizer:  r.recognizer,
		Config:      r.recognitionConfig(segment),
		AudioSource: &speechpb.RecognizeRequest_Content{Content: segment.Bytes()},
	}

	resp, err := r.client.Recognize(ctx, req)
	if err != nil && isTransientRecognizeError(err) && ctx.Err() == nil {
		slog.Warn("cloud speech recognize failed with transient error; retrying once", "error", err)
		resp, err = r.client.Recognize(ctx, req)
	}
	if err != nil {
		return nil, fmt.Errorf("cloud speech recognize: %w", err)
	}

	var events []transcriber.SpeechEvent
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		best := alts[0]
		conf := best.GetConfidence()
		if r.minConfidence > 0 && conf > 0 && conf < r.minConfidence {
			slog.Debug("dropping low-confidence recognition", "confidence", conf, "min_confidence", r.minConfidence)
			continue
		}
		events = append(events, transcriber.SpeechEvent{
			Type:       transcriber.EventFinal,
			Text:       best.GetTranscript(),
			Confidence: conf,
		})
	}
	return events, nil
}

func (r *CloudSpeechRecognizer) recognitionConfig(segment audio.Frame) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		Model:         r.model,
		LanguageCodes: []string{r.language},
		DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
			ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
				Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
				SampleRateHertz:   int32(segment.SampleRate),
				AudioChannelCount: int32(segment.Channels),
			},
		},
		Features: &speechpb.RecognitionFeatures{
			EnableAutomaticPunctuation: true,
		},
	}
	if len(r.phrases) > 0 {
		phrases := make([]*speechpb.PhraseSet_Phrase, 0, len(r.phrases))
		for _, p := range r.phrases {
			phrases = append(phrases, &speechpb.PhraseSet_Phrase{Value: p, Boost: primingPhraseBoost})
		}
		cfg.Adaptation = &speechpb.SpeechAdaptation{
			PhraseSets: []*speechpb.SpeechAdaptation_AdaptationPhraseSet{
				{
					Value: &speechpb.SpeechAdaptation_AdaptationPhraseSet_InlinePhraseSet{
						InlinePhraseSet: &speechpb.PhraseSet{Phrases: phrases},
					},
				},
			},
		}
	}
	return cfg
}

// primingPhrases splits the priming prompt on commas and newlines.
func primingPhrases(prompt string) []string {
	fields := strings.FieldsFunc(prompt, func(r rune) bool {
		return r == ',' || r == '\n' || r == '、'
	})
	var out []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isTransientRecognizeError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}
