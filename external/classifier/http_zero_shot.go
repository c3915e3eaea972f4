package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/foxseedlab/gijiroku/internal/classifier"
)

const (
	requestTimeout        = 30 * time.Second
	maxErrorBodyBytes     = 512
	defaultHypothesisTmpl = "이 문장은 {}."
)

// HTTPZeroShot calls a Hugging Face style zero-shot classification endpoint.
type HTTPZeroShot struct {
	url                string
	token              string
	hypothesisTemplate string
	client             *http.Client
}

func NewHTTPZeroShot(url, token, hypothesisTemplate string) *HTTPZeroShot {
	if hypothesisTemplate == "" {
		hypothesisTemplate = defaultHypothesisTmpl
	}
	return &HTTPZeroShot{
		url:                url,
		token:              token,
		hypothesisTemplate: hypothesisTemplate,
		client:             &http.Client{Timeout: requestTimeout},
	}
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels    []string `json:"candidate_labels"`
	HypothesisTemplate string   `json:"hypothesis_template"`
	MultiLabel         bool     `json:"multi_label"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (c *HTTPZeroShot) Classify(ctx context.Context, text string, labels []string) (classifier.Result, error) {
	b, err := json.Marshal(zeroShotRequest{
		Inputs: text,
		Parameters: zeroShotParameters{
			CandidateLabels:    labels,
			HypothesisTemplate: c.hypothesisTemplate,
		},
	})
	if err != nil {
		return classifier.Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return classifier.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return classifier.Result{}, fmt.Errorf("zero-shot request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifier.Result{}, fmt.Errorf("read zero-shot response: %w", err)
	}
	if !isHTTPSuccessStatus(resp.StatusCode) {
		if len(body) > maxErrorBodyBytes {
			body = body[:maxErrorBodyBytes]
		}
		return classifier.Result{}, fmt.Errorf("zero-shot endpoint returned status %d: %s", resp.StatusCode, body)
	}
	return parseZeroShotResponse(body)
}

// parseZeroShotResponse accepts {"labels":[...],"scores":[...]} and the
// list form [{"label":...,"score":...}], optionally wrapped in another list.
func parseZeroShotResponse(body []byte) (classifier.Result, error) {
	var obj zeroShotResponse
	if err := json.Unmarshal(body, &obj); err == nil && len(obj.Labels) > 0 {
		if len(obj.Labels) != len(obj.Scores) {
			return classifier.Result{}, fmt.Errorf("zero-shot response has %d labels but %d scores", len(obj.Labels), len(obj.Scores))
		}
		return rank(obj.Labels, obj.Scores), nil
	}

	var list []labelScore
	if err := json.Unmarshal(body, &list); err != nil {
		var nested [][]labelScore
		if nestedErr := json.Unmarshal(body, &nested); nestedErr != nil || len(nested) == 0 {
			return classifier.Result{}, fmt.Errorf("unrecognized zero-shot response: %w", err)
		}
		list = nested[0]
	}
	if len(list) == 0 {
		return classifier.Result{}, fmt.Errorf("zero-shot response has no labels")
	}
	labels := make([]string, len(list))
	scores := make([]float64, len(list))
	for i, ls := range list {
		labels[i] = ls.Label
		scores[i] = ls.Score
	}
	return rank(labels, scores), nil
}

func rank(labels []string, scores []float64) classifier.Result {
	idx := make([]int, len(labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	out := classifier.Result{Labels: make([]string, len(idx)), Scores: make([]float64, len(idx))}
	for i, j := range idx {
		out.Labels[i] = labels[j]
		out.Scores[i] = scores[j]
	}
	return out
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

var _ classifier.ZeroShot = (*HTTPZeroShot)(nil)
