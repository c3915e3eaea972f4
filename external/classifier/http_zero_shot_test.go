package classifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify_ObjectResponse(t *testing.T) {
	var got zeroShotRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.Header.Get("Authorization") != "Bearer hf-token" {
			t.Fatalf("unexpected authorization header: %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"sequence":"x","labels":["인사","의사결정 요청"],"scores":[0.1,0.9]}`))
	}))
	defer server.Close()

	c := NewHTTPZeroShot(server.URL, "hf-token", "")
	res, err := c.Classify(context.Background(), "투표로 정할까요?", []string{"의사결정 요청", "인사"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Labels[0] != "의사결정 요청" || res.Scores[0] != 0.9 {
		t.Fatalf("unexpected ranking: %+v", res)
	}
	if got.Inputs != "투표로 정할까요?" || got.Parameters.HypothesisTemplate != "이 문장은 {}." || len(got.Parameters.CandidateLabels) != 2 {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestParseZeroShotResponse_ListForms(t *testing.T) {
	res, err := parseZeroShotResponse([]byte(`[{"label":"a","score":0.2},{"label":"b","score":0.8}]`))
	if err != nil || res.Labels[0] != "b" {
		t.Fatalf("unexpected result: %+v %v", res, err)
	}
	res, err = parseZeroShotResponse([]byte(`[[{"label":"a","score":0.6},{"label":"b","score":0.4}]]`))
	if err != nil || res.Labels[0] != "a" {
		t.Fatalf("unexpected result: %+v %v", res, err)
	}
}

func TestParseZeroShotResponse_Invalid(t *testing.T) {
	for _, body := range []string{`{}`, `[]`, `not json`, `{"labels":["a"],"scores":[]}`} {
		if _, err := parseZeroShotResponse([]byte(body)); err == nil {
			t.Fatalf("expected error for %s", body)
		}
	}
}

func TestClassify_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"loading"}`))
	}))
	defer server.Close()

	c := NewHTTPZeroShot(server.URL, "", "")
	if _, err := c.Classify(context.Background(), "x", []string{"a"}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
