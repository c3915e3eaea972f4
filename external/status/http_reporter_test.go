package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foxseedlab/gijiroku/internal/status"
)

func TestUpdateStatus_EmptyURL(t *testing.T) {
	reporter := NewHTTPReporter("")
	if err := reporter.UpdateStatus(context.Background(), "room", status.InProgress); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestUpdateStatus_Success(t *testing.T) {
	var got statusPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	reporter := NewHTTPReporter(server.URL)
	if err := reporter.UpdateStatus(context.Background(), "weekly-sync", status.Completed); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.RoomName != "weekly-sync" || got.Status != status.Completed {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestUpdateStatus_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	reporter := NewHTTPReporter(server.URL)
	if err := reporter.UpdateStatus(context.Background(), "room", status.InProgress); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
