package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/foxseedlab/gijiroku/internal/status"
)

const defaultRequestTimeout = 10 * time.Second

type HTTPReporter struct {
	statusURL string
	client    *http.Client
}

type statusPayload struct {
	RoomName string               `json:"roomName"`
	Status   status.SessionStatus `json:"status"`
}

func NewHTTPReporter(statusURL string) status.Reporter {
	return &HTTPReporter{
		statusURL: statusURL,
		client:    &http.Client{Timeout: defaultRequestTimeout},
	}
}

func (r *HTTPReporter) UpdateStatus(ctx context.Context, roomName string, s status.SessionStatus) error {
	if r.statusURL == "" {
		return nil
	}

	b, err := json.Marshal(statusPayload{RoomName: roomName, Status: s})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, r.statusURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("session status endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
