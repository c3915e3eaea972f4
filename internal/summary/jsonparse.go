package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// stripCodeFence removes a surrounding ``` or ```json fence from model output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeModelJSON unmarshals model output into v, repairing malformed JSON
// once before giving up.
func decodeModelJSON(raw string, v any) error {
	text := stripCodeFence(raw)
	err := json.Unmarshal([]byte(text), v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return fmt.Errorf("decode model output: %w", err)
	}
	repaired, repairErr := jsonrepair.JSONRepair(text)
	if repairErr != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	slog.Debug("repaired malformed model output", "original_error", err)
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("decode repaired model output: %w", err)
	}
	return nil
}
