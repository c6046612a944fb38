package pipeline

import (
	"encoding/json"
	"strings"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
)

// cleanFences strips optional markdown code fences around a model response.
func cleanFences(response string) string {
	cleaned := strings.TrimSpace(response)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}

// decodeOr parses a model response as JSON into T. On any parse failure it
// logs the offending text and returns the caller's default unchanged, with
// ok=false. Every generative stage decodes through this so malformed model
// output degrades a single field instead of aborting the chain.
func decodeOr[T any](raw string, def T) (T, bool) {
	cleaned := cleanFences(raw)

	var out T
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		logging.Get(logging.CategoryPipeline).Warn(
			"[Decode] parse failed: %v; response: %s", err, limitString(raw, 500))
		return def, false
	}
	return out, true
}

func limitString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
