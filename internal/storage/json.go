package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Neuromancer95/bf6-stats-pipeline/internal/gametools"
)

// WriteJSON serializes the raw result list verbatim, pretty-printed,
// preserving every field the API returned. Returns the path written.
func WriteJSON(results []gametools.Record, outputDir, runID string) (string, error) {
	if err := ensureOutputDir(outputDir); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, statsFilename(runID, "json"))

	if results == nil {
		results = []gametools.Record{}
	}
	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	if err := os.WriteFile(path, append(raw, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write json: %w", err)
	}
	return path, nil
}
