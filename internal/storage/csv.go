package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Neuromancer95/bf6-stats-pipeline/internal/gametools"
)

// WriteCSV flattens every record to its summary and writes one row per
// player. The header is the union of summary keys in first-seen order, so
// fields introduced by later records append after the first record's keys.
func WriteCSV(results []gametools.Record, outputDir, runID string) (string, error) {
	if len(results) == 0 {
		return "", errors.New("no results to write to CSV")
	}

	summaries := make([]*Summary, 0, len(results))
	for _, rec := range results {
		summaries = append(summaries, FlattenSummary(rec))
	}
	header := unionKeys(summaries)

	if err := ensureOutputDir(outputDir); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outputDir, statsFilename(runID, "csv"))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(header))
	for _, s := range summaries {
		for i, key := range header {
			if v, present := s.Get(key); present {
				row[i] = formatValue(v)
			} else {
				row[i] = ""
			}
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return path, nil
}

// unionKeys collects every summary's keys, preserving first-seen order.
func unionKeys(summaries []*Summary) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, s := range summaries {
		for _, k := range s.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}
