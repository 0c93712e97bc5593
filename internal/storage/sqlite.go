package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Neuromancer95/bf6-stats-pipeline/internal/gametools"
)

// DefaultDBName is the SQLite store created under the output directory.
const DefaultDBName = "bf6_stats.db"

// WriteSQLite appends one flattened row per result to the stats table,
// creating it if needed. The store is an append-only log across runs; rows
// are never replaced. An empty result list writes nothing and just reports
// where the store would live.
func WriteSQLite(results []gametools.Record, outputDir, runID string) (string, error) {
	path := filepath.Join(outputDir, DefaultDBName)
	if len(results) == 0 {
		return path, nil
	}
	if err := ensureOutputDir(outputDir); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return "", fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	columns := append([]string{"run_id", "fetched_at"}, summaryKeys...)
	// All columns TEXT: the API payload is heterogeneous and SQLite's typing
	// is loose anyway.
	colDefs := make([]string, len(columns))
	for i, c := range columns {
		colDefs[i] = c + " TEXT"
	}
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS stats (" + strings.Join(colDefs, ", ") + ")"); err != nil {
		return "", fmt.Errorf("create stats table: %w", err)
	}

	fetchedAt := isoTimestamp(time.Now())
	rid := runID
	if rid == "" {
		rid = TimestampRunID()
	}

	insert := "INSERT INTO stats (" + strings.Join(columns, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insert)
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range results {
		summary := FlattenSummary(rec)
		args := make([]any, len(columns))
		args[0] = rid
		args[1] = fetchedAt
		for i, key := range columns[2:] {
			if v, present := summary.Get(key); present {
				args[i+2] = formatValue(v)
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return "", fmt.Errorf("insert stats row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return path, nil
}
