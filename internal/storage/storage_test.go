package storage

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Neuromancer95/bf6-stats-pipeline/internal/gametools"
)

func TestFlattenSummary(t *testing.T) {
	rec := gametools.Record{
		"userName":   "foo",
		"kills":      float64(10),
		"mapStats":   map[string]any{"ignored": true}, // not allow-listed
		"winPercent": 52.5,
	}
	s := FlattenSummary(rec)

	want := []string{"fetched_at", "userName", "kills", "winPercent"}
	if !reflect.DeepEqual(s.Keys(), want) {
		t.Fatalf("keys = %v, want %v", s.Keys(), want)
	}
	if _, present := s.Get("mapStats"); present {
		t.Fatal("non-allow-listed field leaked into summary")
	}
	ts, _ := s.Get("fetched_at")
	stamp, ok := ts.(string)
	if !ok || !strings.HasSuffix(stamp, "Z") {
		t.Fatalf("fetched_at = %v, want UTC Z-suffixed timestamp", ts)
	}
	if _, err := time.Parse(time.RFC3339, stamp); err != nil {
		t.Fatalf("fetched_at not ISO-8601: %v", err)
	}
}

func TestSummaryKeysFollowAllowListOrder(t *testing.T) {
	// Record fields deliberately "out of order"; the summary follows the
	// fixed allow-list order regardless.
	rec := gametools.Record{"kills": 1.0, "id": 2.0, "userName": "x"}
	s := FlattenSummary(rec)
	want := []string{"fetched_at", "userName", "id", "kills"}
	if !reflect.DeepEqual(s.Keys(), want) {
		t.Fatalf("keys = %v, want %v", s.Keys(), want)
	}
}

func TestStatsFilename(t *testing.T) {
	if got := statsFilename("20260830_120000", "json"); got != "stats_20260830_120000.json" {
		t.Fatalf("statsFilename = %q", got)
	}
	got := statsFilename("", "csv")
	if !strings.HasPrefix(got, "stats_") || !strings.HasSuffix(got, ".csv") || len(got) != len("stats_20060102_150405.csv") {
		t.Fatalf("fallback filename = %q", got)
	}
}

func TestWriteJSONRoundTrip(t *testing.T) {
	results := []gametools.Record{
		{"userName": "foo", "kills": float64(10), "nested": map[string]any{"a": float64(1)}},
		{"userName": "bar", "accuracy": 22.4},
	}
	dir := t.TempDir()
	path, err := WriteJSON(results, dir, "run1")
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if filepath.Base(path) != "stats_run1.json" {
		t.Fatalf("path = %q", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var got []gametools.Record
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, results) {
		t.Fatalf("round trip mismatch:\n got %v\nwant %v", got, results)
	}
}

func TestWriteJSONNilResults(t *testing.T) {
	path, err := WriteJSON(nil, t.TempDir(), "run1")
	if err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got := strings.TrimSpace(string(raw)); got != "[]" {
		t.Fatalf("nil results must encode as an empty array, got %q", got)
	}
}

func TestWriteCSVHeaderAndRow(t *testing.T) {
	results := []gametools.Record{{"id": float64(1), "userName": "foo", "kills": float64(10)}}
	dir := t.TempDir()
	path, err := WriteCSV(results, dir, "run1")
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows := readCSV(t, path)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	wantHeader := []string{"fetched_at", "userName", "id", "kills"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Fatalf("header = %v, want %v", rows[0], wantHeader)
	}
	if rows[1][1] != "foo" || rows[1][2] != "1" || rows[1][3] != "10" {
		t.Fatalf("row = %v", rows[1])
	}
}

func TestWriteCSVAppendsLaterKeys(t *testing.T) {
	results := []gametools.Record{
		{"userName": "foo"},
		{"userName": "bar", "kills": float64(3), "deaths": float64(1)},
	}
	dir := t.TempDir()
	path, err := WriteCSV(results, dir, "run1")
	if err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	rows := readCSV(t, path)
	wantHeader := []string{"fetched_at", "userName", "kills", "deaths"}
	if !reflect.DeepEqual(rows[0], wantHeader) {
		t.Fatalf("header = %v, want %v", rows[0], wantHeader)
	}
	// First record has no kills/deaths: cells render empty.
	if rows[1][2] != "" || rows[1][3] != "" {
		t.Fatalf("missing values must be empty: %v", rows[1])
	}
	if rows[2][2] != "3" || rows[2][3] != "1" {
		t.Fatalf("row = %v", rows[2])
	}
}

func TestWriteCSVEmptyResults(t *testing.T) {
	if _, err := WriteCSV(nil, t.TempDir(), "run1"); err == nil {
		t.Fatal("expected error for empty result list")
	}
}

func TestWriteSQLiteAppendOnly(t *testing.T) {
	results := []gametools.Record{
		{"userName": "foo", "kills": float64(10)},
		{"userName": "bar"},
	}
	dir := t.TempDir()

	path, err := WriteSQLite(results, dir, "run1")
	if err != nil {
		t.Fatalf("WriteSQLite: %v", err)
	}
	if _, err := WriteSQLite(results, dir, "run1"); err != nil {
		t.Fatalf("second WriteSQLite: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM stats").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2*len(results) {
		t.Fatalf("row count = %d, want %d (append-only)", count, 2*len(results))
	}

	// Absent summary fields store as NULL.
	var kills sql.NullString
	if err := db.QueryRow("SELECT kills FROM stats WHERE userName = 'bar' LIMIT 1").Scan(&kills); err != nil {
		t.Fatalf("select kills: %v", err)
	}
	if kills.Valid {
		t.Fatalf("missing field should be NULL, got %q", kills.String)
	}

	var rid, fetchedAt string
	if err := db.QueryRow("SELECT run_id, fetched_at FROM stats LIMIT 1").Scan(&rid, &fetchedAt); err != nil {
		t.Fatalf("select run row: %v", err)
	}
	if rid != "run1" {
		t.Fatalf("run_id = %q", rid)
	}
	if _, err := time.Parse(time.RFC3339, fetchedAt); err != nil {
		t.Fatalf("fetched_at not ISO-8601: %v", err)
	}
}

func TestWriteSQLiteRunIDFallback(t *testing.T) {
	results := []gametools.Record{{"userName": "foo"}}
	dir := t.TempDir()
	path, err := WriteSQLite(results, dir, "")
	if err != nil {
		t.Fatalf("WriteSQLite: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	var rid string
	if err := db.QueryRow("SELECT run_id FROM stats LIMIT 1").Scan(&rid); err != nil {
		t.Fatalf("select run_id: %v", err)
	}
	// Fallback derives the run ID in the shared timestamp format.
	if _, err := time.Parse("20060102_150405", rid); err != nil {
		t.Fatalf("run_id %q not in timestamp format: %v", rid, err)
	}
}

func TestWriteSQLiteEmptyResults(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSQLite(nil, dir, "run1")
	if err != nil {
		t.Fatalf("WriteSQLite: %v", err)
	}
	if filepath.Base(path) != DefaultDBName {
		t.Fatalf("path = %q", path)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("empty write must not create the store: %v", err)
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"x", "x"},
		{float64(10), "10"},
		{52.5, "52.5"},
		{true, "true"},
	}
	for _, tc := range cases {
		if got := formatValue(tc.in); got != tc.want {
			t.Fatalf("formatValue(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rows
}
