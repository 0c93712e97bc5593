package storage

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Neuromancer95/bf6-stats-pipeline/internal/gametools"
)

// summaryKeys is the allow-list of stat fields extracted from a raw record
// for the CSV and SQLite outputs, in fixed column order.
var summaryKeys = []string{
	"userName",
	"id",
	"userId",
	"kills",
	"deaths",
	"wins",
	"loses",
	"winPercent",
	"killDeath",
	"killsPerMinute",
	"damagePerMinute",
	"accuracy",
	"headshots",
	"timePlayed",
	"secondsPlayed",
	"matchesPlayed",
	"revives",
	"heals",
	"resupplies",
	"repairs",
}

// Summary is a flattened projection of one raw record: fetched_at plus
// whichever allow-listed fields the record carried, in insertion order.
type Summary struct {
	keys   []string
	values map[string]any
}

func (s *Summary) set(key string, value any) {
	if _, present := s.values[key]; !present {
		s.keys = append(s.keys, key)
	}
	s.values[key] = value
}

// Keys returns the summary's field names in insertion order.
func (s *Summary) Keys() []string { return s.keys }

func (s *Summary) Get(key string) (any, bool) {
	v, present := s.values[key]
	return v, present
}

// FlattenSummary projects a raw stats record onto the summary allow-list and
// stamps it with the flattening time. Absent fields are omitted.
func FlattenSummary(rec gametools.Record) *Summary {
	s := &Summary{values: make(map[string]any)}
	s.set("fetched_at", isoTimestamp(time.Now()))
	for _, key := range summaryKeys {
		if v, present := rec[key]; present {
			s.set(key, v)
		}
	}
	return s
}

// isoTimestamp renders a UTC instant as ISO-8601 with a Z suffix.
func isoTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z07:00")
}

// statsFilename is the shared naming policy: stats_{run_id}.{ext}, with the
// current UTC timestamp standing in when no run ID was supplied.
func statsFilename(runID, ext string) string {
	if runID == "" {
		runID = TimestampRunID()
	}
	return "stats_" + runID + "." + ext
}

// TimestampRunID derives a run identifier from the current UTC time.
func TimestampRunID() string {
	return time.Now().UTC().Format("20060102_150405")
}

func ensureOutputDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// formatValue renders an arbitrary JSON value for CSV cells and SQLite TEXT
// columns. Integral floats print without a fraction.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
