package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Neuromancer95/bf6-stats-pipeline/internal/config"
	"github.com/Neuromancer95/bf6-stats-pipeline/internal/gametools"
	"github.com/Neuromancer95/bf6-stats-pipeline/internal/idcache"
	"github.com/Neuromancer95/bf6-stats-pipeline/internal/obslog"
	"github.com/Neuromancer95/bf6-stats-pipeline/internal/pipeline"
	"github.com/Neuromancer95/bf6-stats-pipeline/internal/storage"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("bf6stats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "config file (YAML or JSON) with 'players' list")
	playersArg := fs.String("players", "", `override config: "name1,platform1;name2,platform2" (platform defaults to pc)`)
	outputDir := fs.String("output-dir", "output", "directory for output files")
	format := fs.String("format", "json", "output format: json, csv, sqlite, or all")
	noBatch := fs.Bool("no-batch", false, "fetch stats one-by-one instead of using the batch API")
	rateLimit := fs.Float64("rate-limit", 1.0, "seconds between API requests")
	cacheURL := fs.String("cache-url", os.Getenv("BF6_CACHE_URL"), "optional redis URL for caching resolved player IDs")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	switch *format {
	case "json", "csv", "sqlite", "all":
	default:
		fmt.Fprintf(stderr, "Invalid format %q: use json, csv, sqlite, or all.\n", *format)
		return 2
	}

	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(stderr, "Logging init error: %v\n", err)
		return 1
	}
	log := obslog.L().With(zap.String("trace_id", uuid.NewString()))

	var players []config.Player
	if *playersArg != "" {
		players = config.ParseInline(*playersArg)
	} else {
		var err error
		players, err = config.LoadFile(*configPath)
		if err != nil {
			if errors.Is(err, config.ErrNotFound) {
				fmt.Fprintf(stderr, "Error: %v\n", err)
			} else {
				fmt.Fprintf(stderr, "Config error: %v\n", err)
			}
			return 1
		}
	}
	if len(players) == 0 {
		fmt.Fprintln(stderr, "No players to fetch. Add entries in config or use -players.")
		return 1
	}

	ctx := context.Background()
	client := gametools.NewClient("",
		gametools.WithRateLimit(time.Duration(*rateLimit*float64(time.Second))))

	var cache *idcache.Cache
	if strings.TrimSpace(*cacheURL) != "" {
		c, err := idcache.New(*cacheURL)
		if err != nil {
			log.Warn("id cache unavailable, resolving without it", zap.Error(err))
		} else {
			cache = c
			defer cache.Close()
		}
	}

	log.Info("fetching stats",
		zap.Int("players", len(players)),
		zap.Bool("batch", !*noBatch),
		zap.Float64("rate_limit_sec", *rateLimit))

	results := pipeline.Run(ctx, client, players, pipeline.Options{
		UseBatch: !*noBatch,
		Cache:    cache,
	})
	if len(results) == 0 {
		fmt.Fprintln(stderr, "No stats retrieved. Check player names and platforms.")
		return 1
	}

	// One run ID correlates every output of this invocation.
	runID := storage.TimestampRunID()

	writers := []struct {
		format string
		label  string
		write  func([]gametools.Record, string, string) (string, error)
	}{
		{"json", "JSON", storage.WriteJSON},
		{"csv", "CSV", storage.WriteCSV},
		{"sqlite", "SQLite", storage.WriteSQLite},
	}
	for _, w := range writers {
		if *format != w.format && *format != "all" {
			continue
		}
		path, err := w.write(results, *outputDir, runID)
		if err != nil {
			fmt.Fprintf(stderr, "Error writing %s: %v\n", w.label, err)
			return 1
		}
		fmt.Fprintf(stdout, "Wrote %s: %s\n", w.label, path)
	}

	fmt.Fprintf(stdout, "Fetched %d player(s).\n", len(results))
	return 0
}
