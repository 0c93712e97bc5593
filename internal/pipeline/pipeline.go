package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/Neuromancer95/bf6-stats-pipeline/internal/config"
	"github.com/Neuromancer95/bf6-stats-pipeline/internal/gametools"
	"github.com/Neuromancer95/bf6-stats-pipeline/internal/idcache"
	"github.com/Neuromancer95/bf6-stats-pipeline/internal/obslog"
)

// StatsClient is the subset of the gametools client the pipeline drives.
type StatsClient interface {
	ResolvePlayerID(ctx context.Context, name, platform string) (string, error)
	FetchStats(ctx context.Context, name, platform string) (gametools.Record, error)
	FetchStatsBatch(ctx context.Context, playerIDs []string, platform string) ([]gametools.Record, error)
}

type Options struct {
	// UseBatch resolves IDs first and fetches via the batch endpoint when
	// more than one player is requested.
	UseBatch bool
	// Cache short-circuits resolve calls when set. Nil disables caching.
	Cache *idcache.Cache
}

// Run fetches stats for every configured player and returns whatever was
// successfully obtained. Players that fail to resolve or fetch are dropped;
// only the aggregate count reflects the loss.
func Run(ctx context.Context, client StatsClient, players []config.Player, opts Options) []gametools.Record {
	if opts.UseBatch && len(players) > 1 {
		return runBatch(ctx, client, players, opts.Cache)
	}
	return runSingle(ctx, client, players)
}

// runBatch resolves every player ID up front, then fetches per platform in
// chunks of at most gametools.MaxBatchSize. Chunk results concatenate in
// chunk order; platform groups run in first-encountered order.
func runBatch(ctx context.Context, client StatsClient, players []config.Player, cache *idcache.Cache) []gametools.Record {
	var platforms []string
	idsByPlatform := make(map[string][]string)

	for _, p := range players {
		id := cache.Get(ctx, p.Name, p.Platform)
		if id == "" {
			resolved, err := client.ResolvePlayerID(ctx, p.Name, p.Platform)
			if err != nil {
				obslog.L().Warn("dropping player: resolve failed",
					zap.String("name", p.Name),
					zap.String("platform", p.Platform),
					zap.Error(err))
				continue
			}
			id = resolved
			cache.Put(ctx, p.Name, p.Platform, id)
		}
		if _, seen := idsByPlatform[p.Platform]; !seen {
			platforms = append(platforms, p.Platform)
		}
		idsByPlatform[p.Platform] = append(idsByPlatform[p.Platform], id)
	}

	var results []gametools.Record
	for _, platform := range platforms {
		ids := idsByPlatform[platform]
		for start := 0; start < len(ids); start += gametools.MaxBatchSize {
			end := min(start+gametools.MaxBatchSize, len(ids))
			batch, err := client.FetchStatsBatch(ctx, ids[start:end], platform)
			if err != nil {
				obslog.L().Warn("dropping batch chunk: fetch failed",
					zap.String("platform", platform),
					zap.Int("chunk_size", end-start),
					zap.Error(err))
				continue
			}
			results = append(results, batch...)
		}
	}
	return results
}

// runSingle fetches each player by name in input order; one failure does not
// abort the rest.
func runSingle(ctx context.Context, client StatsClient, players []config.Player) []gametools.Record {
	var results []gametools.Record
	for _, p := range players {
		stats, err := client.FetchStats(ctx, p.Name, p.Platform)
		if err != nil {
			obslog.L().Warn("dropping player: fetch failed",
				zap.String("name", p.Name),
				zap.String("platform", p.Platform),
				zap.Error(err))
			continue
		}
		results = append(results, stats)
	}
	return results
}
