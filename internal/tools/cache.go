package tools

import (
	"context"

	"github.com/RowanDark/cryptbreak/internal/observability/metrics"
	"github.com/RowanDark/cryptbreak/internal/scoring"
)

type cacheStats struct {
	scoring.CacheStats
	FactorStoreEntries *int `json:"factor_store_entries,omitempty"`
}

func (k *Toolkit) cacheTools() []Tool {
	return []Tool{
		New("cache_stats", "Report score cache hits, misses, size and capacity.", nil,
			func(ctx context.Context, _ Params) (any, error) {
				stats := k.Scorer.Cache().Stats()
				metrics.SetScoreCache(stats.Hits, stats.Misses, stats.Size, stats.Capacity)
				out := cacheStats{CacheStats: stats}
				if k.FactorStoreSize != nil {
					n, err := k.FactorStoreSize(ctx)
					if err != nil {
						k.Logger.Warn("factor store count failed", "error", err)
					} else {
						out.FactorStoreEntries = &n
					}
				}
				return out, nil
			}),
		New("cache_clear", "Drop every cached score and reset the counters.", nil,
			func(_ context.Context, _ Params) (any, error) {
				k.Scorer.Cache().Clear()
				metrics.SetScoreCache(0, 0, 0, k.Scorer.Cache().Stats().Capacity)
				return map[string]bool{"cleared": true}, nil
			}),
	}
}
