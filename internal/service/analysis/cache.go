package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kapu/roster-aggregator-go/internal/domain"
	"go.uber.org/zap"
)

// Store is the subset of the Redis cache used for analyses.
type Store interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

const cacheKeyPrefix = "roster:analysis:"

// CachedAnalyzer reuses analyses of unchanged teams. Cache failures are logged
// and never fail the analysis.
type CachedAnalyzer struct {
	next   Analyzer
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedAnalyzer(next Analyzer, store Store, ttl time.Duration, logger *zap.Logger) *CachedAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedAnalyzer{next: next, store: store, ttl: ttl, logger: logger}
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, team *domain.TeamRecord) (domain.Analysis, error) {
	key, err := CacheKey(team)
	if err != nil {
		return c.next.Analyze(ctx, team)
	}

	var cached domain.Analysis
	found, err := c.store.Get(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("Analysis cache read failed", zap.String("key", key), zap.Error(err))
	} else if found && cached.Text != "" {
		c.logger.Debug("Analysis cache hit", zap.String("school", team.SchoolName))
		return cached, nil
	}

	analysis, err := c.next.Analyze(ctx, team)
	if err != nil {
		return analysis, err
	}

	if err := c.store.Set(ctx, key, analysis, c.ttl); err != nil {
		c.logger.Warn("Analysis cache write failed", zap.String("key", key), zap.Error(err))
	}
	return analysis, nil
}

// CacheKey hashes the team content. The scrape timestamp is excluded so a
// re-scrape of an unchanged roster hits the cache.
func CacheKey(team *domain.TeamRecord) (string, error) {
	if team == nil {
		return "", fmt.Errorf("team is nil")
	}
	clone := *team
	clone.LastUpdated = time.Time{}

	data, err := json.Marshal(clone)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), nil
}
