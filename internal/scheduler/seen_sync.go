package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/streamlinks/internal/index"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
)

// SeenSource lists the URLs already in durable storage.
type SeenSource interface {
	SeenURLs(ctx context.Context) (map[string]struct{}, error)
}

// SeenSyncer seeds the in-memory seen-set from storage on startup
type SeenSyncer struct {
	store  SeenSource
	seen   *index.SeenSet
	logger logger.Logger
}

// NewSeenSyncer creates a new seen-set syncer
func NewSeenSyncer(
	store SeenSource,
	seen *index.SeenSet,
	log logger.Logger,
) *SeenSyncer {
	return &SeenSyncer{
		store:  store,
		seen:   seen,
		logger: log,
	}
}

// Sync loads stored URLs into the seen-set
func (ss *SeenSyncer) Sync(ctx context.Context) error {
	ss.logger.Info("seeding seen-set from redis")

	urls, err := ss.store.SeenURLs(ctx)
	if err != nil {
		return err
	}

	ss.seen.Seed(urls)

	if len(urls) == 0 {
		ss.logger.Info("no links found in redis")
		return nil
	}

	ss.logger.Info("seeded seen-set from redis",
		logger.Int("count", len(urls)))

	return nil
}
