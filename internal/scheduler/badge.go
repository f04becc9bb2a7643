package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/streamlinks/internal/domain"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
)

const (
	// DefaultBadgeInterval is how often the active count is recomputed when
	// nothing else triggers a refresh. Links age out of the window on their own.
	DefaultBadgeInterval = time.Minute
)

// LinkLister returns the stored collection.
type LinkLister interface {
	Links(ctx context.Context) ([]domain.Link, error)
}

// BadgeUpdater keeps the number of active links up to date
type BadgeUpdater struct {
	links         LinkLister
	logger        logger.Logger
	interval      time.Duration
	now           func() time.Time
	count         atomic.Int64
	manualTrigger chan struct{}
	stopCh        chan struct{}
	stopOnce      sync.Once
}

// NewBadgeUpdater creates a new badge updater
func NewBadgeUpdater(
	links LinkLister,
	log logger.Logger,
	interval time.Duration,
) *BadgeUpdater {
	if interval <= 0 {
		interval = DefaultBadgeInterval
	}

	return &BadgeUpdater{
		links:         links,
		logger:        log,
		interval:      interval,
		now:           time.Now,
		manualTrigger: make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic refresh
func (bu *BadgeUpdater) Start(ctx context.Context) error {
	if err := bu.Refresh(ctx); err != nil {
		bu.logger.Warn("initial badge refresh failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(bu.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bu.refreshLogged(ctx)
			case <-bu.manualTrigger:
				bu.refreshLogged(ctx)
			case <-bu.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the badge updater. It is safe to call more than once.
func (bu *BadgeUpdater) Stop() {
	bu.stopOnce.Do(func() { close(bu.stopCh) })
}

// Trigger requests a refresh without blocking
func (bu *BadgeUpdater) Trigger() {
	select {
	case bu.manualTrigger <- struct{}{}:
	default:
	}
}

// Count returns the last computed number of active links
func (bu *BadgeUpdater) Count() int {
	return int(bu.count.Load())
}

// Refresh recomputes the active count from storage
func (bu *BadgeUpdater) Refresh(ctx context.Context) error {
	links, err := bu.links.Links(ctx)
	if err != nil {
		return err
	}

	n := domain.CountActive(links, bu.now())
	if old := bu.count.Swap(int64(n)); old != int64(n) {
		bu.logger.Debug("active link count changed",
			logger.Int("previous", int(old)),
			logger.Int("active", n))
	}
	return nil
}

func (bu *BadgeUpdater) refreshLogged(ctx context.Context) {
	if err := bu.Refresh(ctx); err != nil {
		bu.logger.Error("badge refresh failed",
			logger.Error(err))
	}
}
