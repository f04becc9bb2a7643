package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/streamlinks/internal/ingest"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
	"github.com/MrSnakeDoc/streamlinks/internal/page"
)

// Mode selects how observed changes are scanned.
type Mode string

const (
	// ModeFull re-extracts the whole document text on every change.
	ModeFull Mode = "full"
	// ModeIncremental only ingests messages not seen in a previous batch.
	ModeIncremental Mode = "incremental"
)

const (
	// DefaultPollInterval is used when ObserverOptions.PollInterval is not set.
	DefaultPollInterval = 10 * time.Second
	// DefaultRescanPerSecond caps how often change batches trigger a rescan.
	DefaultRescanPerSecond = 1.0
)

// ParseMode resolves a scan mode name. An empty name selects ModeFull.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeFull:
		return ModeFull, nil
	case ModeIncremental:
		return ModeIncremental, nil
	default:
		return "", fmt.Errorf("unknown scan mode %q", s)
	}
}

// ObserverOptions configures an Observer.
type ObserverOptions struct {
	Mode              Mode
	ContainerSelector string        // incremental mode only
	MessageSelector   string        // incremental mode only
	PollInterval      time.Duration // snapshot polling period
	RescanPerSecond   float64       // rescan rate limit
	SelectorMaxWait   time.Duration // give up waiting for the container after this long (0 = never)
}

// Observer watches the page and feeds every batch of changes to the pipeline.
type Observer struct {
	source   page.Source
	pipeline *ingest.Pipeline
	logger   logger.Logger
	opts     ObserverOptions
	limiter  *rate.Limiter
	rescan   chan struct{}

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	// guarded by scanMu
	scanMu       sync.Mutex
	lastHash     uint64
	hasHash      bool
	seenMessages map[string]struct{}
}

// NewObserver creates a new page observer
func NewObserver(
	source page.Source,
	pipeline *ingest.Pipeline,
	log logger.Logger,
	opts ObserverOptions,
) *Observer {
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RescanPerSecond <= 0 {
		opts.RescanPerSecond = DefaultRescanPerSecond
	}
	if opts.ContainerSelector == "" {
		opts.ContainerSelector = page.DefaultContainerSelector
	}
	if opts.MessageSelector == "" {
		opts.MessageSelector = page.DefaultMessageSelector
	}

	return &Observer{
		source:       source,
		pipeline:     pipeline,
		logger:       log,
		opts:         opts,
		limiter:      rate.NewLimiter(rate.Limit(opts.RescanPerSecond), 1),
		rescan:       make(chan struct{}, 1),
		seenMessages: make(map[string]struct{}),
	}
}

// Mode returns the scan mode in use
func (o *Observer) Mode() Mode {
	return o.opts.Mode
}

// Start runs a first pass, then observes the page until Stop or ctx is done
func (o *Observer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.cancelMu.Lock()
	o.cancel = cancel
	o.cancelMu.Unlock()

	var changes <-chan struct{}
	if w, ok := o.source.(page.Watcher); ok {
		ch, err := w.Watch(ctx)
		if err != nil {
			o.logger.Warn("page watch unavailable, falling back to polling",
				logger.String("source", o.source.Name()),
				logger.Error(err))
		} else {
			changes = ch
		}
	}

	ticker := time.NewTicker(o.opts.PollInterval)
	go func() {
		defer ticker.Stop()

		o.handleScanError(ctx, o.firstPass(ctx))

		for {
			select {
			case <-ticker.C:
				o.Enqueue()
			case _, ok := <-changes:
				if !ok {
					changes = nil
					continue
				}
				o.Enqueue()
			case <-o.rescan:
				if err := o.limiter.Wait(ctx); err != nil {
					return
				}
				_, err := o.scan(ctx, false)
				o.handleScanError(ctx, err)
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the observer
func (o *Observer) Stop() {
	o.cancelMu.Lock()
	defer o.cancelMu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// Enqueue schedules a rescan. Requests made while one is pending are merged.
func (o *Observer) Enqueue() {
	select {
	case o.rescan <- struct{}{}:
	default:
	}
}

// ExtractNow runs a full pass right away, ignoring what earlier batches
// already covered, and reports the links it accepted.
func (o *Observer) ExtractNow(ctx context.Context) (ingest.Result, error) {
	o.logger.Info("on-demand extraction requested",
		logger.String("mode", string(o.opts.Mode)))
	return o.scan(ctx, true)
}

func (o *Observer) firstPass(ctx context.Context) error {
	res, err := o.scan(ctx, false)
	if err != nil {
		return err
	}
	o.logger.Info("initial page scan done",
		logger.String("source", o.source.Name()),
		logger.Int("accepted", len(res.Links)),
		logger.Int("total", res.Total))
	return nil
}

func (o *Observer) handleScanError(ctx context.Context, err error) {
	switch {
	case err == nil:
	case errors.Is(err, page.ErrSelectorMiss):
		o.waitForContainer(ctx)
	case errors.Is(err, context.Canceled):
	default:
		o.logger.Warn("page scan failed",
			logger.String("source", o.source.Name()),
			logger.Error(err))
	}
}

// waitForContainer retries the scan with exponential backoff until the
// message container shows up, ctx ends, or SelectorMaxWait elapses.
func (o *Observer) waitForContainer(ctx context.Context) {
	o.logger.Info("message container not found, waiting for it",
		logger.String("selector", o.opts.ContainerSelector))

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = o.opts.SelectorMaxWait

	operation := func() error {
		_, err := o.scan(ctx, false)
		if err == nil || errors.Is(err, page.ErrSelectorMiss) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, next time.Duration) {
		o.logger.Debug("message container still missing",
			logger.Duration("next_retry_in", next),
			logger.Error(err))
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		if ctx.Err() == nil {
			o.logger.Warn("gave up waiting for message container",
				logger.String("selector", o.opts.ContainerSelector),
				logger.Error(err))
		}
		return
	}
	o.logger.Info("message container found")
}

// scan takes a snapshot and ingests what it holds. Unless force is set, an
// unchanged snapshot is skipped and, in incremental mode, only messages that
// an earlier scan did not fully ingest are considered.
func (o *Observer) scan(ctx context.Context, force bool) (ingest.Result, error) {
	o.scanMu.Lock()
	defer o.scanMu.Unlock()

	snap, err := o.source.Fetch(ctx)
	if err != nil {
		return ingest.Result{}, err
	}
	if !force && o.hasHash && snap.Hash == o.lastHash {
		return ingest.Result{Total: o.pipeline.Total()}, nil
	}

	doc, err := page.Parse(snap)
	if err != nil {
		return ingest.Result{}, err
	}

	policy := o.pipeline.Policy()
	var (
		candidates []ingest.Candidate
		pending    = map[string][]ingest.Candidate{}
	)

	switch o.opts.Mode {
	case ModeIncremental:
		msgs, err := doc.Messages(o.opts.ContainerSelector, o.opts.MessageSelector)
		if err != nil {
			return ingest.Result{}, err
		}
		for _, m := range msgs {
			if _, done := o.seenMessages[m.Key]; done && !force {
				continue
			}
			batch := ingest.Candidates(m.URLs, m.Text, policy)
			pending[m.Key] = batch
			candidates = ingest.Merge(candidates, batch)
		}
	default:
		candidates = ingest.TextCandidates(doc.Text(), "", policy)
	}

	res, err := o.pipeline.Ingest(ctx, candidates)
	if err != nil {
		return res, err
	}

	o.lastHash = snap.Hash
	o.hasHash = true
	for key, batch := range pending {
		if o.allSeen(batch) {
			o.seenMessages[key] = struct{}{}
		}
	}

	return res, nil
}

func (o *Observer) allSeen(batch []ingest.Candidate) bool {
	for _, c := range batch {
		if !o.pipeline.Seen(c.URL) {
			return false
		}
	}
	return true
}
