package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/MrSnakeDoc/streamlinks/internal/domain"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
)

// DefaultQueueSize is the number of pending writes the writer buffers.
const DefaultQueueSize = 64

// ErrWriterStopped is returned for writes submitted after Stop.
var ErrWriterStopped = errors.New("link writer stopped")

// LinkStore is the durable collection behind the pipeline.
type LinkStore interface {
	GetAll(ctx context.Context) ([]domain.Link, error)
	AddIfAbsent(ctx context.Context, link domain.Link) (bool, error)
	RemoveByURL(ctx context.Context, url string) (bool, error)
	ReplaceAll(ctx context.Context, links []domain.Link) error
	SeenURLs(ctx context.Context) (map[string]struct{}, error)
}

type writeOp struct {
	ctx    context.Context
	run    func(ctx context.Context) error
	result chan error
}

// Writer funnels every mutation of the link collection through one
// goroutine, so read-modify-write cycles never interleave inside the process.
type Writer struct {
	store    LinkStore
	logger   logger.Logger
	queue    chan writeOp
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWriter creates a writer. Call Start before submitting writes.
func NewWriter(store LinkStore, log logger.Logger, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Writer{
		store:  store,
		logger: log,
		queue:  make(chan writeOp, queueSize),
		stopCh: make(chan struct{}),
	}
}

// Start runs the write loop until Stop is called or ctx is done.
func (w *Writer) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case op := <-w.queue:
				op.result <- w.exec(op)
			case <-w.stopCh:
				w.drain()
				w.logger.Debug("link writer stopped")
				return
			case <-ctx.Done():
				w.drain()
				w.logger.Debug("link writer stopped", logger.Error(ctx.Err()))
				return
			}
		}
	}()
}

// Stop stops the write loop. Pending writes fail with ErrWriterStopped.
func (w *Writer) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

// exec skips ops whose submitter already gave up, so nothing is written
// that the caller believes failed.
func (w *Writer) exec(op writeOp) error {
	if err := op.ctx.Err(); err != nil {
		return err
	}
	return op.run(op.ctx)
}

func (w *Writer) drain() {
	for {
		select {
		case op := <-w.queue:
			op.result <- ErrWriterStopped
		default:
			return
		}
	}
}

// AddIfAbsent stores link unless its URL is already present.
func (w *Writer) AddIfAbsent(ctx context.Context, link domain.Link) (bool, error) {
	var added bool
	err := w.submit(ctx, func(ctx context.Context) error {
		var err error
		added, err = w.store.AddIfAbsent(ctx, link)
		return err
	})
	if err != nil {
		return false, err
	}
	return added, nil
}

// RemoveByURL deletes the link with the given URL.
func (w *Writer) RemoveByURL(ctx context.Context, url string) (bool, error) {
	var removed bool
	err := w.submit(ctx, func(ctx context.Context) error {
		var err error
		removed, err = w.store.RemoveByURL(ctx, url)
		return err
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// ReplaceAll overwrites the collection.
func (w *Writer) ReplaceAll(ctx context.Context, links []domain.Link) error {
	return w.submit(ctx, func(ctx context.Context) error {
		return w.store.ReplaceAll(ctx, links)
	})
}

func (w *Writer) submit(ctx context.Context, run func(ctx context.Context) error) error {
	op := writeOp{ctx: ctx, run: run, result: make(chan error, 1)}

	select {
	case <-w.stopCh:
		return ErrWriterStopped
	default:
	}

	select {
	case w.queue <- op:
	case <-w.stopCh:
		return ErrWriterStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
