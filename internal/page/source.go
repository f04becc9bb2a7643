// Package page fetches and reads the messaging page links are scraped from.
package page

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/streamlinks/internal/logger"
	"github.com/MrSnakeDoc/streamlinks/internal/utils"
)

// MaxBodySize caps how much of a page is read.
const MaxBodySize = 16 << 20

// Snapshot is one observation of the page.
type Snapshot struct {
	Body      []byte
	Hash      uint64
	FetchedAt time.Time
}

func newSnapshot(body []byte) *Snapshot {
	return &Snapshot{
		Body:      body,
		Hash:      xxhash.Sum64(body),
		FetchedAt: time.Now(),
	}
}

// Source produces snapshots of the page.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*Snapshot, error)
}

// Watcher is implemented by sources that can push change notifications.
// Each receive on the returned channel is one batch of changes.
type Watcher interface {
	Watch(ctx context.Context) (<-chan struct{}, error)
}

// HTTPSource fetches the page over HTTP.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source for url with the given request timeout.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) Name() string { return s.url }

func (s *HTTPSource) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch page: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read page: %w", err)
	}
	return newSnapshot(body), nil
}

// FileSource reads the page from a local file, such as a saved chat export.
type FileSource struct {
	path   string
	logger logger.Logger
}

// NewFileSource creates a source reading path.
func NewFileSource(path string, log logger.Logger) *FileSource {
	return &FileSource{path: path, logger: log}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Fetch(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open page file: %w", err)
	}
	defer utils.Close(f)

	body, err := io.ReadAll(io.LimitReader(f, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read page file: %w", err)
	}
	return newSnapshot(body), nil
}

// Watch reports writes to the page file. The parent directory is watched so
// that editors and exporters replacing the file atomically are still seen.
// The channel is closed when ctx is done.
func (s *FileSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		utils.Close(w)
		return nil, fmt.Errorf("failed to watch %s: %w", s.path, err)
	}

	target := filepath.Clean(s.path)
	changes := make(chan struct{}, 1)

	go func() {
		defer close(changes)
		defer utils.MustClose(w, s.logger, "page watcher")
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				// coalesce bursts into one pending batch
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.logger.Warn("page file watcher error",
					logger.String("path", s.path),
					logger.Error(err))
			}
		}
	}()

	return changes, nil
}
