package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/streamlinks/internal/classify"
	"github.com/MrSnakeDoc/streamlinks/internal/domain"
	"github.com/MrSnakeDoc/streamlinks/internal/extract"
	"github.com/MrSnakeDoc/streamlinks/internal/index"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
)

// Result is the outcome of one ingestion pass.
type Result struct {
	// Links holds the links accepted by this pass only.
	Links []domain.Link
	// Total is the number of distinct URLs seen by the pipeline so far.
	Total int
}

// URLs returns the URLs of the accepted links.
func (r Result) URLs() []string {
	urls := make([]string, 0, len(r.Links))
	for _, l := range r.Links {
		urls = append(urls, l.URL)
	}
	return urls
}

// Pipeline owns the seen-set of one running instance and stores newly
// discovered links through the single writer.
type Pipeline struct {
	store  LinkStore
	writer *Writer
	policy classify.Policy
	seen   *index.SeenSet
	logger logger.Logger
	now    func() time.Time

	passMu    sync.Mutex
	listeners []func([]domain.Link)
}

// NewPipeline creates a pipeline. seen should already be seeded from store.
func NewPipeline(store LinkStore, writer *Writer, policy classify.Policy, seen *index.SeenSet, log logger.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		writer: writer,
		policy: policy,
		seen:   seen,
		logger: log,
		now:    time.Now,
	}
}

// Policy returns the classification policy in use.
func (p *Pipeline) Policy() classify.Policy {
	return p.policy
}

// OnAccepted registers fn to be called with the links accepted by each pass
// that accepted at least one. Register before the pipeline is used.
func (p *Pipeline) OnAccepted(fn func([]domain.Link)) {
	p.listeners = append(p.listeners, fn)
}

// Seen reports whether url was already processed by this pipeline.
func (p *Pipeline) Seen(url string) bool {
	return p.seen.Has(url)
}

// LastSeeded returns when the seen-set was last loaded from storage.
func (p *Pipeline) LastSeeded() time.Time {
	return p.seen.GetLastSeeded()
}

// Total returns the number of distinct URLs seen so far.
func (p *Pipeline) Total() int {
	return p.seen.Count()
}

// Ingest stores the candidates that were never seen before. A storage failure
// only drops the affected URL, which stays unseen and is retried by a later
// pass. The returned error is non-nil only when ctx ends the pass early.
func (p *Pipeline) Ingest(ctx context.Context, candidates []Candidate) (Result, error) {
	p.passMu.Lock()
	defer p.passMu.Unlock()

	log := logger.With(p.logger, logger.String("pass_id", uuid.NewString()))

	var accepted []domain.Link
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			p.notify(accepted)
			return Result{Links: accepted, Total: p.seen.Count()}, err
		}

		if p.seen.Has(c.URL) {
			continue
		}

		link := domain.NewAutoLink(c.URL, c.Context, p.now())
		added, err := p.writer.AddIfAbsent(ctx, link)
		if err != nil {
			log.Warn("failed to store link, skipping",
				logger.String("url", c.URL),
				logger.Error(err))
			continue
		}

		p.seen.Add(c.URL)
		if added {
			accepted = append(accepted, link)
		}
	}

	if len(accepted) > 0 {
		log.Info("ingested new links",
			logger.Int("accepted", len(accepted)),
			logger.Int("candidates", len(candidates)),
			logger.Int("total", p.seen.Count()))
	} else {
		log.Debug("no new links", logger.Int("candidates", len(candidates)))
	}

	p.notify(accepted)
	return Result{Links: accepted, Total: p.seen.Count()}, nil
}

// IngestText runs extraction, normalization and classification on text, then Ingest.
func (p *Pipeline) IngestText(ctx context.Context, text string) (Result, error) {
	return p.Ingest(ctx, TextCandidates(text, "", p.policy))
}

// AddManual stores a link entered by the user. Classification is skipped;
// only the URL shape is checked. It returns domain.ErrLinkExists when the URL
// is already stored. A URL removed earlier can be added back this way.
func (p *Pipeline) AddManual(ctx context.Context, rawURL string, sport domain.Sport, description string) (domain.Link, error) {
	url, ok := extract.Normalize(rawURL)
	if !ok {
		return domain.Link{}, fmt.Errorf("%w: %q", domain.ErrInvalidURL, rawURL)
	}

	link, err := domain.NewManualLink(url, sport, description, p.now())
	if err != nil {
		return domain.Link{}, err
	}

	added, err := p.writer.AddIfAbsent(ctx, link)
	if err != nil {
		return domain.Link{}, fmt.Errorf("failed to add link: %w", err)
	}
	p.seen.Add(url)
	if !added {
		return domain.Link{}, domain.ErrLinkExists
	}

	p.logger.Info("manual link added",
		logger.String("url", url),
		logger.String("sport", string(link.Sport)))
	p.notify([]domain.Link{link})
	return link, nil
}

// Remove deletes one link from storage. The URL stays in the seen-set.
func (p *Pipeline) Remove(ctx context.Context, url string) (bool, error) {
	return p.writer.RemoveByURL(ctx, url)
}

// ReplaceAll overwrites storage with links and returns what was stored.
// URLs are normalized and only the first record of each URL is kept. A
// record with an unusable URL, sport or source rejects the whole batch.
// URLs it drops stay in the seen-set.
func (p *Pipeline) ReplaceAll(ctx context.Context, links []domain.Link) ([]domain.Link, error) {
	clean := make([]domain.Link, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for i, l := range links {
		rec, err := p.sanitize(l)
		if err != nil {
			return nil, fmt.Errorf("link %d: %w", i, err)
		}
		if _, dup := seen[rec.URL]; dup {
			continue
		}
		seen[rec.URL] = struct{}{}
		clean = append(clean, rec)
	}

	if err := p.writer.ReplaceAll(ctx, clean); err != nil {
		return nil, err
	}
	for _, l := range clean {
		p.seen.Add(l.URL)
	}
	return clean, nil
}

// sanitize brings a client-supplied record in line with what the pipeline
// itself stores. Missing sport, source and timestamp get their defaults; a
// timestamp that is present is kept as is, even when it does not parse.
func (p *Pipeline) sanitize(l domain.Link) (domain.Link, error) {
	url, ok := extract.Normalize(l.URL)
	if !ok {
		return domain.Link{}, fmt.Errorf("%w: %q", domain.ErrInvalidURL, l.URL)
	}
	l.URL = url

	if l.Sport == "" {
		l.Sport = domain.SportOther
	}
	if !l.Sport.Valid() {
		return domain.Link{}, fmt.Errorf("%w: %s", domain.ErrUnknownSport, l.Sport)
	}

	if l.Source == "" {
		l.Source = domain.SourceManual
	}
	if !l.Source.Valid() {
		return domain.Link{}, fmt.Errorf("%w: %s", domain.ErrUnknownSource, l.Source)
	}

	l.Description = domain.TruncateDescription(strings.TrimSpace(l.Description))
	if strings.TrimSpace(l.Timestamp) == "" {
		l.Timestamp = domain.FormatTimestamp(p.now())
	}
	return l, nil
}

// Clear removes every stored link.
func (p *Pipeline) Clear(ctx context.Context) error {
	return p.writer.ReplaceAll(ctx, nil)
}

// Links returns the stored collection.
func (p *Pipeline) Links(ctx context.Context) ([]domain.Link, error) {
	return p.store.GetAll(ctx)
}

// Active returns the stored links younger than the freshness window, newest first.
func (p *Pipeline) Active(ctx context.Context) ([]domain.Link, error) {
	links, err := p.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return domain.Active(links, p.now()), nil
}

func (p *Pipeline) notify(accepted []domain.Link) {
	if len(accepted) == 0 {
		return
	}
	for _, fn := range p.listeners {
		fn(accepted)
	}
}
