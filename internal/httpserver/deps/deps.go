package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/streamlinks/internal/domain"
	"github.com/MrSnakeDoc/streamlinks/internal/ingest"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
)

// LinkService is the link collection as seen by the HTTP handlers.
type LinkService interface {
	Links(ctx context.Context) ([]domain.Link, error)
	Active(ctx context.Context) ([]domain.Link, error)
	AddManual(ctx context.Context, rawURL string, sport domain.Sport, description string) (domain.Link, error)
	Remove(ctx context.Context, url string) (bool, error)
	ReplaceAll(ctx context.Context, links []domain.Link) ([]domain.Link, error)
	Clear(ctx context.Context) error
	Total() int
	LastSeeded() time.Time
}

// Extractor runs an on-demand pass over the observed page.
type Extractor interface {
	ExtractNow(ctx context.Context) (ingest.Result, error)
}

// Badge exposes the active link counter.
type Badge interface {
	Count() int
	Trigger()
}

// Pinger checks that durable storage answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger                logger.Logger
	StartTime             time.Time
	Version               string
	Commit                string
	BuildDate             string
	GoVersion             string
	TimeNow               func() time.Time // for testing, defaults to time.Now
	AllowedHosts          []string         // Host headers allowed to access the server
	AllowedCIDRS          []string         // IPs allowed to access the API
	AllowedOrigins        []string         // CORS origins (the extension popup)
	TrustProxy            bool             // true if running behind a trusted reverse proxy
	RateLimitBurst        int              // per-IP burst on the API
	RateLimitRefillPerMin int              // per-IP refill on the API
	Links                 LinkService      // link collection (ingestion pipeline)
	Extractor             Extractor        // page observer
	Badge                 Badge            // active link counter
	Store                 Pinger           // durable storage, used by readiness checks
	ScanMode              string           // "full" | "incremental"
	PageSource            string           // URL or path of the observed page
}
