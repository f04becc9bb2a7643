package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/streamlinks/internal/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultMaxRetries is how many times a conditional write is retried when
// another writer touched the collection between our read and our write.
const DefaultMaxRetries = 5

// ErrConflict is returned when a conditional write kept losing to other writers.
var ErrConflict = errors.New("link collection modified concurrently")

// getter is the read side shared by *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// Store persists the link collection under a single Redis key.
// The collection is always read and written wholesale.
type Store struct {
	client     *redis.Client
	key        string
	maxRetries int
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client:     client,
		key:        LinksKey(),
		maxRetries: DefaultMaxRetries,
	}
}

// GetAll returns every stored link in insertion order (empty if none)
func (s *Store) GetAll(ctx context.Context) ([]domain.Link, error) {
	return s.load(ctx, s.client)
}

// AddIfAbsent appends link unless a link with the same URL is stored.
// It reports whether the link was appended.
func (s *Store) AddIfAbsent(ctx context.Context, link domain.Link) (bool, error) {
	return s.update(ctx, func(links []domain.Link) ([]domain.Link, bool) {
		if domain.ContainsURL(links, link.URL) {
			return links, false
		}
		return append(links, link), true
	})
}

// RemoveByURL drops the link with the given URL. It reports whether one was removed.
func (s *Store) RemoveByURL(ctx context.Context, url string) (bool, error) {
	return s.update(ctx, func(links []domain.Link) ([]domain.Link, bool) {
		kept := make([]domain.Link, 0, len(links))
		for _, l := range links {
			if l.URL != url {
				kept = append(kept, l)
			}
		}
		return kept, len(kept) != len(links)
	})
}

// ReplaceAll overwrites the whole collection. A nil slice clears it.
func (s *Store) ReplaceAll(ctx context.Context, links []domain.Link) error {
	data, err := marshal(links)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save links: %w", err)
	}
	return nil
}

// SeenURLs returns the set of stored URLs, used to seed the ingestion seen-set
func (s *Store) SeenURLs(ctx context.Context) (map[string]struct{}, error) {
	links, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(links))
	for _, l := range links {
		seen[l.URL] = struct{}{}
	}
	return seen, nil
}

// Ping checks the Redis connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// update runs a read-modify-write of the collection as an optimistic
// transaction on the collection key. mutate returns the new collection and
// whether it changed; nothing is written when it did not.
func (s *Store) update(ctx context.Context, mutate func([]domain.Link) ([]domain.Link, bool)) (bool, error) {
	var changed bool

	txf := func(tx *redis.Tx) error {
		links, err := s.load(ctx, tx)
		if err != nil {
			return err
		}

		next, ok := mutate(links)
		changed = ok
		if !ok {
			return nil
		}

		data, err := marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, s.key)
		if err == nil {
			return changed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, fmt.Errorf("failed to update links: %w", err)
	}

	return false, ErrConflict
}

func (s *Store) load(ctx context.Context, c getter) ([]domain.Link, error) {
	data, err := c.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.Link{}, nil
		}
		return nil, fmt.Errorf("failed to get links: %w", err)
	}

	var links []domain.Link
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, fmt.Errorf("failed to unmarshal links: %w", err)
	}
	if links == nil {
		links = []domain.Link{}
	}
	return links, nil
}

func marshal(links []domain.Link) ([]byte, error) {
	if links == nil {
		links = []domain.Link{}
	}
	data, err := json.Marshal(links)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal links: %w", err)
	}
	return data, nil
}
