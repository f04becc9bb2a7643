package scheduler

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/streamlinks/internal/classify"
	"github.com/MrSnakeDoc/streamlinks/internal/index"
	"github.com/MrSnakeDoc/streamlinks/internal/ingest"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
	redisstore "github.com/MrSnakeDoc/streamlinks/internal/store/redis"
)

func newTestPipeline(t *testing.T) (*ingest.Pipeline, *redisstore.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := logger.New("error", false)
	store := redisstore.NewStore(client)

	policy, err := classify.New(classify.PolicyBlocklist, classify.DefaultRules())
	if err != nil {
		t.Fatalf("classify.New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	writer := ingest.NewWriter(store, log, 0)
	writer.Start(ctx)
	t.Cleanup(func() {
		writer.Stop()
		cancel()
	})

	return ingest.NewPipeline(store, writer, policy, index.NewSeenSet(), log), store
}
