package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/streamlinks/internal/classify"
	"github.com/MrSnakeDoc/streamlinks/internal/domain"
	"github.com/MrSnakeDoc/streamlinks/internal/index"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
	redisstore "github.com/MrSnakeDoc/streamlinks/internal/store/redis"
)

type testEnv struct {
	pipeline *Pipeline
	store    *redisstore.Store
	seen     *index.SeenSet
	writer   *Writer
	mr       *miniredis.Miniredis
}

func newTestEnv(t *testing.T, policyName string) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return newTestEnvOn(t, client, mr, policyName)
}

func newTestEnvOn(t *testing.T, client *goredis.Client, mr *miniredis.Miniredis, policyName string) *testEnv {
	t.Helper()

	log := logger.New("error", false)
	store := redisstore.NewStore(client)

	policy, err := classify.New(policyName, classify.DefaultRules())
	if err != nil {
		t.Fatalf("classify.New() error = %v", err)
	}

	seen := index.NewSeenSet()
	urls, err := store.SeenURLs(context.Background())
	if err != nil {
		t.Fatalf("SeenURLs() error = %v", err)
	}
	seen.Seed(urls)

	ctx, cancel := context.WithCancel(context.Background())
	writer := NewWriter(store, log, 0)
	writer.Start(ctx)
	t.Cleanup(func() {
		writer.Stop()
		cancel()
	})

	return &testEnv{
		pipeline: NewPipeline(store, writer, policy, seen, log),
		store:    store,
		seen:     seen,
		writer:   writer,
		mr:       mr,
	}
}

func TestIngestTextAddsAutoLink(t *testing.T) {
	env := newTestEnv(t, classify.PolicyBlocklist)
	ctx := context.Background()

	res, err := env.pipeline.IngestText(ctx, "check this https://sportsite.tv/live/1080 now")
	if err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}
	if len(res.Links) != 1 {
		t.Fatalf("IngestText() accepted %d links, want 1", len(res.Links))
	}

	links, err := env.store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("GetAll() returned %d links, want 1", len(links))
	}

	got := links[0]
	if got.URL != "https://sportsite.tv/live/1080" {
		t.Errorf("URL = %s", got.URL)
	}
	if got.Sport != domain.SportOther {
		t.Errorf("Sport = %s, want Other", got.Sport)
	}
	if got.Source != domain.SourceAuto {
		t.Errorf("Source = %s, want auto", got.Source)
	}
	if res.Total != 1 {
		t.Errorf("Total = %d, want 1", res.Total)
	}
}

func TestIngestExistingURLIsNoop(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	seedStore := redisstore.NewStore(client)
	existing := domain.NewAutoLink("https://a.com/x", "", time.Now().Add(-time.Hour))
	if err := seedStore.ReplaceAll(context.Background(), []domain.Link{existing}); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}

	env := newTestEnvOn(t, client, mr, classify.PolicyBlocklist)

	res, err := env.pipeline.IngestText(context.Background(), "again https://a.com/x")
	if err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}
	if len(res.Links) != 0 {
		t.Errorf("IngestText() accepted %v, want none", res.URLs())
	}

	links, _ := env.store.GetAll(context.Background())
	if len(links) != 1 {
		t.Errorf("GetAll() returned %d links, want 1", len(links))
	}
	if links[0].Timestamp != existing.Timestamp {
		t.Error("existing link timestamp must not change")
	}
}

func TestIngestBlockedDomainLeavesStoreUnchanged(t *testing.T) {
	env := newTestEnv(t, classify.PolicyBlocklist)
	ctx := context.Background()

	candidates := Candidates([]string{"t.me/sharedchannel"}, "", env.pipeline.Policy())
	if len(candidates) != 0 {
		t.Fatalf("Candidates() = %v, want none", candidates)
	}

	res, err := env.pipeline.IngestText(ctx, "visit t.me/sharedchannel or https://t.me/sharedchannel")
	if err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}
	if len(res.Links) != 0 {
		t.Errorf("IngestText() accepted %v, want none", res.URLs())
	}

	links, _ := env.store.GetAll(ctx)
	if len(links) != 0 {
		t.Errorf("store holds %d links, want 0", len(links))
	}
}

func TestIngestConcurrentPassesStoreOnce(t *testing.T) {
	env := newTestEnv(t, classify.PolicyBlocklist)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.pipeline.IngestText(ctx, "https://race.example/live https://other.example/hd"); err != nil {
				t.Errorf("IngestText() error = %v", err)
			}
		}()
	}
	wg.Wait()

	links, _ := env.store.GetAll(ctx)
	if len(links) != 2 {
		t.Errorf("store holds %d links, want 2", len(links))
	}
}

func TestTwoPipelinesShareStoreWithoutDuplicates(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	clientB := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = clientA.Close()
		_ = clientB.Close()
	})

	a := newTestEnvOn(t, clientA, mr, classify.PolicyBlocklist)
	b := newTestEnvOn(t, clientB, mr, classify.PolicyBlocklist)

	var wg sync.WaitGroup
	for _, env := range []*testEnv{a, b} {
		wg.Add(1)
		go func(env *testEnv) {
			defer wg.Done()
			_, _ = env.pipeline.IngestText(context.Background(), "https://shared.example/stream")
		}(env)
	}
	wg.Wait()

	links, _ := a.store.GetAll(context.Background())
	if len(links) != 1 {
		t.Errorf("store holds %d links, want 1", len(links))
	}
}

func TestRemovedURLIsNotReingested(t *testing.T) {
	env := newTestEnv(t, classify.PolicyBlocklist)
	ctx := context.Background()

	if _, err := env.pipeline.IngestText(ctx, "https://a.com/live"); err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}
	if err := env.pipeline.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	res, err := env.pipeline.IngestText(ctx, "https://a.com/live")
	if err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}
	if len(res.Links) != 0 {
		t.Errorf("cleared URL was re-ingested: %v", res.URLs())
	}

	link, err := env.pipeline.AddManual(ctx, "a.com/live", domain.SportCricket, "back again")
	if err != nil {
		t.Fatalf("AddManual() error = %v", err)
	}
	if link.URL != "https://a.com/live" || link.Source != domain.SourceManual {
		t.Errorf("AddManual() = %+v", link)
	}
}

func TestAddManualErrors(t *testing.T) {
	env := newTestEnv(t, classify.PolicyBlocklist)
	ctx := context.Background()

	if _, err := env.pipeline.AddManual(ctx, "https://", domain.SportOther, ""); !errors.Is(err, domain.ErrInvalidURL) {
		t.Errorf("AddManual(bad url) error = %v, want ErrInvalidURL", err)
	}
	if _, err := env.pipeline.AddManual(ctx, "https://a.com", domain.Sport("Polo"), ""); !errors.Is(err, domain.ErrUnknownSport) {
		t.Errorf("AddManual(bad sport) error = %v, want ErrUnknownSport", err)
	}
	if _, err := env.pipeline.AddManual(ctx, "https://a.com", domain.SportTennis, ""); err != nil {
		t.Fatalf("AddManual() error = %v", err)
	}
	if _, err := env.pipeline.AddManual(ctx, "https://a.com", domain.SportTennis, ""); !errors.Is(err, domain.ErrLinkExists) {
		t.Errorf("AddManual(duplicate) error = %v, want ErrLinkExists", err)
	}
}

func TestStorageFailureLeavesURLUnseen(t *testing.T) {
	env := newTestEnv(t, classify.PolicyBlocklist)

	env.mr.SetError("storage down")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := env.pipeline.IngestText(ctx, "https://a.com/live")
	if err != nil {
		t.Fatalf("IngestText() error = %v, want nil (best effort)", err)
	}
	if len(res.Links) != 0 {
		t.Errorf("IngestText() accepted %v while storage is down", res.URLs())
	}
	if env.seen.Has("https://a.com/live") {
		t.Error("failed URL must stay unseen")
	}

	env.mr.SetError("")
	res, err = env.pipeline.IngestText(context.Background(), "https://a.com/live")
	if err != nil || len(res.Links) != 1 {
		t.Errorf("retry IngestText() = %v, %v, want one link", res.URLs(), err)
	}
}

func TestActiveAndListeners(t *testing.T) {
	env := newTestEnv(t, classify.PolicyBlocklist)
	ctx := context.Background()

	var notified []string
	env.pipeline.OnAccepted(func(links []domain.Link) {
		for _, l := range links {
			notified = append(notified, l.URL)
		}
	})

	old := domain.NewAutoLink("https://old.example", "", time.Now().Add(-30*time.Hour))
	if _, err := env.pipeline.ReplaceAll(ctx, []domain.Link{old}); err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}
	if _, err := env.pipeline.IngestText(ctx, "https://new.example/live"); err != nil {
		t.Fatalf("IngestText() error = %v", err)
	}

	active, err := env.pipeline.Active(ctx)
	if err != nil {
		t.Fatalf("Active() error = %v", err)
	}
	if len(active) != 1 || active[0].URL != "https://new.example/live" {
		t.Errorf("Active() = %v, want only the new link", active)
	}
	if len(notified) != 1 || notified[0] != "https://new.example/live" {
		t.Errorf("listener got %v", notified)
	}

	removed, err := env.pipeline.Remove(ctx, "https://old.example")
	if err != nil || !removed {
		t.Errorf("Remove() = %v, %v", removed, err)
	}
	all, _ := env.pipeline.Links(ctx)
	if len(all) != 1 {
		t.Errorf("Links() returned %d, want 1", len(all))
	}
}

func TestReplaceAllKeepsURLsUnique(t *testing.T) {
	env := newTestEnv(t, classify.PolicyBlocklist)
	ctx := context.Background()

	stored, err := env.pipeline.ReplaceAll(ctx, []domain.Link{
		{URL: " sportsite.tv/live ", Description: " first "},
		{URL: "https://sportsite.tv/live", Sport: domain.SportFootball, Description: "second"},
		{URL: "https://other.tv/x", Sport: domain.SportCricket, Source: domain.SourceAuto, Timestamp: "not a time"},
	})
	if err != nil {
		t.Fatalf("ReplaceAll() error = %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("ReplaceAll() stored %d links, want 2: %v", len(stored), stored)
	}

	first := stored[0]
	if first.URL != "https://sportsite.tv/live" || first.Description != "first" {
		t.Errorf("first link = %+v, want the normalized first record", first)
	}
	if first.Sport != domain.SportOther || first.Source != domain.SourceManual || first.Timestamp == "" {
		t.Errorf("first link defaults = %+v", first)
	}
	if stored[1].Timestamp != "not a time" {
		t.Errorf("Timestamp = %q, want the stored value kept", stored[1].Timestamp)
	}
	if !env.pipeline.Seen("https://sportsite.tv/live") {
		t.Error("replaced URLs should be seen")
	}

	removed, err := env.pipeline.Remove(ctx, "https://sportsite.tv/live")
	if err != nil || !removed {
		t.Fatalf("Remove() = %v, %v", removed, err)
	}
	all, err := env.store.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(all) != 1 || all[0].URL != "https://other.tv/x" {
		t.Errorf("after Remove() stored %v, want only https://other.tv/x", all)
	}
}

func TestReplaceAllRejectsInvalidRecords(t *testing.T) {
	tests := []struct {
		name string
		link domain.Link
		want error
	}{
		{name: "no host", link: domain.Link{URL: "https://"}, want: domain.ErrInvalidURL},
		{name: "empty url", link: domain.Link{URL: "  "}, want: domain.ErrInvalidURL},
		{name: "unknown sport", link: domain.Link{URL: "https://a.tv/live", Sport: "Curling"}, want: domain.ErrUnknownSport},
		{name: "unknown source", link: domain.Link{URL: "https://a.tv/live", Source: "bot"}, want: domain.ErrUnknownSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, classify.PolicyBlocklist)
			ctx := context.Background()

			keep := domain.NewAutoLink("https://kept.tv/live", "", time.Now())
			if _, err := env.pipeline.ReplaceAll(ctx, []domain.Link{keep}); err != nil {
				t.Fatalf("ReplaceAll() error = %v", err)
			}

			_, err := env.pipeline.ReplaceAll(ctx, []domain.Link{
				domain.NewAutoLink("https://fine.tv/live", "", time.Now()),
				tt.link,
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("ReplaceAll() error = %v, want %v", err, tt.want)
			}

			all, _ := env.store.GetAll(ctx)
			if len(all) != 1 || all[0].URL != keep.URL {
				t.Errorf("stored %v, want the collection untouched", all)
			}
		})
	}
}

func TestWriterStopped(t *testing.T) {
	env := newTestEnv(t, classify.PolicyBlocklist)
	env.writer.Stop()

	if _, err := env.writer.AddIfAbsent(context.Background(), domain.NewAutoLink("https://a.com", "", time.Now())); !errors.Is(err, ErrWriterStopped) {
		t.Errorf("AddIfAbsent() after Stop error = %v, want ErrWriterStopped", err)
	}
}

func TestWriterSkipsAbandonedWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := redisstore.NewStore(client)

	// not started yet: submitted ops wait in the queue
	w := NewWriter(store, logger.New("error", false), 0)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := w.AddIfAbsent(ctx, domain.NewAutoLink("https://late.example/live", "", time.Now()))
		errCh <- err
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(w.queue) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("write never reached the queue")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("AddIfAbsent() error = %v, want context.Canceled", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	w.Start(runCtx)
	defer w.Stop()

	// queued behind the abandoned write, so it runs after it
	if _, err := w.AddIfAbsent(context.Background(), domain.NewAutoLink("https://next.example/live", "", time.Now())); err != nil {
		t.Fatalf("AddIfAbsent() error = %v", err)
	}

	links, err := store.GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll() error = %v", err)
	}
	if len(links) != 1 || links[0].URL != "https://next.example/live" {
		t.Errorf("stored %v, want only the write whose caller waited", links)
	}
}

func TestCandidatesAndMerge(t *testing.T) {
	policy, _ := classify.New(classify.PolicyBlocklist, classify.DefaultRules())

	got := Candidates([]string{
		" https://a.com/x ",
		"https://a.com/x",
		"https://",
		"b.com/live",
		"https://youtube.com/watch",
	}, "ctx", policy)

	if len(got) != 2 {
		t.Fatalf("Candidates() = %v, want 2 entries", got)
	}
	if got[0].URL != "https://a.com/x" || got[1].URL != "https://b.com/live" || got[0].Context != "ctx" {
		t.Errorf("Candidates() = %v", got)
	}

	merged := Merge(got, []Candidate{{URL: "https://b.com/live"}, {URL: "https://c.com"}})
	if len(merged) != 3 {
		t.Errorf("Merge() = %v, want 3 entries", merged)
	}
}
