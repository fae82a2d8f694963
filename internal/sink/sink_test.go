package sink

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/nao1215/hostcrawl/internal/model"
)

func testReport() *model.CrawlReport {
	r := model.NewCrawlReport("http://example.com/", 2)
	r.Downloaded = []string{"http://example.com/", "http://example.com/a"}
	r.AddFailure("http://example.com/b", model.FailureDownload, "unexpected HTTP status: 404")
	r.Depths = map[string]int{"http://example.com/": 1, "http://example.com/a": 2, "http://example.com/b": 2}
	r.Edges = []model.Edge{
		{From: "http://example.com/", To: "http://example.com/a"},
		{From: "http://example.com/", To: "http://example.com/b"},
	}
	r.Finish()
	return r
}

type fakeMessageWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeMessageWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeMessageWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublisherPublishReport(t *testing.T) {
	t.Parallel()

	t.Run("one message per reached URL", func(t *testing.T) {
		t.Parallel()

		writer := &fakeMessageWriter{}
		pub := NewPublisherWithWriter(writer)
		report := testReport()

		if err := pub.PublishReport(context.Background(), report); err != nil {
			t.Fatalf("PublishReport returned error: %v", err)
		}
		if len(writer.msgs) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(writer.msgs))
		}
		for _, msg := range writer.msgs {
			if string(msg.Key) != report.SessionID {
				t.Errorf("unexpected message key: %s", msg.Key)
			}
		}

		var failed PageEvent
		if err := json.Unmarshal(writer.msgs[2].Value, &failed); err != nil {
			t.Fatalf("failed to decode message: %v", err)
		}
		if failed.URL != "http://example.com/b" || failed.Outcome != OutcomeFailed ||
			failed.Kind != "download_error" || failed.Depth != 2 {
			t.Errorf("unexpected failure event: %+v", failed)
		}
	})

	t.Run("empty report publishes nothing", func(t *testing.T) {
		t.Parallel()

		writer := &fakeMessageWriter{err: errors.New("should not be called")}
		pub := NewPublisherWithWriter(writer)
		if err := pub.PublishReport(context.Background(), model.NewCrawlReport("http://example.com/", 1)); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("writer error is returned", func(t *testing.T) {
		t.Parallel()

		writer := &fakeMessageWriter{err: errors.New("write failed")}
		pub := NewPublisherWithWriter(writer)
		if err := pub.PublishReport(context.Background(), testReport()); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("close closes writer", func(t *testing.T) {
		t.Parallel()

		writer := &fakeMessageWriter{}
		if err := NewPublisherWithWriter(writer).Close(); err != nil {
			t.Fatal(err)
		}
		if !writer.closed {
			t.Error("writer was not closed")
		}
	})
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttl  map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, _ := value.([]byte)
	f.data[key] = string(b)
	f.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisStatusStore(t *testing.T) {
	t.Parallel()

	client := newFakeRedis()
	store := NewRedisStatusStoreWithClient(client, "", time.Hour)
	ctx := context.Background()

	status := StatusFromReport(testReport())
	if err := store.SetStatus(ctx, status); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	key := DefaultStatusPrefix + status.SessionID
	if _, ok := client.data[key]; !ok {
		t.Fatalf("expected key %q to be set", key)
	}
	if client.ttl[key] != time.Hour {
		t.Errorf("ttl = %v, want 1h", client.ttl[key])
	}

	got, ok, err := store.GetStatus(ctx, status.SessionID)
	if err != nil || !ok {
		t.Fatalf("GetStatus = %v, %v", ok, err)
	}
	if got.State != StateFinished || got.Downloaded != 2 || got.Failed != 1 {
		t.Errorf("unexpected status: %+v", got)
	}

	t.Run("missing key", func(t *testing.T) {
		_, ok, err := store.GetStatus(ctx, "missing")
		if err != nil || ok {
			t.Errorf("expected not found, got ok=%v err=%v", ok, err)
		}
	})
}

func TestStatusFromReport(t *testing.T) {
	t.Parallel()

	running := model.NewCrawlReport("http://example.com/", 1)

	cancelled := testReport()
	cancelled.Cancelled = true
	cancelled.Error = "context canceled"

	failed := testReport()
	failed.Error = "crawler is closed"

	tests := []struct {
		name   string
		report *model.CrawlReport
		want   string
	}{
		{"running", running, StateRunning},
		{"finished", testReport(), StateFinished},
		{"cancelled wins over error", cancelled, StateCancelled},
		{"failed", failed, StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := StatusFromReport(tt.report).State; got != tt.want {
				t.Errorf("state = %q, want %q", got, tt.want)
			}
		})
	}
}

type fakeSession struct {
	mu     sync.Mutex
	writes int
	closed int
	err    error
}

func (s *fakeSession) ExecuteWrite(_ context.Context, _ neo4j.ManagedTransactionWork, _ ...func(*neo4j.TransactionConfig)) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	return nil, s.err
}

func (s *fakeSession) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

type fakeDriver struct {
	session *fakeSession
	config  neo4j.SessionConfig
}

func (d *fakeDriver) NewSession(_ context.Context, config neo4j.SessionConfig) SessionRunner {
	d.config = config
	return d.session
}

func (d *fakeDriver) Close(context.Context) error { return nil }

func TestGraphWriterWriteReport(t *testing.T) {
	t.Parallel()

	t.Run("writes pages then edges", func(t *testing.T) {
		t.Parallel()

		driver := &fakeDriver{session: &fakeSession{}}
		w := NewGraphWriterWithDriver(driver, nil)

		if err := w.WriteReport(context.Background(), testReport()); err != nil {
			t.Fatalf("WriteReport failed: %v", err)
		}
		if driver.session.writes != 2 || driver.session.closed != 2 {
			t.Errorf("writes=%d closed=%d, want 2 and 2", driver.session.writes, driver.session.closed)
		}
		if driver.config.AccessMode != neo4j.AccessModeWrite {
			t.Error("expected write access mode")
		}
	})

	t.Run("empty report writes nothing", func(t *testing.T) {
		t.Parallel()

		driver := &fakeDriver{session: &fakeSession{}}
		w := NewGraphWriterWithDriver(driver, nil)
		if err := w.WriteReport(context.Background(), model.NewCrawlReport("http://example.com/", 1)); err != nil {
			t.Fatal(err)
		}
		if driver.session.writes != 0 {
			t.Errorf("expected no writes, got %d", driver.session.writes)
		}
	})

	t.Run("session error is returned", func(t *testing.T) {
		t.Parallel()

		driver := &fakeDriver{session: &fakeSession{err: errors.New("unavailable")}}
		w := NewGraphWriterWithDriver(driver, nil)
		if err := w.WriteReport(context.Background(), testReport()); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestBuildQueries(t *testing.T) {
	t.Parallel()

	report := testReport()

	query, params := buildPagesQuery(report)
	if !strings.Contains(query, "MERGE (n:Page {url: p.url})") {
		t.Errorf("unexpected pages query: %s", query)
	}
	pages, ok := params["pages"].([]map[string]any)
	if !ok || len(pages) != 3 {
		t.Fatalf("expected 3 page params, got %v", params["pages"])
	}
	if pages[2]["status"] != OutcomeFailed {
		t.Errorf("third page status = %v", pages[2]["status"])
	}

	query, params = buildEdgesQuery(report)
	if !strings.Contains(query, "[r:LINKS_TO {session_id: $session_id}]") {
		t.Errorf("unexpected edges query: %s", query)
	}
	if params["session_id"] != report.SessionID {
		t.Errorf("session_id param = %v", params["session_id"])
	}
	if edges, ok := params["edges"].([]map[string]any); !ok || len(edges) != 2 {
		t.Errorf("expected 2 edge params, got %v", params["edges"])
	}
}
