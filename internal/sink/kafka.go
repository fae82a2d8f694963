package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nao1215/hostcrawl/internal/model"
)

// Page outcomes carried by PageEvent.
const (
	OutcomeDownloaded = "downloaded"
	OutcomeFailed     = "failed"
)

// PageEvent is the Kafka message payload for one reached URL.
type PageEvent struct {
	SessionID string    `json:"session_id"`
	SeedURL   string    `json:"seed_url"`
	URL       string    `json:"url"`
	Depth     int       `json:"depth,omitempty"`
	Outcome   string    `json:"outcome"`
	Kind      string    `json:"kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	CrawledAt time.Time `json:"crawled_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes page outcomes to a Kafka topic.
type Publisher struct {
	writer messageWriter
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: false,
		},
	}
}

// NewPublisherWithWriter builds a publisher on a custom writer.
func NewPublisherWithWriter(writer messageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// PublishReport writes one message per downloaded or failed URL of report,
// keyed by session ID so a session stays on one partition. Reports with no
// reached URLs publish nothing.
func (p *Publisher) PublishReport(ctx context.Context, report *model.CrawlReport) error {
	events := PageEvents(report)
	if len(events) == 0 {
		return nil
	}

	now := time.Now().UTC()
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode page event: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(report.SessionID),
			Value: payload,
			Time:  now,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish %d page events: %w", len(msgs), err)
	}
	return nil
}

// PageEvents converts report into events, downloads first.
func PageEvents(report *model.CrawlReport) []PageEvent {
	crawledAt := report.FinishedAt.UTC()
	events := make([]PageEvent, 0, len(report.Downloaded)+len(report.Failures))
	for _, u := range report.Downloaded {
		events = append(events, PageEvent{
			SessionID: report.SessionID,
			SeedURL:   report.SeedURL,
			URL:       u,
			Depth:     report.Depths[u],
			Outcome:   OutcomeDownloaded,
			CrawledAt: crawledAt,
		})
	}
	for _, f := range report.Failures {
		events = append(events, PageEvent{
			SessionID: report.SessionID,
			SeedURL:   report.SeedURL,
			URL:       f.URL,
			Depth:     report.Depths[f.URL],
			Outcome:   OutcomeFailed,
			Kind:      f.Kind.String(),
			Error:     f.Message,
			CrawledAt: crawledAt,
		})
	}
	return events
}
