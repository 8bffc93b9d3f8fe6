// Package events publishes leaderboard lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/okian/octofit/internal/domain/model"
	"github.com/okian/octofit/pkg/logger"
	"github.com/okian/octofit/pkg/metrics"
)

// TypeLeaderboardRecomputed is the event type header value.
const TypeLeaderboardRecomputed = "leaderboard.recomputed"

// topSize is how many leading entries an event carries.
const topSize = 10

// LeaderboardRecomputed announces a persisted recompute.
type LeaderboardRecomputed struct {
	RunID      string                   `json:"run_id"`
	Entries    int                      `json:"entries"`
	Skipped    int                      `json:"skipped"`
	ComputedAt time.Time                `json:"computed_at"`
	Top        []model.LeaderboardEntry `json:"top"`
}

// NewLeaderboardRecomputed builds the event for a run, keeping at most the
// first ten ranked entries.
func NewLeaderboardRecomputed(runID string, entries []model.LeaderboardEntry, skipped int, at time.Time) LeaderboardRecomputed {
	top := entries
	if len(top) > topSize {
		top = top[:topSize]
	}
	return LeaderboardRecomputed{
		RunID:      runID,
		Entries:    len(entries),
		Skipped:    skipped,
		ComputedAt: at,
		Top:        append(make([]model.LeaderboardEntry, 0, len(top)), top...),
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	PublishLeaderboardRecomputed(ctx context.Context, ev LeaderboardRecomputed) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishLeaderboardRecomputed implements Publisher.
func (NopPublisher) PublishLeaderboardRecomputed(context.Context, LeaderboardRecomputed) error {
	metrics.RecordEventPublished("skipped")
	return nil
}

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic, keyed by run id.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    logger.Logger
}

// NewKafkaPublisher creates a publisher writing to topic on brokers. Writes
// wait for all in-sync replicas.
func NewKafkaPublisher(brokers []string, topic string, log logger.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return newKafkaPublisher(w, topic, log)
}

func newKafkaPublisher(w messageWriter, topic string, log logger.Logger) *KafkaPublisher {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaPublisher{writer: w, topic: topic, log: log.Named("events")}
}

// PublishLeaderboardRecomputed implements Publisher.
func (p *KafkaPublisher) PublishLeaderboardRecomputed(ctx context.Context, ev LeaderboardRecomputed) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		metrics.RecordEventPublished("error")
		return fmt.Errorf("encode %s: %w", TypeLeaderboardRecomputed, err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.RunID),
		Value: payload,
		Time:  ev.ComputedAt.UTC(),
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(TypeLeaderboardRecomputed)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.RecordEventPublished("error")
		return fmt.Errorf("publish %s to %s: %w", TypeLeaderboardRecomputed, p.topic, err)
	}
	metrics.RecordEventPublished("ok")
	p.log.Debug(ctx, "event published",
		logger.String("topic", p.topic),
		logger.String("run_id", ev.RunID),
		logger.Int("entries", ev.Entries),
	)
	return nil
}

// Close flushes pending writes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}

// New returns a KafkaPublisher when brokers are configured and a NopPublisher
// otherwise.
func New(brokers []string, topic string, log logger.Logger) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic, log)
}
