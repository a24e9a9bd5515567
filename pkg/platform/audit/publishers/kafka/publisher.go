// Package kafka produces audit events to a Kafka topic.
//
// The publisher is an audit.Store so it can sit behind the async publisher.
// Failed produces open a circuit breaker; while it is open events are parked in
// a bounded ring buffer and flushed once a probe succeeds.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "verigate/pkg/platform/audit"
	"verigate/pkg/platform/circuit"
)

const flushBatch = 100

// Producer is the subset of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Publisher struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	pending  *RingBuffer
	logger   *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

// WithPendingCapacity bounds how many events are parked while Kafka is unavailable.
func WithPendingCapacity(n int) Option {
	return func(p *Publisher) {
		p.pending = NewRingBuffer(n)
	}
}

func New(producer Producer, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    topic,
		breaker:  circuit.New("audit-kafka", circuit.WithSuccessThreshold(1)),
		pending:  NewRingBuffer(10000),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Append produces event. If Kafka is unavailable the event is parked and nil
// is returned; only encoding failures are reported.
func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	record, err := p.record(event)
	if err != nil {
		return err
	}

	if !p.breaker.Allow() {
		p.pending.Enqueue(event)
		return nil
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.pending.Enqueue(event)
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "audit kafka circuit opened", "topic", p.topic, "error", err)
		}
		return nil
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "audit kafka circuit closed", "topic", p.topic)
	}
	p.flush(ctx)
	return nil
}

// Pending reports how many events are waiting for Kafka.
func (p *Publisher) Pending() int {
	return p.pending.Len()
}

func (p *Publisher) flush(ctx context.Context) {
	for {
		batch := p.pending.DequeueBatch(flushBatch)
		if len(batch) == 0 {
			return
		}
		records := make([]*kgo.Record, 0, len(batch))
		for _, e := range batch {
			r, err := p.record(e)
			if err != nil {
				continue
			}
			records = append(records, r)
		}
		results := p.producer.ProduceSync(ctx, records...)
		if err := results.FirstErr(); err != nil {
			for _, e := range batch {
				p.pending.Enqueue(e)
			}
			p.breaker.RecordFailure()
			p.logger.WarnContext(ctx, "failed to flush parked audit events", "count", len(batch), "error", err)
			return
		}
	}
}

func (p *Publisher) record(event audit.Event) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal audit event: %w", err)
	}
	key := event.AttemptID
	if key == "" {
		key = event.ID
	}
	return &kgo.Record{
		Topic: p.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}, nil
}

// EnsureTopic creates topic if it does not exist.
func EnsureTopic(ctx context.Context, adm *kadm.Client, topic string, partitions int32, replicas int16) error {
	resp, err := adm.CreateTopics(ctx, partitions, replicas, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
