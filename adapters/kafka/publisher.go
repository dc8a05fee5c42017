// Package kafka publishes emitted insights for the narration and UI consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"n1core/internal"
	"n1core/internal/config"
	"n1core/ports"
)

// EnvelopeVersion is carried in the message header so consumers can branch on layout
const EnvelopeVersion = "1"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher implements ports.InsightPublisher. Messages are keyed by athlete so one
// athlete's insights stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *internal.Logger
}

// NewPublisher creates a kafka-go writer for the insight topic
func NewPublisher(cfg config.KafkaConfig, logger *internal.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.InsightTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Publisher{writer: w, topic: cfg.InsightTopic, logger: logger.Or()}
}

// Publish writes one message per envelope in a single batch
func (p *Publisher) Publish(ctx context.Context, envelopes []ports.InsightEnvelope) error {
	if len(envelopes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, 0, len(envelopes))
	for _, env := range envelopes {
		if env.Insight == nil {
			continue
		}
		value, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("encode insight %s: %w", env.Insight.ID, err)
		}
		msgs = append(msgs, kafkago.Message{
			Key:   []byte(env.Insight.AthleteID.String()),
			Value: value,
			Headers: []kafkago.Header{
				{Key: "envelope_version", Value: []byte(EnvelopeVersion)},
				{Key: "rule_id", Value: []byte(env.Insight.RuleID.String())},
				{Key: "mode", Value: []byte(env.Insight.Mode)},
			},
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d insights to %s: %w", len(msgs), p.topic, err)
	}
	p.logger.Debug("published %d insights to %s", len(msgs), p.topic)
	return nil
}

// Close flushes and closes the writer
func (p *Publisher) Close() error {
	return p.writer.Close()
}
