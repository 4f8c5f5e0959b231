// Package publisher writes classified flows to Kafka as JSON.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/navid-fn/flowradar/internal/models"
)

// MessageWriter is the subset of *kafka.Writer used here.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Publisher sends one message per flow, keyed by the flow id so that
// redeliveries of the same event land on the same partition.
type Publisher struct {
	writer       MessageWriter
	writeTimeout time.Duration
}

func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer, writeTimeout: 5 * time.Second}
}

// NewKafkaWriter builds the writer used by the watcher.
func NewKafkaWriter(broker, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

func (p *Publisher) PublishFlows(ctx context.Context, events []models.CapitalFlowEvent) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("serialize flow %s: %w", ev.ID, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(ev.ID), Value: data})
	}

	writeCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(writeCtx, msgs...); err != nil {
		return fmt.Errorf("kafka write failed: %w", err)
	}
	return nil
}

// DecodeFlow parses a message produced by PublishFlows.
func DecodeFlow(msg kafka.Message) (models.CapitalFlowEvent, error) {
	var ev models.CapitalFlowEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return ev, fmt.Errorf("decode flow: %w", err)
	}
	if ev.ID == "" || !ev.Type.Valid() || ev.Stablecoin == "" {
		return ev, fmt.Errorf("decode flow: missing required fields id=%q type=%q stablecoin=%q", ev.ID, ev.Type, ev.Stablecoin)
	}
	return ev, nil
}
