// Package events publishes wallet domain events after state changes are durable.
package events

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Type string

const (
	TrustRequested    Type = "trust.requested"
	TrustAccepted     Type = "trust.accepted"
	TrustDeclined     Type = "trust.declined"
	TrustCancelled    Type = "trust.cancelled"
	TransferExecuted  Type = "transfer.executed"
	TransferDeferred  Type = "transfer.deferred"
	TransferCompleted Type = "transfer.completed"
	TransferCancelled Type = "transfer.cancelled"
)

// Event is the envelope written to the bus. WalletID is the acting wallet,
// SubjectID the relationship or transfer the event is about.
type Event struct {
	ID         string          `json:"id"`
	Type       Type            `json:"type"`
	WalletID   uint            `json:"wallet_id"`
	SubjectID  uint            `json:"subject_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// New builds an event with a time-ordered ULID id.
func New(typ Type, walletID, subjectID uint, payload interface{}) (Event, error) {
	now := time.Now().UTC()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return Event{}, fmt.Errorf("failed to generate event id: %w", err)
	}
	ev := Event{
		ID:         id.String(),
		Type:       typ,
		WalletID:   walletID,
		SubjectID:  subjectID,
		OccurredAt: now,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("failed to encode %s payload: %w", typ, err)
		}
		ev.Payload = raw
	}
	return ev, nil
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// KafkaPublisher writes events to a topic keyed by wallet id so a wallet's
// events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", ev.ID, err)
	}
	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(ev.WalletID), 10)),
		Value: value,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.ID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s to kafka: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct {
	Logger *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, ev Event) error {
	p.Logger.Info("[EVENT] "+string(ev.Type),
		zap.String("event_id", ev.ID),
		zap.Uint("wallet_id", ev.WalletID),
		zap.Uint("subject_id", ev.SubjectID),
	)
	return nil
}

func (LogPublisher) Close() error { return nil }

// SplitBrokers parses a comma separated broker list, dropping blanks.
func SplitBrokers(raw string) []string {
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
