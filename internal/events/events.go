package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	WithdrawalRequested  = "withdrawal.requested"
	WithdrawalProcessing = "withdrawal.processing"
	WithdrawalCompleted  = "withdrawal.completed"
	WithdrawalFailed     = "withdrawal.failed"
	WithdrawalCancelled  = "withdrawal.cancelled"
	DepositCompleted     = "deposit.completed"
	InvestmentConfirmed  = "investment.confirmed"
	InvestmentFailed     = "investment.failed"
	InvestmentCancelled  = "investment.cancelled"
	PayoutCompleted      = "payout.completed"
	PayoutFailed         = "payout.failed"
	SettlementCompleted  = "settlement.completed"
)

// Event is a committed domain fact. Key orders events of one aggregate on
// the same partition.
type Event struct {
	Type       string    `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			MaxAttempts:            5,
			WriteBackoffMin:        50 * time.Millisecond,
			WriteBackoffMax:        time.Second,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, evt Event) error {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(evt.Key),
		Value:   data,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(evt.Type)}},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
