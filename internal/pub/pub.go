package pub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"settlement-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	// SettlementEventsChannel is the Redis pub/sub channel realtime
	// consumers (e.g. an admin dashboard) subscribe to.
	SettlementEventsChannel = "settlement_events"
)

// SettlementEvent describes a lifecycle change of a funds request.
// Event types: transaction.submitted, transaction.approved, transaction.rejected.
type SettlementEvent struct {
	EventType     string    `json:"event_type"`
	TransactionID int64     `json:"transaction_id"`
	ReferenceCode string    `json:"reference_code"`
	AccountID     int64     `json:"account_id"`
	Kind          string    `json:"kind"`
	Amount        int64     `json:"amount"`
	Status        string    `json:"status"`
	BalanceAfter  *int64    `json:"balance_after,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// SettlementEventPublisher fans settlement events out to Redis pub/sub and a
// Kafka topic. Both sinks are optional and best-effort: a publish failure is
// logged and never fails the settlement that produced the event.
type SettlementEventPublisher struct {
	rdb         *redis.Client
	kafkaWriter *kafka.Writer
	logger      *zap.Logger
}

func NewSettlementEventPublisher(rdb *redis.Client, kafkaWriter *kafka.Writer, logger *zap.Logger) *SettlementEventPublisher {
	return &SettlementEventPublisher{
		rdb:         rdb,
		kafkaWriter: kafkaWriter,
		logger:      logger,
	}
}

// PublishSubmitted announces a newly created pending transaction.
func (p *SettlementEventPublisher) PublishSubmitted(ctx context.Context, tx *domain.Transaction) {
	p.publish(ctx, &SettlementEvent{
		EventType:     "transaction.submitted",
		TransactionID: tx.ID,
		ReferenceCode: tx.ReferenceCode,
		AccountID:     tx.AccountID,
		Kind:          string(tx.Kind),
		Amount:        tx.Amount,
		Status:        string(tx.Status),
	})
}

// PublishSettled announces a terminal settlement outcome. balanceAfter is nil
// for rejections, which have no balance effect.
func (p *SettlementEventPublisher) PublishSettled(ctx context.Context, tx *domain.Transaction, balanceAfter *int64) {
	p.publish(ctx, &SettlementEvent{
		EventType:     fmt.Sprintf("transaction.%s", tx.Status),
		TransactionID: tx.ID,
		ReferenceCode: tx.ReferenceCode,
		AccountID:     tx.AccountID,
		Kind:          string(tx.Kind),
		Amount:        tx.Amount,
		Status:        string(tx.Status),
		BalanceAfter:  balanceAfter,
	})
}

func (p *SettlementEventPublisher) publish(ctx context.Context, event *SettlementEvent) {
	event.Timestamp = time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal settlement event", zap.Error(err))
		return
	}

	if p.rdb != nil {
		if err := p.rdb.Publish(ctx, SettlementEventsChannel, payload).Err(); err != nil {
			p.logger.Warn("failed to publish settlement event to redis",
				zap.String("event_type", event.EventType),
				zap.Error(err))
		}
	}

	if p.kafkaWriter != nil {
		err := p.kafkaWriter.WriteMessages(ctx, kafka.Message{
			Key:   []byte(event.ReferenceCode),
			Value: payload,
			Time:  event.Timestamp,
		})
		if err != nil {
			p.logger.Warn("failed to publish settlement event to kafka",
				zap.String("event_type", event.EventType),
				zap.Error(err))
		}
	}
}
