// Package kafka consumes webhook events that drive cache invalidation.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"unifiedhq/internal/invalidation"
)

// HandlerFunc processes consumed messages
type HandlerFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// Consumer wraps a Sarama consumer group
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler HandlerFunc
}

// NewConsumer creates a new consumer group
func NewConsumer(brokers []string, groupID string, topics []string) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Group.Session.Timeout = 30 * time.Second
	config.Consumer.Group.Heartbeat.Interval = 10 * time.Second

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return &Consumer{
		group:  group,
		topics: topics,
	}, nil
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context, handler HandlerFunc) error {
	c.handler = handler

	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			return fmt.Errorf("consume error: %w", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close shuts down the consumer
func (c *Consumer) Close() error {
	return c.group.Close()
}

// Setup is called at the start of a new session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is called at the end of a session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a consumer group claim
func (c *Consumer) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	ctx := context.Background()

	for msg := range claim.Messages() {
		slog.Debug("received message",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)

		if err := c.handler(ctx, msg); err != nil {
			slog.Error("handler error",
				"topic", msg.Topic,
				"error", err,
			)
			// Don't commit on error - will retry
			continue
		}

		session.MarkMessage(msg, "")
	}

	return nil
}

// InvalidationHandler dispatches InvalidationEvent messages to the
// invalidation service. Malformed messages are an error (uncommitted,
// redelivered); unknown event types are logged and skipped so a
// poisoned message cannot wedge the partition.
func InvalidationHandler(svc *invalidation.Service) HandlerFunc {
	return func(ctx context.Context, msg *sarama.ConsumerMessage) error {
		var event InvalidationEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			return fmt.Errorf("unmarshaling invalidation event: %w", err)
		}

		switch event.Type {
		case invalidation.TypeRealtime:
			req, err := invalidation.NewRealtimeRequest(event.Domain, event.UserID, event.ContextID)
			if err != nil {
				return fmt.Errorf("invalid realtime event: %w", err)
			}
			svc.InvalidateRealtime(ctx, req)

		case invalidation.TypeSmart:
			req, err := invalidation.NewSmartRequest(event.Domain, event.UserID, event.ContextID, event.AffectedUsers)
			if err != nil {
				return fmt.Errorf("invalid smart event: %w", err)
			}
			svc.InvalidateSmart(ctx, req)

		case invalidation.TypeBatch:
			items := make([]invalidation.RealtimeRequest, 0, len(event.Items))
			for _, it := range event.Items {
				items = append(items, invalidation.RealtimeRequest{
					Domain:    it.Domain,
					UserID:    it.UserID,
					ContextID: it.ContextID,
				})
			}
			req, err := invalidation.NewBatchRequest(items)
			if err != nil {
				return fmt.Errorf("invalid batch event: %w", err)
			}
			svc.InvalidateBatch(ctx, req)

		default:
			slog.Warn("skipping unknown invalidation event type",
				"type", event.Type,
				"topic", msg.Topic,
			)
		}

		return nil
	}
}
