package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Consumer drives admin notifications off the deal-events topic. Deals
// that reach "paid" are the ones waiting on a manual release, so those
// get flagged for the configured admin.
type Consumer struct {
	reader  *kafka.Reader
	adminID string
}

func NewConsumer(brokers []string, topic, groupID, adminID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		adminID: adminID,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		var event struct {
			EventType  string  `json:"event_type"`
			TradeCode  string  `json:"trade_code"`
			UsdtAmount float64 `json:"usdt_amount"`
			Status     string  `json:"status"`
			CreatedAt  string  `json:"created_at"`
		}
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("failed to unmarshal deal event", "error", err)
			continue
		}

		switch event.EventType {
		case "payment_confirmed":
			slog.Info("admin notification: deal awaiting release",
				"admin_id", c.adminID,
				"trade_code", event.TradeCode,
				"usdt_amount", event.UsdtAmount)
		default:
			slog.Info("deal event received",
				"event_type", event.EventType,
				"trade_code", event.TradeCode,
				"status", event.Status)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
