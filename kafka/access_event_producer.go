package kafka

import (
	"context"
	"encoding/json"
	"time"

	"billing-service/models"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// AccessEventProducer publishes product-access events. It implements
// services.AccessDeliverer: the Kafka publish is the delivery action.
type AccessEventProducer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewAccessEventProducer(brokers []string, topic string, logger *zap.Logger) *AccessEventProducer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	logger.Info("Access event producer initialized",
		zap.String("topic", topic),
		zap.Strings("brokers", brokers),
	)
	return &AccessEventProducer{writer: w, topic: topic, logger: logger}
}

func (p *AccessEventProducer) DeliverAccess(ctx context.Context, order *models.Order) error {
	event := models.AccessGrantedEvent{
		OrderID:       order.ID.String(),
		CustomerEmail: order.CustomerEmail,
		ProductID:     order.ProductID,
		Gateway:       order.Gateway,
		Amount:        order.Amount,
		Currency:      order.Currency,
		Timestamp:     time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(event.OrderID),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish access granted event",
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
		return err
	}

	p.logger.Info("Published access granted event",
		zap.String("order_id", event.OrderID),
		zap.String("product_id", event.ProductID),
	)
	return nil
}

func (p *AccessEventProducer) Close() {
	_ = p.writer.Close()
	p.logger.Info("Access event producer closed")
}
