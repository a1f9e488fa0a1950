package repository

import (
	"context"

	"StockPulse/internal/domain/models"
	"StockPulse/pkg/kafka"
	"StockPulse/pkg/logger"
)

// KafkaPublisher emits every published prediction as an event keyed by
// symbol, so downstream consumers see per-symbol ordering.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, topic string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, log: log}
}

func (p *KafkaPublisher) PublishPrediction(ctx context.Context, pred *models.Prediction) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(pred.Symbol), pred); err != nil {
		return err
	}
	p.log.Debug("prediction event published",
		logger.String("symbol", pred.Symbol),
		logger.String("direction", string(pred.Direction)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
