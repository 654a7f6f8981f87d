package events

import (
	"context"
	"fmt"

	"travelbook/pkg/kafka"
	kafka_config "travelbook/pkg/kafka/config"
	kafka_middleware "travelbook/pkg/kafka/middleware"
	"travelbook/pkg/logger"
)

type KafkaPublisher struct {
	producer *kafka.Producer
	source   string
}

func NewKafkaPublisher(cfg *kafka_config.Config, source string, log *logger.Logger) (*KafkaPublisher, error) {
	producer, err := kafka.NewProducer(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
	return &KafkaPublisher{producer: producer, source: source}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	msg, err := toMessage(ev, p.source)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func toMessage(ev Event, source string) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(ev.BookingID).
		WithValue(ev).
		WithEventID(ev.ID).
		WithEventType(ev.Type).
		WithCorrelationID(ev.CorrelationID).
		WithSchemaVersion(SchemaVersion).
		WithSource(source).
		WithTimestamp(ev.OccurredAt).
		Build()
}

type KafkaSubscriber struct {
	cfg      *kafka_config.Config
	log      *logger.Logger
	consumer *kafka.Consumer
}

func NewKafkaSubscriber(cfg *kafka_config.Config, log *logger.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{cfg: cfg, log: log}
}

func (s *KafkaSubscriber) Run(ctx context.Context, handler Handler) error {
	consumer, err := kafka.NewConsumer(s.cfg, s.log, kafkaHandler(handler))
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(s.log))
	s.consumer = consumer

	return consumer.Start(ctx)
}

// kafkaHandler decodes the payload and classifies handler failures for the
// consumer's retry policy. Only errors marked permanent skip the retries.
func kafkaHandler(handler Handler) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var ev Event
		if err := msg.DecodeValue(&ev); err != nil {
			return kafka.NewPermanentError("failed to decode booking event", err)
		}
		if ev.CorrelationID == "" {
			ev.CorrelationID = msg.GetCorrelationID()
		}

		if err := handler(ctx, ev); err != nil {
			if IsPermanent(err) {
				return kafka.NewPermanentError("booking event rejected", err)
			}
			return kafka.NewTransientError("booking event handler failed", err)
		}
		return nil
	}
}

func (s *KafkaSubscriber) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}
