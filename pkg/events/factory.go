package events

import (
	"fmt"

	"travelbook/pkg/config"
	kafka_config "travelbook/pkg/kafka/config"
)

// NewPublisher returns the publisher for the configured broker.
func NewPublisher(cfg *config.Config) (Publisher, error) {
	switch cfg.EventsBroker {
	case config.BrokerKafka:
		kcfg, err := loadKafka(cfg)
		if err != nil {
			return nil, err
		}
		return NewKafkaPublisher(kcfg, cfg.ServiceName, cfg.Log)
	case config.BrokerRabbitMQ:
		return NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQQueue, cfg.Log), nil
	case config.BrokerNone:
		return NewLogPublisher(cfg.Log), nil
	}
	return nil, fmt.Errorf("unsupported events broker: %s", cfg.EventsBroker)
}

// NewSubscriber returns the subscriber for the configured broker. There is
// nothing to subscribe to when no broker is configured.
func NewSubscriber(cfg *config.Config) (Subscriber, error) {
	switch cfg.EventsBroker {
	case config.BrokerKafka:
		kcfg, err := loadKafka(cfg)
		if err != nil {
			return nil, err
		}
		return NewKafkaSubscriber(kcfg, cfg.Log), nil
	case config.BrokerRabbitMQ:
		return NewRabbitSubscriber(cfg.RabbitMQURL, cfg.RabbitMQQueue, cfg.Log), nil
	}
	return nil, fmt.Errorf("events broker %q cannot be consumed", cfg.EventsBroker)
}

func loadKafka(cfg *config.Config) (*kafka_config.Config, error) {
	kcfg, err := kafka_config.Load(cfg.EventsTopic)
	if err != nil {
		return nil, err
	}
	kcfg.LogConfiguration(cfg.Log)
	return kcfg, nil
}
