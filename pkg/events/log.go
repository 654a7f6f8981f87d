package events

import (
	"context"

	"travelbook/pkg/logger"
)

// LogPublisher records events in the service log only. It is used when no
// broker is configured.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.log.Info("Booking event",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"booking_id", ev.BookingID,
		"status", ev.Status,
		"total", ev.Total,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
