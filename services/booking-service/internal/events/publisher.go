package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
)

const EventTypeAppointmentBooked = "appointment.booked.v1"

// AppointmentBooked is emitted after the calendar accepted a new appointment.
// Patient details stay in the calendar and are not copied onto the bus.
type AppointmentBooked struct {
	EventID         string    `json:"event_id"`
	OccurredAt      time.Time `json:"occurred_at"`
	CalendarEventID string    `json:"calendar_event_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      brokers,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	})
	return newPublisher(writer, topic)
}

func newPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, now: time.Now}
}

// PublishBooked fills in EventID and OccurredAt when empty and writes one message.
func (p *KafkaPublisher) PublishBooked(ctx context.Context, ev AppointmentBooked) error {
	msg, err := p.bookedMessage(ctx, ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", EventTypeAppointmentBooked, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) bookedMessage(ctx context.Context, ev AppointmentBooked) (kafka.Message, error) {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = p.now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	headers := kafkax.EventHeaders(ev.EventID, EventTypeAppointmentBooked, httpx.RequestIDFromContext(ctx))
	return kafka.Message{
		Topic:   p.topic,
		Key:     []byte(ev.Date + "T" + ev.Time),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, headers),
	}, nil
}
