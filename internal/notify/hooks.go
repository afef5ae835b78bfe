// Package notify holds the post-commit hooks fed by the appointment dispatcher.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/appointments"
	"sacs-telemedicina-hub/internal/metrics"
	"sacs-telemedicina-hub/internal/models"
)

// LogHook writes every committed change to the structured log.
type LogHook struct {
	logger *zap.Logger
}

func NewLogHook(logger *zap.Logger) *LogHook {
	return &LogHook{logger: logger}
}

func (h *LogHook) Handle(_ context.Context, ev appointments.Event) error {
	fields := []zap.Field{
		zap.String("appointment_id", ev.Current.ID),
		zap.String("transition", string(ev.Transition)),
		zap.String("status", string(ev.Current.Status)),
		zap.String("actor_id", ev.Actor.ID),
		zap.String("actor_role", string(ev.Actor.Role)),
		zap.Time("occurred_at", ev.OccurredAt),
	}
	if ev.Previous != nil {
		fields = append(fields, zap.String("previous_status", string(ev.Previous.Status)))
	}
	h.logger.Info("appointment event", fields...)
	return nil
}

// MetricsHook counts committed changes.
type MetricsHook struct {
	collector *metrics.Collector
}

func NewMetricsHook(c *metrics.Collector) *MetricsHook {
	return &MetricsHook{collector: c}
}

func (h *MetricsHook) Handle(_ context.Context, ev appointments.Event) error {
	if ev.Previous == nil {
		h.collector.AppointmentsCreated.WithLabelValues(string(ev.Current.Type)).Inc()
	}
	h.collector.TransitionsTotal.WithLabelValues(string(ev.Transition), string(ev.Current.Status)).Inc()
	return nil
}

// MessageWriter is the subset of *kafka.Writer used by KafkaHook.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// EventMessage is the wire form of an appointment event.
type EventMessage struct {
	EventType      string                   `json:"eventType"`
	AppointmentID  string                   `json:"appointmentId"`
	Transition     string                   `json:"transition"`
	PreviousStatus models.AppointmentStatus `json:"previousStatus,omitempty"`
	Status         models.AppointmentStatus `json:"status"`
	ActorID        string                   `json:"actorId"`
	ActorRole      models.Role              `json:"actorRole"`
	OccurredAt     time.Time                `json:"occurredAt"`
	Appointment    models.Appointment       `json:"appointment"`
}

// KafkaHook publishes events keyed by appointment id, so one appointment's
// events stay ordered within a partition.
type KafkaHook struct {
	writer MessageWriter
}

func NewKafkaHook(w MessageWriter) *KafkaHook {
	return &KafkaHook{writer: w}
}

// NewKafkaWriter builds the producer used in production.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

func (h *KafkaHook) Handle(ctx context.Context, ev appointments.Event) error {
	msg := EventMessage{
		EventType:     "appointment." + string(ev.Transition),
		AppointmentID: ev.Current.ID,
		Transition:    string(ev.Transition),
		Status:        ev.Current.Status,
		ActorID:       ev.Actor.ID,
		ActorRole:     ev.Actor.Role,
		OccurredAt:    ev.OccurredAt,
		Appointment:   ev.Current,
	}
	if ev.Previous != nil {
		msg.PreviousStatus = ev.Previous.Status
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding appointment event: %w", err)
	}
	err = h.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Current.ID),
		Value: body,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(msg.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing appointment event: %w", err)
	}
	return nil
}
