package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// MessageWriter is the part of kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes contact events to Kafka
type Producer struct {
	writer MessageWriter
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(writer, cfg.Topic, logger)
}

// NewProducerWithWriter builds a producer over an existing writer.
func NewProducerWithWriter(writer MessageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// LiaisonEvent describes a change of a structure/personne liaison
type LiaisonEvent struct {
	EventType      string    `json:"event_type"` // liaison.created, liaison.reactivated, liaison.deactivated
	OrganizationID string    `json:"organization_id"`
	LiaisonID      string    `json:"liaison_id"`
	StructureID    string    `json:"structure_id"`
	PersonneID     string    `json:"personne_id"`
	Fonction       string    `json:"fonction,omitempty"`
	Actif          bool      `json:"actif"`
	Prioritaire    bool      `json:"prioritaire"`
	Interesse      bool      `json:"interesse"`
	RunID          string    `json:"run_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// PersonneEvent describes a change of the cached "personne libre" flag
type PersonneEvent struct {
	EventType       string    `json:"event_type"` // personne.libre_changed
	OrganizationID  string    `json:"organization_id"`
	PersonneID      string    `json:"personne_id"`
	IsPersonneLibre bool      `json:"is_personne_libre"`
	RunID           string    `json:"run_id,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// PublishLiaisonEvent publishes a liaison event to Kafka
func (p *Producer) PublishLiaisonEvent(ctx context.Context, event *LiaisonEvent) error {
	return p.PublishLiaisonEvents(ctx, []*LiaisonEvent{event})
}

// PublishLiaisonEvents publishes multiple liaison events in a batch
func (p *Producer) PublishLiaisonEvents(ctx context.Context, events []*LiaisonEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishLiaisonEvents")
	defer span.End()

	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, len(events))
	for i, event := range events {
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now().UTC()
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		messages[i] = kafka.Message{
			Topic: p.topic,
			Key:   []byte(event.LiaisonID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(event.EventType)},
				{Key: "organization_id", Value: []byte(event.OrganizationID)},
				{Key: "schema_version", Value: []byte(SchemaVersion)},
			},
		}
	}

	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("batch_size", len(events)).Error("Failed to publish liaison events")
		return err
	}

	p.logger.WithContext(ctx).WithField("batch_size", len(events)).Debug("Published liaison events")
	return nil
}

// PublishPersonneEvent publishes a personne event to Kafka
func (p *Producer) PublishPersonneEvent(ctx context.Context, event *PersonneEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishPersonneEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.PersonneID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "organization_id", Value: []byte(event.OrganizationID)},
			{Key: "schema_version", Value: []byte(SchemaVersion)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish personne event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":  event.EventType,
		"personne_id": event.PersonneID,
	}).Debug("Published personne event")

	return nil
}
