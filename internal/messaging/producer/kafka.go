package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"simplehash/config"
	"simplehash/internal/models"
)

// KafkaProducer writes JSON encoded messages keyed by Message.Key.
type KafkaProducer struct {
	writer *kafka.Writer
	logger *zap.SugaredLogger
	topic  string
}

// NewKafkaProducer creates a writer for cfg.Topic. cfg is expected to have had
// SetDefaults applied.
func NewKafkaProducer(cfg config.KafkaProducerConfig, logger *zap.SugaredLogger) (*KafkaProducer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka producer configuration incomplete: both brokers and topic are required")
	}

	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},

		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		BatchBytes:   int64(cfg.BatchBytes),

		RequiredAcks: requiredAcks(cfg.RequiredAcks),
		Async:        cfg.Async,

		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,

		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Errorf("Kafka writer: "+msg, args...)
		}),
	}

	logger.Infof("Kafka producer created, brokers: %v, topic: %s", cfg.Brokers, cfg.Topic)
	return &KafkaProducer{writer: w, logger: logger, topic: cfg.Topic}, nil
}

func requiredAcks(s string) kafka.RequiredAcks {
	switch s {
	case "none":
		return kafka.RequireNone
	case "one":
		return kafka.RequireOne
	default:
		return kafka.RequireAll
	}
}

// Publish sends one message.
func (p *KafkaProducer) Publish(ctx context.Context, msg models.Message) error {
	return p.PublishBatch(ctx, []models.Message{msg})
}

// PublishBatch sends msgs in a single write.
func (p *KafkaProducer) PublishBatch(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	records, err := encode(msgs)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, records...); err != nil {
		return fmt.Errorf("failed to write %d messages to topic %s: %w", len(records), p.topic, err)
	}
	p.logger.Debugf("Wrote %d messages to topic %s", len(records), p.topic)
	return nil
}

func encode(msgs []models.Message) ([]kafka.Message, error) {
	records := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		value, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize message (key: %s): %w", msg.Key(), err)
		}
		records[i] = kafka.Message{Key: []byte(msg.Key()), Value: value}
	}
	return records, nil
}

// Close flushes buffered messages and closes the writer.
func (p *KafkaProducer) Close() error {
	p.logger.Info("Closing Kafka producer (and flushing buffer)...")
	return p.writer.Close()
}

var _ Producer = (*KafkaProducer)(nil)
