package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"simplehash/config"
	"simplehash/internal/models"
)

// ErrMalformedMessage is returned for records that do not decode to a valid
// request. Their offset is committed so they do not block the partition.
var ErrMalformedMessage = errors.New("malformed anchor request")

// KafkaConsumer reads anchor requests from a consumer group.
type KafkaConsumer struct {
	reader *kafka.Reader
	logger *zap.SugaredLogger
}

// NewKafkaConsumer joins cfg.GroupID on cfg.Topic.
func NewKafkaConsumer(cfg config.KafkaConsumerConfig, logger *zap.SugaredLogger) (*KafkaConsumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("incomplete kafka configuration: brokers, topic, group_id are all required")
	}

	readerConfig := kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		GroupID:           cfg.GroupID,
		Topic:             cfg.Topic,
		MinBytes:          1,
		MaxBytes:          1e6,
		MaxWait:           time.Second,
		SessionTimeout:    cfg.SessionTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		StartOffset:       kafka.FirstOffset,
	}
	if cfg.AutoOffsetReset == "latest" {
		readerConfig.StartOffset = kafka.LastOffset
	}

	logger.Infof("Kafka consumer created, brokers: %v, topic: %s, group: %s", cfg.Brokers, cfg.Topic, cfg.GroupID)
	return &KafkaConsumer{
		reader: kafka.NewReader(readerConfig),
		logger: logger,
	}, nil
}

// Consume implements Consumer.
func (k *KafkaConsumer) Consume(ctx context.Context) (*models.AnchorRequest, func(bool), error) {
	record, err := k.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}

	req, err := decodeRequest(record.Value)
	if err != nil {
		k.logger.Warnf("Discarding record at offset %d: %v", record.Offset, err)
		if commitErr := k.reader.CommitMessages(ctx, record); commitErr != nil {
			k.logger.Errorf("Failed to commit offset %d: %v", record.Offset, commitErr)
		}
		return nil, nil, err
	}

	ack := func(success bool) {
		if !success {
			k.logger.Infof("NACK for offset %d (request_id %s), offset not committed", record.Offset, req.RequestID)
			return
		}
		if err := k.reader.CommitMessages(context.Background(), record); err != nil {
			k.logger.Errorf("Failed to commit offset %d: %v", record.Offset, err)
		}
	}
	return req, ack, nil
}

// Close leaves the consumer group.
func (k *KafkaConsumer) Close() error {
	k.logger.Info("Closing Kafka consumer...")
	return k.reader.Close()
}

func decodeRequest(value []byte) (*models.AnchorRequest, error) {
	var req models.AnchorRequest
	if err := json.Unmarshal(value, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return &req, nil
}

var _ Consumer = (*KafkaConsumer)(nil)
