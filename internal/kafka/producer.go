package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"exam-service/common/metrics"

	"github.com/IBM/sarama"
)

type Producer struct {
	producer sarama.SyncProducer
	client   sarama.Client
	topic    string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewProducer(brokers []string, topic string, logger *slog.Logger, m *metrics.Metrics) (*Producer, error) {
	config := sarama.NewConfig()
	config.ClientID = "exam-service"
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Partitioner = sarama.NewHashPartitioner

	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return nil, err
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("kafka producer initialized", "brokers", brokers, "topic", topic)

	p := NewProducerFromSync(producer, topic, logger, m)
	p.client = client
	return p, nil
}

// NewProducerFromSync wraps an existing SyncProducer, e.g. sarama/mocks in tests.
func NewProducerFromSync(producer sarama.SyncProducer, topic string, logger *slog.Logger, m *metrics.Metrics) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
		logger:   logger,
		metrics:  m,
	}
}

func (p *Producer) SendMessage(ctx context.Context, key string, value interface{}) error {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal message", "error", err)
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(valueBytes),
	}

	start := time.Now()
	partition, offset, err := p.producer.SendMessage(msg)
	if p.metrics != nil {
		p.metrics.Messaging.RecordPublish(ctx, p.topic, time.Since(start), err)
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send message to kafka", "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "message sent to kafka", "topic", p.topic, "partition", partition, "offset", offset, "key", key)
	return nil
}

// HealthCheck refreshes topic metadata from the cluster.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if p.client == nil {
		return nil
	}
	if p.client.Closed() {
		return errors.New("kafka: client closed")
	}
	return p.client.RefreshMetadata(p.topic)
}

func (p *Producer) Close() error {
	err := p.producer.Close()
	if p.client != nil && !p.client.Closed() {
		if cerr := p.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
