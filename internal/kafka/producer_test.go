package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"exam-service/common/metrics"
	"exam-service/internal/events"
	"exam-service/internal/kafka"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("SendMessage_JSONValue", func(t *testing.T) {
		config := mocks.NewTestConfig()
		config.Producer.Return.Successes = true
		syncProducer := mocks.NewSyncProducer(t, config)

		syncProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			assert.Equal(t, "exam.events", msg.Topic)

			key, err := msg.Key.Encode()
			require.NoError(t, err)
			assert.Equal(t, "alice", string(key))

			value, err := msg.Value.Encode()
			require.NoError(t, err)

			var envelope map[string]interface{}
			require.NoError(t, json.Unmarshal(value, &envelope))
			assert.Equal(t, events.TypeAttemptRecorded, envelope["type"])
			return nil
		})

		producer := kafka.NewProducerFromSync(syncProducer, "exam.events", logger, metrics.NewMock())
		notifier := events.NewNotifier(producer, logger)

		notifier.AttemptRecorded(ctx, events.AttemptRecorded{Username: "alice", Category: "Math", Score: 1, Total: 2, Percentage: 50})

		require.NoError(t, producer.Close())
	})

	t.Run("SendMessage_BrokerError", func(t *testing.T) {
		config := mocks.NewTestConfig()
		config.Producer.Return.Successes = true
		syncProducer := mocks.NewSyncProducer(t, config)
		syncProducer.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

		producer := kafka.NewProducerFromSync(syncProducer, "exam.events", logger, metrics.NewMock())

		err := producer.SendMessage(ctx, "Math", map[string]string{"hello": "world"})
		assert.True(t, errors.Is(err, sarama.ErrNotLeaderForPartition))

		require.NoError(t, producer.Close())
	})

	t.Run("SendMessage_UnmarshalableValue", func(t *testing.T) {
		syncProducer := mocks.NewSyncProducer(t, nil)
		producer := kafka.NewProducerFromSync(syncProducer, "exam.events", logger, metrics.NewMock())

		err := producer.SendMessage(ctx, "k", make(chan int))
		assert.Error(t, err)

		require.NoError(t, producer.Close())
	})

	t.Run("HealthCheck_WithoutClient", func(t *testing.T) {
		syncProducer := mocks.NewSyncProducer(t, nil)
		producer := kafka.NewProducerFromSync(syncProducer, "exam.events", logger, metrics.NewMock())

		assert.NoError(t, producer.HealthCheck(ctx))
		require.NoError(t, producer.Close())
	})
}
