package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"exam-service/common/metrics"

	"github.com/nats-io/nats.go"
)

// KeyHeader carries the event key; NATS subjects cannot hold arbitrary category names.
const KeyHeader = "Event-Key"

type Producer struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewProducer(url string, subject string, logger *slog.Logger, m *metrics.Metrics) (*Producer, error) {
	nc, err := nats.Connect(url,
		nats.Name("exam-service"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("NATS producer initialized", "url", url, "subject", subject)

	return NewProducerWithConn(nc, subject, logger, m), nil
}

func NewProducerWithConn(conn *nats.Conn, subject string, logger *slog.Logger, m *metrics.Metrics) *Producer {
	return &Producer{
		conn:    conn,
		subject: subject,
		logger:  logger,
		metrics: m,
	}
}

func (p *Producer) SendMessage(ctx context.Context, key string, value interface{}) error {
	valueBytes, err := json.Marshal(value)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to marshal message", "error", err)
		return err
	}

	msg := nats.NewMsg(p.subject)
	msg.Header.Set(KeyHeader, key)
	msg.Data = valueBytes

	start := time.Now()
	err = p.conn.PublishMsg(msg)
	p.recordPublish(ctx, time.Since(start), err)

	if err != nil {
		p.logger.ErrorContext(ctx, "failed to send message to NATS", "error", err)
		return err
	}

	p.logger.DebugContext(ctx, "message sent to NATS", "subject", p.subject, "key", key)
	return nil
}

func (p *Producer) recordPublish(ctx context.Context, d time.Duration, err error) {
	if p.metrics != nil {
		p.metrics.Messaging.RecordPublish(ctx, p.subject, d, err)
	}
}

// HealthCheck round-trips a PING to the server.
func (p *Producer) HealthCheck(ctx context.Context) error {
	if !p.conn.IsConnected() {
		return errors.New("nats: not connected")
	}
	return p.conn.FlushWithContext(ctx)
}

func (p *Producer) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
