package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the exam-service business counters.
type Metrics struct {
	usersRegistered   metric.Int64Counter
	logins            metric.Int64Counter
	testsCreated      metric.Int64Counter
	questionsUploaded metric.Int64Counter
	testsPublished    metric.Int64Counter
	attemptsRecorded  metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	counters := []struct {
		dst         *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&m.usersRegistered, "exam_service.users.registered", "Total number of accounts registered", "{user}"},
		{&m.logins, "exam_service.users.logins", "Total number of login attempts", "{login}"},
		{&m.testsCreated, "exam_service.tests.created", "Total number of tests created", "{test}"},
		{&m.questionsUploaded, "exam_service.questions.uploaded", "Total number of questions uploaded", "{question}"},
		{&m.testsPublished, "exam_service.tests.published", "Total number of tests published", "{test}"},
		{&m.attemptsRecorded, "exam_service.attempts.recorded", "Total number of exam attempts scored", "{attempt}"},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	return m, nil
}

func (m *Metrics) RecordUserRegistered(ctx context.Context, role string) {
	if m != nil && m.usersRegistered != nil {
		m.usersRegistered.Add(ctx, 1, metric.WithAttributes(attribute.String("role", role)))
	}
}

func (m *Metrics) RecordLogin(ctx context.Context, role string, success bool) {
	if m != nil && m.logins != nil {
		m.logins.Add(ctx, 1, metric.WithAttributes(
			attribute.String("role", role),
			attribute.Bool("success", success),
		))
	}
}

func (m *Metrics) RecordTestCreated(ctx context.Context, category string) {
	if m != nil && m.testsCreated != nil {
		m.testsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
	}
}

func (m *Metrics) RecordQuestionUploaded(ctx context.Context) {
	if m != nil && m.questionsUploaded != nil {
		m.questionsUploaded.Add(ctx, 1)
	}
}

func (m *Metrics) RecordTestPublished(ctx context.Context, automatic bool) {
	if m != nil && m.testsPublished != nil {
		m.testsPublished.Add(ctx, 1, metric.WithAttributes(attribute.Bool("automatic", automatic)))
	}
}

func (m *Metrics) RecordAttempt(ctx context.Context, category string) {
	if m != nil && m.attemptsRecorded != nil {
		m.attemptsRecorded.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{}
}
