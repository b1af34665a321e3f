package attempt_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	commonmetrics "exam-service/common/metrics"
	"exam-service/internal/attempt"
	"exam-service/internal/events"
	"exam-service/internal/exam"
	"exam-service/internal/metrics"
	"exam-service/internal/schema"
	"exam-service/testing/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	envelopes []events.Envelope
}

func (p *recordingProducer) SendMessage(ctx context.Context, key string, value interface{}) error {
	p.envelopes = append(p.envelopes, value.(events.Envelope))
	return nil
}

func (p *recordingProducer) Close() error { return nil }

type fixture struct {
	attempts attempt.Service
	repo     attempt.Repository
	exams    exam.Service
	examRepo exam.Repository
	producer *recordingProducer
}

func setup(t *testing.T) *fixture {
	t.Helper()

	database := testdb.Setup(t, schema.Models(), schema.Indexes())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dbMetrics := commonmetrics.NewMock()
	domain := metrics.NewMock()

	f := &fixture{producer: &recordingProducer{}}
	notifier := events.NewNotifier(f.producer, logger)

	f.examRepo = exam.NewRepository(database, dbMetrics)
	f.exams = exam.NewService(f.examRepo, nil, domain, logger)
	f.repo = attempt.NewRepository(database, dbMetrics)
	f.attempts = attempt.NewService(f.repo, f.examRepo, notifier, domain, logger)
	return f
}

// publishGeography publishes a two question test: Paris and 4 are correct.
func (f *fixture) publishGeography(t *testing.T) (*exam.Test, []int64) {
	t.Helper()
	ctx := context.Background()

	test, err := f.exams.CreateTest(ctx, exam.CreateTestRequest{
		Category: "Geo", TotalQs: 2, Duration: 15, StartDate: "2026-01-01", EndDate: "2026-12-31",
	}, "prof")
	require.NoError(t, err)

	var ids []int64
	for _, req := range []exam.QuestionRequest{
		{Question: "Capital of France?", Options: []string{"Paris", "Lyon"}, Answer: "Paris"},
		{Question: "2+2?", Options: []string{"4", "5"}, Answer: "4"},
	} {
		result, err := f.exams.AddQuestion(ctx, test.ID, req, "prof")
		require.NoError(t, err)
		ids = append(ids, result.Question.ID)
	}

	test, err = f.exams.GetTest(ctx, test.ID)
	require.NoError(t, err)
	require.True(t, test.Published)
	return test, ids
}

func TestPercentage(t *testing.T) {
	cases := []struct {
		score, total int
		want         float64
	}{
		{1, 2, 50},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{1, 8, 12.5},
		// halves round away from zero
		{1, 32, 3.13},
		{1, 800, 0.13},
		{5, 5, 100},
		{0, 4, 0},
		{0, 0, 0},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, attempt.Percentage(tc.score, tc.total), "%d/%d", tc.score, tc.total)
	}
}

func TestParseAnswers(t *testing.T) {
	answers := attempt.ParseAnswers(map[string]string{
		"q12":      "Paris",
		"7":        "4",
		"csrf":     "token",
		"q0":       "zero",
		"q-3":      "negative",
		"question": "x",
	})

	assert.Equal(t, map[int64]string{12: "Paris", 7: "4"}, answers)
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("ScoresCaseInsensitively", func(t *testing.T) {
		f := setup(t)
		test, ids := f.publishGeography(t)

		result, err := f.attempts.Submit(ctx, "alice", "Geo", map[int64]string{
			ids[0]: "paris",
			ids[1]: "5",
		})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Score)
		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 50.0, result.Percentage)
		assert.Equal(t, test.ID, result.TestID)

		stored, err := f.repo.Get(ctx, "alice", test.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Score)
		assert.Equal(t, "Geo", stored.Category)
		assert.False(t, stored.Timestamp.IsZero())

		require.Len(t, f.producer.envelopes, 1)
		recorded := f.producer.envelopes[0].Payload.(events.AttemptRecorded)
		assert.Equal(t, "alice", recorded.Username)
		assert.Equal(t, 50.0, recorded.Percentage)
	})

	t.Run("TrimsWhitespace", func(t *testing.T) {
		f := setup(t)
		_, ids := f.publishGeography(t)

		result, err := f.attempts.Submit(ctx, "bob", "Geo", map[int64]string{
			ids[0]: " Paris ",
			ids[1]: "4\n",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Score)
		assert.Equal(t, 100.0, result.Percentage)
	})

	t.Run("UnansweredAndUnknownIgnored", func(t *testing.T) {
		f := setup(t)
		_, ids := f.publishGeography(t)

		result, err := f.attempts.Submit(ctx, "carol", "Geo", map[int64]string{
			ids[1]: "4",
			9999:   "Paris",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Score)
		assert.Equal(t, 2, result.Total)
	})

	t.Run("OnlyOnce", func(t *testing.T) {
		f := setup(t)
		test, ids := f.publishGeography(t)

		_, err := f.attempts.Submit(ctx, "dave", "Geo", map[int64]string{ids[0]: "Lyon"})
		require.NoError(t, err)

		_, err = f.attempts.Submit(ctx, "dave", "Geo", map[int64]string{ids[0]: "Paris", ids[1]: "4"})
		assert.True(t, errors.Is(err, attempt.ErrAlreadyAttempted))

		_, err = f.attempts.StartExam(ctx, "dave", "Geo")
		assert.True(t, errors.Is(err, attempt.ErrAlreadyAttempted))

		stored, err := f.repo.Get(ctx, "dave", test.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, stored.Score)
		assert.Len(t, f.producer.envelopes, 1)
	})

	t.Run("NoPublishedTest", func(t *testing.T) {
		f := setup(t)

		_, err := f.attempts.Submit(ctx, "erin", "Geo", nil)
		assert.True(t, errors.Is(err, attempt.ErrNoPublishedTest))
	})
}

func TestRecordAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("NoTestWritesNothing", func(t *testing.T) {
		f := setup(t)

		score, total, err := f.attempts.RecordAttempt(ctx, "alice", "Physics", map[int64]string{1: "x"})
		require.NoError(t, err)
		assert.Equal(t, 0, score)
		assert.Equal(t, 0, total)

		stats, err := f.attempts.Stats(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, stats)
		assert.Empty(t, f.producer.envelopes)
	})

	t.Run("RepositoryRejectsSecondInsert", func(t *testing.T) {
		f := setup(t)
		test, ids := f.publishGeography(t)

		score, total, err := f.attempts.RecordAttempt(ctx, "frank", "Geo", map[int64]string{ids[0]: "PARIS"})
		require.NoError(t, err)
		assert.Equal(t, 1, score)
		assert.Equal(t, 2, total)

		_, _, err = f.attempts.RecordAttempt(ctx, "frank", "Geo", map[int64]string{ids[0]: "PARIS"})
		assert.True(t, errors.Is(err, attempt.ErrAlreadyAttempted))

		inserted, err := f.repo.Insert(ctx, &attempt.Attempt{Username: "frank", Category: "Geo", TestID: test.ID, Score: 2})
		require.NoError(t, err)
		assert.False(t, inserted)
	})
}

func TestStartExam(t *testing.T) {
	ctx := context.Background()

	t.Run("HidesAnswers", func(t *testing.T) {
		f := setup(t)
		test, ids := f.publishGeography(t)

		session, err := f.attempts.StartExam(ctx, "alice", "Geo")
		require.NoError(t, err)

		assert.Equal(t, test.ID, session.TestID)
		assert.Equal(t, 15, session.Duration)
		require.Len(t, session.Questions, 2)
		assert.Equal(t, ids[0], session.Questions[0].ID)
		assert.Equal(t, []string{"Paris", "Lyon"}, session.Questions[0].Options)
	})

	t.Run("UsesLatestPublishedTest", func(t *testing.T) {
		f := setup(t)
		f.publishGeography(t)
		second, err := f.exams.CreateTest(ctx, exam.CreateTestRequest{
			Category: "Geo", TotalQs: 1, Duration: 5, StartDate: "2026-02-01", EndDate: "2026-02-28",
		}, "prof")
		require.NoError(t, err)
		_, err = f.exams.AddQuestion(ctx, second.ID, exam.QuestionRequest{
			Question: "Capital of Italy?", Options: []string{"Rome", "Milan"}, Answer: "Rome",
		}, "prof")
		require.NoError(t, err)

		session, err := f.attempts.StartExam(ctx, "alice", "Geo")
		require.NoError(t, err)
		assert.Equal(t, second.ID, session.TestID)
		assert.Len(t, session.Questions, 1)
	})

	t.Run("DefaultDuration", func(t *testing.T) {
		f := setup(t)
		test := &exam.Test{Category: "Art", TotalQs: 1, StartDate: "2026-01-01", EndDate: "2026-12-31", Published: true}
		require.NoError(t, f.examRepo.CreateTest(ctx, test))
		require.NoError(t, f.examRepo.CreateQuestion(ctx, &exam.Question{
			TestID: test.ID, Text: "Painter of the Mona Lisa?", Options: exam.Options{"Leonardo", "Raphael"}, Answer: "Leonardo",
		}))

		session, err := f.attempts.StartExam(ctx, "alice", "Art")
		require.NoError(t, err)
		assert.Equal(t, 30, session.Duration)
	})

	t.Run("PublishedWithoutQuestions", func(t *testing.T) {
		f := setup(t)
		test := &exam.Test{Category: "Empty", TotalQs: 1, Duration: 5, Published: true}
		require.NoError(t, f.examRepo.CreateTest(ctx, test))

		_, err := f.attempts.StartExam(ctx, "alice", "Empty")
		assert.True(t, errors.Is(err, attempt.ErrNoQuestions))

		_, err = f.attempts.Submit(ctx, "alice", "Empty", nil)
		assert.True(t, errors.Is(err, attempt.ErrNoQuestions))

		_, err = f.repo.Get(ctx, "alice", test.ID)
		assert.True(t, errors.Is(err, attempt.ErrNoAttempt))
	})
}

func TestResultAndStats(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	test, ids := f.publishGeography(t)

	_, err := f.attempts.Result(ctx, "alice", "Geo")
	assert.True(t, errors.Is(err, attempt.ErrNoAttempt))

	_, err = f.attempts.Submit(ctx, "alice", "Geo", map[int64]string{ids[0]: "Paris"})
	require.NoError(t, err)

	result, err := f.attempts.Result(ctx, "alice", "Geo")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, test.TotalQs, result.Total)
	assert.Equal(t, 50.0, result.Percentage)

	stats, err := f.attempts.Stats(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "Geo", stats[0].Category)
	assert.Equal(t, 2, stats[0].Total)
	assert.Equal(t, 50.0, stats[0].Percentage)

	others, err := f.attempts.Stats(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, others)

	counts, err := f.repo.CountsByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, []attempt.CategoryCount{{Category: "Geo", Attempts: 1}}, counts)
}
