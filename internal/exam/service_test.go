package exam_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	commonmetrics "exam-service/common/metrics"
	"exam-service/internal/events"
	"exam-service/internal/exam"
	"exam-service/internal/metrics"
	"exam-service/internal/schema"
	"exam-service/testing/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	keys      []string
	envelopes []events.Envelope
}

func (p *recordingProducer) SendMessage(ctx context.Context, key string, value interface{}) error {
	p.keys = append(p.keys, key)
	p.envelopes = append(p.envelopes, value.(events.Envelope))
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func setupService(t *testing.T) (exam.Service, exam.Repository, *recordingProducer) {
	t.Helper()

	database := testdb.Setup(t, schema.Models(), schema.Indexes())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	producer := &recordingProducer{}

	repo := exam.NewRepository(database, commonmetrics.NewMock())
	service := exam.NewService(repo, events.NewNotifier(producer, logger), metrics.NewMock(), logger)
	return service, repo, producer
}

func createTest(t *testing.T, service exam.Service, category string, totalQs int) *exam.Test {
	t.Helper()

	test, err := service.CreateTest(context.Background(), exam.CreateTestRequest{
		Category:  category,
		TotalQs:   totalQs,
		Duration:  20,
		StartDate: "2026-01-01",
		EndDate:   "2026-12-31",
	}, "prof")
	require.NoError(t, err)
	return test
}

func question(text string, answer string, options ...string) exam.QuestionRequest {
	return exam.QuestionRequest{Question: text, Options: options, Answer: answer}
}

func TestCreateTest(t *testing.T) {
	ctx := context.Background()

	t.Run("StartsUnpublished", func(t *testing.T) {
		service, _, _ := setupService(t)

		test := createTest(t, service, "  Math ", 3)

		assert.NotZero(t, test.ID)
		assert.Equal(t, "Math", test.Category)
		assert.False(t, test.Published)
		assert.Equal(t, "prof", test.CreatedBy)

		review, err := service.Review(ctx, test.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, review.Uploaded)
		assert.Empty(t, review.Questions)
	})

	t.Run("RejectsMalformedInput", func(t *testing.T) {
		service, _, _ := setupService(t)

		valid := exam.CreateTestRequest{Category: "Math", TotalQs: 2, Duration: 10, StartDate: "2026-01-01", EndDate: "2026-01-31"}

		cases := map[string]func(r *exam.CreateTestRequest){
			"empty category":   func(r *exam.CreateTestRequest) { r.Category = "   " },
			"zero questions":   func(r *exam.CreateTestRequest) { r.TotalQs = 0 },
			"zero duration":    func(r *exam.CreateTestRequest) { r.Duration = 0 },
			"bad start date":   func(r *exam.CreateTestRequest) { r.StartDate = "01/02/2026" },
			"bad end date":     func(r *exam.CreateTestRequest) { r.EndDate = "2026-13-01" },
			"end before start": func(r *exam.CreateTestRequest) { r.EndDate = "2025-12-31" },
		}

		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				req := valid
				mutate(&req)

				_, err := service.CreateTest(ctx, req, "prof")
				assert.True(t, errors.Is(err, exam.ErrValidation), "got %v", err)
			})
		}
	})
}

func TestAddQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("TrimsAndStores", func(t *testing.T) {
		service, _, _ := setupService(t)
		test := createTest(t, service, "Geo", 2)

		result, err := service.AddQuestion(ctx, test.ID, question("  Capital of France? ", " Paris ", " Paris", "Rome ", "  "), "prof")
		require.NoError(t, err)

		assert.Equal(t, "Capital of France?", result.Question.Text)
		assert.Equal(t, exam.Options{"Paris", "Rome"}, result.Question.Options)
		assert.Equal(t, "Paris", result.Question.Answer)
		assert.Equal(t, 1, result.Uploaded)
		assert.Equal(t, 1, result.Remaining)
		assert.False(t, result.AutoPublished)

		review, err := service.Review(ctx, test.ID)
		require.NoError(t, err)
		require.Len(t, review.Questions, 1)
		assert.Equal(t, exam.Options{"Paris", "Rome"}, review.Questions[0].Options)
	})

	t.Run("ValidationErrors", func(t *testing.T) {
		service, _, _ := setupService(t)
		test := createTest(t, service, "Geo", 5)

		_, err := service.AddQuestion(ctx, test.ID, question("Existing?", "A", "A", "B"), "prof")
		require.NoError(t, err)

		cases := []struct {
			name string
			req  exam.QuestionRequest
		}{
			{"single option", question("Q1?", "A", "A", " ")},
			{"duplicate options", question("Q2?", "A", "A", " A", "B")},
			{"answer not an option", question("Q3?", "C", "A", "B")},
			{"delimiter in option", question("Q4?", "A|B", "A|B", "C")},
			{"empty text", question("   ", "A", "A", "B")},
			{"duplicate text", question(" Existing? ", "B", "A", "B")},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := service.AddQuestion(ctx, test.ID, tc.req, "prof")
				assert.True(t, errors.Is(err, exam.ErrValidation), "got %v", err)
			})
		}

		review, err := service.Review(ctx, test.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, review.Uploaded)
	})

	t.Run("AutoPublishesOnLastUpload", func(t *testing.T) {
		service, _, producer := setupService(t)
		test := createTest(t, service, "Math", 3)

		for i, text := range []string{"1+1?", "2+2?"} {
			result, err := service.AddQuestion(ctx, test.ID, question(text, "x", "x", "y"), "prof")
			require.NoError(t, err)
			assert.False(t, result.AutoPublished, "upload %d", i+1)
		}

		got, err := service.GetTest(ctx, test.ID)
		require.NoError(t, err)
		assert.False(t, got.Published)
		assert.Empty(t, producer.envelopes)

		result, err := service.AddQuestion(ctx, test.ID, question("3+3?", "6", "6", "7"), "prof")
		require.NoError(t, err)
		assert.True(t, result.AutoPublished)
		assert.Equal(t, 0, result.Remaining)

		got, err = service.GetTest(ctx, test.ID)
		require.NoError(t, err)
		assert.True(t, got.Published)

		require.Len(t, producer.envelopes, 1)
		assert.Equal(t, events.TypeTestPublished, producer.envelopes[0].Type)
		payload := producer.envelopes[0].Payload.(events.TestPublished)
		assert.True(t, payload.Automatic)
		assert.Equal(t, test.ID, payload.TestID)
		assert.Equal(t, "Math", producer.keys[0])
	})

	t.Run("RejectsPublishedTest", func(t *testing.T) {
		service, _, _ := setupService(t)
		test := createTest(t, service, "Math", 1)

		_, err := service.AddQuestion(ctx, test.ID, question("Q?", "a", "a", "b"), "prof")
		require.NoError(t, err)

		_, err = service.AddQuestion(ctx, test.ID, question("Another?", "a", "a", "b"), "prof")
		assert.True(t, errors.Is(err, exam.ErrTestPublished))
	})

	t.Run("UnknownTest", func(t *testing.T) {
		service, _, _ := setupService(t)

		_, err := service.AddQuestion(ctx, 4242, question("Q?", "a", "a", "b"), "prof")
		assert.True(t, errors.Is(err, exam.ErrTestNotFound))
	})
}

func TestPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("ShortfallCarriesDeficit", func(t *testing.T) {
		service, _, producer := setupService(t)
		test := createTest(t, service, "Bio", 5)

		for _, text := range []string{"a?", "b?"} {
			_, err := service.AddQuestion(ctx, test.ID, question(text, "x", "x", "y"), "prof")
			require.NoError(t, err)
		}

		_, err := service.Publish(ctx, test.ID, "prof")

		var shortfall *exam.ShortfallError
		require.True(t, errors.As(err, &shortfall), "got %v", err)
		assert.Equal(t, 3, shortfall.Missing)
		assert.Equal(t, 2, shortfall.Uploaded)
		assert.Equal(t, 5, shortfall.Required)
		assert.Contains(t, err.Error(), "3 more questions needed")

		got, err := service.GetTest(ctx, test.ID)
		require.NoError(t, err)
		assert.False(t, got.Published)
		assert.Empty(t, producer.envelopes)
	})

	t.Run("ShortfallWithNoQuestions", func(t *testing.T) {
		service, _, _ := setupService(t)
		test := createTest(t, service, "Bio", 2)

		_, err := service.Publish(ctx, test.ID, "prof")

		var shortfall *exam.ShortfallError
		require.True(t, errors.As(err, &shortfall))
		assert.Equal(t, 2, shortfall.Missing)
	})

	t.Run("SucceedsWhenComplete", func(t *testing.T) {
		service, repo, producer := setupService(t)
		test := createTest(t, service, "Chem", 1)

		// Insert directly so the upload path does not auto-publish.
		require.NoError(t, repo.CreateQuestion(ctx, &exam.Question{
			TestID: test.ID, Text: "H2O?", Options: exam.Options{"water", "fire"}, Answer: "water",
		}))

		published, err := service.Publish(ctx, test.ID, "dean")
		require.NoError(t, err)
		assert.True(t, published.Published)

		require.Len(t, producer.envelopes, 1)
		payload := producer.envelopes[0].Payload.(events.TestPublished)
		assert.False(t, payload.Automatic)
		assert.Equal(t, "dean", payload.PublishedBy)

		again, err := service.Publish(ctx, test.ID, "dean")
		require.NoError(t, err)
		assert.True(t, again.Published)
		assert.Len(t, producer.envelopes, 1)
	})

	t.Run("UnknownTest", func(t *testing.T) {
		service, _, _ := setupService(t)

		_, err := service.Publish(ctx, 99, "prof")
		assert.True(t, errors.Is(err, exam.ErrTestNotFound))
	})
}

func TestEditAndDeleteQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("EditRevalidates", func(t *testing.T) {
		service, _, _ := setupService(t)
		test := createTest(t, service, "Hist", 3)

		first, err := service.AddQuestion(ctx, test.ID, question("Year of X?", "1066", "1066", "1215"), "prof")
		require.NoError(t, err)
		_, err = service.AddQuestion(ctx, test.ID, question("Year of Y?", "1215", "1066", "1215"), "prof")
		require.NoError(t, err)

		// Keeping its own text is not a duplicate.
		updated, err := service.EditQuestion(ctx, first.Question.ID, question("Year of X?", "1215", "1066", "1215", "1492"))
		require.NoError(t, err)
		assert.Equal(t, "1215", updated.Answer)
		assert.Equal(t, exam.Options{"1066", "1215", "1492"}, updated.Options)

		_, err = service.EditQuestion(ctx, first.Question.ID, question("Year of Y?", "1066", "1066", "1215"))
		assert.True(t, errors.Is(err, exam.ErrValidation))

		_, err = service.EditQuestion(ctx, first.Question.ID, question("Year of X?", "2000", "1066", "1215"))
		assert.True(t, errors.Is(err, exam.ErrValidation))

		view, err := service.GetQuestion(ctx, first.Question.ID)
		require.NoError(t, err)
		assert.True(t, view.CanEdit)
		assert.Equal(t, "1215", view.Question.Answer)
	})

	t.Run("DeleteWhileUnpublished", func(t *testing.T) {
		service, _, _ := setupService(t)
		test := createTest(t, service, "Hist", 3)

		added, err := service.AddQuestion(ctx, test.ID, question("Q?", "a", "a", "b"), "prof")
		require.NoError(t, err)

		deleted, err := service.DeleteQuestion(ctx, added.Question.ID)
		require.NoError(t, err)
		assert.Equal(t, test.ID, deleted.TestID)

		_, err = service.GetQuestion(ctx, added.Question.ID)
		assert.True(t, errors.Is(err, exam.ErrQuestionNotFound))
	})

	t.Run("GuardedOncePublished", func(t *testing.T) {
		service, _, _ := setupService(t)
		test := createTest(t, service, "Hist", 1)

		added, err := service.AddQuestion(ctx, test.ID, question("Q?", "a", "a", "b"), "prof")
		require.NoError(t, err)
		require.True(t, added.AutoPublished)

		view, err := service.GetQuestion(ctx, added.Question.ID)
		require.NoError(t, err)
		assert.False(t, view.CanEdit)

		q, err := service.EditQuestion(ctx, added.Question.ID, question("Changed?", "a", "a", "b"))
		assert.True(t, errors.Is(err, exam.ErrTestPublished))
		require.NotNil(t, q)
		assert.Equal(t, test.ID, q.TestID)

		_, err = service.DeleteQuestion(ctx, added.Question.ID)
		assert.True(t, errors.Is(err, exam.ErrTestPublished))

		review, err := service.Review(ctx, test.ID)
		require.NoError(t, err)
		require.Len(t, review.Questions, 1)
		assert.Equal(t, "Q?", review.Questions[0].Text)
	})

	t.Run("UnknownQuestion", func(t *testing.T) {
		service, _, _ := setupService(t)

		_, err := service.EditQuestion(ctx, 77, question("Q?", "a", "a", "b"))
		assert.True(t, errors.Is(err, exam.ErrQuestionNotFound))

		_, err = service.DeleteQuestion(ctx, 77)
		assert.True(t, errors.Is(err, exam.ErrQuestionNotFound))
	})
}
