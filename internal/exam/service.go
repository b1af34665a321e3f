package exam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"exam-service/internal/events"
	"exam-service/internal/metrics"
)

var (
	ErrTestNotFound     = errors.New("test not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrTestPublished    = errors.New("test is already published")
	ErrValidation       = errors.New("invalid input")
)

// ShortfallError is returned by Publish while fewer questions than TotalQs are uploaded.
type ShortfallError struct {
	TestID   int64
	Uploaded int
	Required int
	Missing  int
}

func (e *ShortfallError) Error() string {
	return fmt.Sprintf("cannot publish: %d more questions needed", e.Missing)
}

type Service interface {
	CreateTest(ctx context.Context, req CreateTestRequest, createdBy string) (*Test, error)
	GetTest(ctx context.Context, id int64) (*Test, error)
	Review(ctx context.Context, id int64) (*Review, error)
	AddQuestion(ctx context.Context, testID int64, req QuestionRequest, uploadedBy string) (*AddQuestionResult, error)
	Publish(ctx context.Context, testID int64, publishedBy string) (*Test, error)
	GetQuestion(ctx context.Context, id int64) (*QuestionView, error)
	EditQuestion(ctx context.Context, id int64, req QuestionRequest) (*Question, error)
	DeleteQuestion(ctx context.Context, id int64) (*Question, error)
}

type service struct {
	repo     Repository
	notifier *events.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(repo Repository, notifier *events.Notifier, m *metrics.Metrics, logger *slog.Logger) Service {
	return &service{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func (s *service) CreateTest(ctx context.Context, req CreateTestRequest, createdBy string) (*Test, error) {
	category := strings.TrimSpace(req.Category)
	if category == "" {
		return nil, invalid("category is required")
	}
	if req.TotalQs < 1 {
		return nil, invalid("total questions must be at least 1")
	}
	if req.Duration < 1 {
		return nil, invalid("duration must be at least 1 minute")
	}

	startDate, err := time.Parse(DateLayout, strings.TrimSpace(req.StartDate))
	if err != nil {
		return nil, invalid("start date must be YYYY-MM-DD")
	}
	endDate, err := time.Parse(DateLayout, strings.TrimSpace(req.EndDate))
	if err != nil {
		return nil, invalid("end date must be YYYY-MM-DD")
	}
	if endDate.Before(startDate) {
		return nil, invalid("end date is before start date")
	}

	test := &Test{
		Category:  category,
		TotalQs:   req.TotalQs,
		StartDate: startDate.Format(DateLayout),
		EndDate:   endDate.Format(DateLayout),
		Duration:  req.Duration,
		CreatedBy: createdBy,
	}
	if err := s.repo.CreateTest(ctx, test); err != nil {
		return nil, err
	}

	s.metrics.RecordTestCreated(ctx, test.Category)
	s.logger.InfoContext(ctx, "test created", "test_id", test.ID, "category", test.Category, "total_qs", test.TotalQs)
	return test, nil
}

func (s *service) GetTest(ctx context.Context, id int64) (*Test, error) {
	return s.repo.GetTest(ctx, id)
}

func (s *service) Review(ctx context.Context, id int64) (*Review, error) {
	test, err := s.repo.GetTest(ctx, id)
	if err != nil {
		return nil, err
	}
	questions, err := s.repo.ListQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Review{Test: test, Questions: questions, Uploaded: len(questions)}, nil
}

// cleanQuestion trims every field and applies the option and answer rules.
func cleanQuestion(req QuestionRequest) (text string, options Options, answer string, err error) {
	text = strings.TrimSpace(req.Question)
	if text == "" {
		return "", nil, "", invalid("question text is required")
	}

	for _, opt := range req.Options {
		if opt = strings.TrimSpace(opt); opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) < 2 {
		return "", nil, "", invalid("at least two unique options are required")
	}

	seen := make(map[string]bool, len(options))
	for _, opt := range options {
		if seen[opt] {
			return "", nil, "", invalid("duplicate options found")
		}
		seen[opt] = true
		if strings.Contains(opt, OptionDelimiter) {
			return "", nil, "", invalid("options may not contain %q", OptionDelimiter)
		}
	}

	answer = strings.TrimSpace(req.Answer)
	if !seen[answer] {
		return "", nil, "", invalid("answer must match one of the options")
	}
	return text, options, answer, nil
}

func (s *service) AddQuestion(ctx context.Context, testID int64, req QuestionRequest, uploadedBy string) (*AddQuestionResult, error) {
	text, options, answer, err := cleanQuestion(req)
	if err != nil {
		return nil, err
	}

	var (
		result = &AddQuestionResult{}
		test   *Test
	)
	err = s.repo.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		test, err = repo.GetTest(ctx, testID)
		if err != nil {
			return err
		}
		if test.Published {
			return ErrTestPublished
		}

		exists, err := repo.QuestionTextExists(ctx, testID, text, 0)
		if err != nil {
			return err
		}
		if exists {
			return invalid("duplicate question found in the same test")
		}

		q := &Question{TestID: testID, Text: text, Options: options, Answer: answer}
		if err := repo.CreateQuestion(ctx, q); err != nil {
			return err
		}
		result.Question = q

		uploaded, err := repo.CountQuestions(ctx, testID)
		if err != nil {
			return err
		}
		result.Uploaded = uploaded
		result.Remaining = test.TotalQs - uploaded
		if result.Remaining < 0 {
			result.Remaining = 0
		}

		if uploaded == test.TotalQs {
			if err := repo.MarkPublished(ctx, testID); err != nil {
				return err
			}
			test.Published = true
			result.AutoPublished = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordQuestionUploaded(ctx)
	s.logger.InfoContext(ctx, "question uploaded", "test_id", testID, "question_id", result.Question.ID, "uploaded", result.Uploaded)

	if result.AutoPublished {
		s.published(ctx, test, uploadedBy, true)
	}
	return result, nil
}

func (s *service) Publish(ctx context.Context, testID int64, publishedBy string) (*Test, error) {
	var (
		test     *Test
		switched bool
	)
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		test, err = repo.GetTest(ctx, testID)
		if err != nil {
			return err
		}
		if test.Published {
			return nil
		}

		uploaded, err := repo.CountQuestions(ctx, testID)
		if err != nil {
			return err
		}
		if uploaded < test.TotalQs {
			return &ShortfallError{
				TestID:   testID,
				Uploaded: uploaded,
				Required: test.TotalQs,
				Missing:  test.TotalQs - uploaded,
			}
		}
		if uploaded > test.TotalQs {
			return invalid("%d questions uploaded but the test expects %d", uploaded, test.TotalQs)
		}

		if err := repo.MarkPublished(ctx, testID); err != nil {
			return err
		}
		test.Published = true
		switched = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if switched {
		s.published(ctx, test, publishedBy, false)
	}
	return test, nil
}

func (s *service) published(ctx context.Context, test *Test, by string, automatic bool) {
	s.metrics.RecordTestPublished(ctx, automatic)
	s.logger.InfoContext(ctx, "test published", "test_id", test.ID, "category", test.Category, "automatic", automatic)
	s.notifier.TestPublished(ctx, events.TestPublished{
		TestID:      test.ID,
		Category:    test.Category,
		TotalQs:     test.TotalQs,
		PublishedBy: by,
		Automatic:   automatic,
	})
}

func (s *service) GetQuestion(ctx context.Context, id int64) (*QuestionView, error) {
	q, err := s.repo.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	test, err := s.repo.GetTest(ctx, q.TestID)
	if err != nil {
		return nil, err
	}
	return &QuestionView{Question: q, CanEdit: !test.Published}, nil
}

// editable loads a question and its test, refusing once the test is published.
func editable(ctx context.Context, repo Repository, id int64) (*Question, error) {
	q, err := repo.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	test, err := repo.GetTest(ctx, q.TestID)
	if err != nil {
		return nil, err
	}
	if test.Published {
		return q, ErrTestPublished
	}
	return q, nil
}

func (s *service) EditQuestion(ctx context.Context, id int64, req QuestionRequest) (*Question, error) {
	text, options, answer, verr := cleanQuestion(req)

	var q *Question
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		q, err = editable(ctx, repo, id)
		if err != nil {
			return err
		}
		if verr != nil {
			return verr
		}

		exists, err := repo.QuestionTextExists(ctx, q.TestID, text, q.ID)
		if err != nil {
			return err
		}
		if exists {
			return invalid("duplicate question found in the same test")
		}

		q.Text, q.Options, q.Answer = text, options, answer
		return repo.UpdateQuestion(ctx, q)
	})
	if err != nil {
		return q, err
	}

	s.logger.InfoContext(ctx, "question updated", "question_id", id, "test_id", q.TestID)
	return q, nil
}

func (s *service) DeleteQuestion(ctx context.Context, id int64) (*Question, error) {
	var q *Question
	err := s.repo.RunInTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		q, err = editable(ctx, repo, id)
		if err != nil {
			return err
		}
		return repo.DeleteQuestion(ctx, id)
	})
	if err != nil {
		return q, err
	}

	s.logger.InfoContext(ctx, "question deleted", "question_id", id, "test_id", q.TestID)
	return q, nil
}
