package attempt

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"exam-service/internal/events"
	"exam-service/internal/exam"
	"exam-service/internal/metrics"

	"github.com/shopspring/decimal"
)

var (
	ErrNoPublishedTest  = errors.New("no published test for category")
	ErrNoQuestions      = errors.New("test has no questions")
	ErrNoAttempt        = errors.New("test not attempted")
	ErrAlreadyAttempted = errors.New("test already attempted")
)

// Exam timer used when a test carries no duration.
const defaultDurationMins = 30

var hundred = decimal.NewFromInt(100)

type Service interface {
	// StartExam returns the current test of category for username, or ErrAlreadyAttempted.
	StartExam(ctx context.Context, username, category string) (*Session, error)
	// RecordAttempt scores answers against the current test of category and stores the attempt.
	// With no published test it returns (0, 0) and writes nothing.
	RecordAttempt(ctx context.Context, username, category string, answers map[int64]string) (score, total int, err error)
	Submit(ctx context.Context, username, category string, answers map[int64]string) (*Result, error)
	Result(ctx context.Context, username, category string) (*Result, error)
	Stats(ctx context.Context, username string) ([]Stat, error)
}

type service struct {
	repo     Repository
	exams    exam.Repository
	notifier *events.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewService(repo Repository, exams exam.Repository, notifier *events.Notifier, m *metrics.Metrics, logger *slog.Logger) Service {
	return &service{
		repo:     repo,
		exams:    exams,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// Percentage is score/total*100 rounded to two decimals, 0 when total is 0.
func Percentage(score, total int) float64 {
	if total == 0 {
		return 0
	}
	p, _ := decimal.NewFromInt(int64(score)).
		Mul(hundred).
		DivRound(decimal.NewFromInt(int64(total)), 2).
		Float64()
	return p
}

// ParseAnswers converts submitted keys into question ids. Form posts use "q12";
// JSON clients may send the bare id "12", which is accepted as well.
// Keys that are not question ids are ignored.
func ParseAnswers(raw map[string]string) map[int64]string {
	answers := make(map[int64]string, len(raw))
	for key, value := range raw {
		id, err := strconv.ParseInt(strings.TrimPrefix(key, "q"), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		answers[id] = value
	}
	return answers
}

func (s *service) currentTest(ctx context.Context, category string) (*exam.Test, error) {
	test, err := s.exams.CurrentPublished(ctx, category)
	if errors.Is(err, exam.ErrTestNotFound) {
		return nil, ErrNoPublishedTest
	}
	return test, err
}

// checkNotAttempted returns ErrAlreadyAttempted when username already sat test.
func (s *service) checkNotAttempted(ctx context.Context, username string, testID int64) error {
	_, err := s.repo.Get(ctx, username, testID)
	switch {
	case err == nil:
		return ErrAlreadyAttempted
	case errors.Is(err, ErrNoAttempt):
		return nil
	default:
		return err
	}
}

func (s *service) StartExam(ctx context.Context, username, category string) (*Session, error) {
	test, err := s.currentTest(ctx, category)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotAttempted(ctx, username, test.ID); err != nil {
		return nil, err
	}

	questions, err := s.exams.ListQuestions(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	session := &Session{
		TestID:    test.ID,
		Category:  test.Category,
		Duration:  test.Duration,
		Questions: make([]exam.ExamQuestion, 0, len(questions)),
	}
	if session.Duration <= 0 {
		session.Duration = defaultDurationMins
	}
	for _, q := range questions {
		session.Questions = append(session.Questions, q.ForExam())
	}
	return session, nil
}

func (s *service) RecordAttempt(ctx context.Context, username, category string, answers map[int64]string) (int, int, error) {
	test, err := s.currentTest(ctx, category)
	if errors.Is(err, ErrNoPublishedTest) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}

	questions, err := s.exams.ListQuestions(ctx, test.ID)
	if err != nil {
		return 0, 0, err
	}
	return s.record(ctx, username, test, questions, answers)
}

func (s *service) record(ctx context.Context, username string, test *exam.Test, questions []exam.Question, answers map[int64]string) (int, int, error) {
	score := 0
	for _, q := range questions {
		given, ok := answers[q.ID]
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(q.Answer)) {
			score++
		}
	}
	total := len(questions)

	inserted, err := s.repo.Insert(ctx, &Attempt{
		Username: username,
		Category: test.Category,
		TestID:   test.ID,
		Score:    score,
	})
	if err != nil {
		return 0, 0, err
	}
	if !inserted {
		return 0, 0, ErrAlreadyAttempted
	}

	percentage := Percentage(score, total)
	s.metrics.RecordAttempt(ctx, test.Category)
	s.logger.InfoContext(ctx, "attempt recorded",
		"username", username, "test_id", test.ID, "score", score, "total", total)
	s.notifier.AttemptRecorded(ctx, events.AttemptRecorded{
		Username:   username,
		Category:   test.Category,
		TestID:     test.ID,
		Score:      score,
		Total:      total,
		Percentage: percentage,
	})

	return score, total, nil
}

// Submit applies the exam-entry checks before scoring, so a second submission is
// reported as ErrAlreadyAttempted rather than scored.
func (s *service) Submit(ctx context.Context, username, category string, answers map[int64]string) (*Result, error) {
	test, err := s.currentTest(ctx, category)
	if err != nil {
		return nil, err
	}
	if err := s.checkNotAttempted(ctx, username, test.ID); err != nil {
		return nil, err
	}

	questions, err := s.exams.ListQuestions(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	score, total, err := s.record(ctx, username, test, questions, answers)
	if err != nil {
		return nil, err
	}

	return &Result{
		Category:   test.Category,
		TestID:     test.ID,
		Score:      score,
		Total:      total,
		Percentage: Percentage(score, total),
	}, nil
}

// Result reports the stored attempt for the current test of category.
// The total is the test's declared question count.
func (s *service) Result(ctx context.Context, username, category string) (*Result, error) {
	test, err := s.currentTest(ctx, category)
	if err != nil {
		return nil, err
	}

	a, err := s.repo.Get(ctx, username, test.ID)
	if err != nil {
		return nil, err
	}

	return &Result{
		Category:   test.Category,
		TestID:     test.ID,
		Score:      a.Score,
		Total:      test.TotalQs,
		Percentage: Percentage(a.Score, test.TotalQs),
	}, nil
}

func (s *service) Stats(ctx context.Context, username string) ([]Stat, error) {
	stats, err := s.repo.ListStats(ctx, username)
	if err != nil {
		return nil, err
	}
	for i := range stats {
		stats[i].Percentage = Percentage(stats[i].Score, stats[i].Total)
	}
	return stats, nil
}
