package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"exam-service/internal/attempt"
	"exam-service/internal/exam"
)

// StudentTest is one card on the student dashboard.
type StudentTest struct {
	TestID        int64  `json:"testId"`
	Category      string `json:"category"`
	Attempted     bool   `json:"attempted"`
	RemainingTime string `json:"remainingTime"`
	Duration      int    `json:"duration"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
}

type FacultyTest struct {
	exam.Test
	Uploaded int `json:"uploaded"`
}

type Faculty struct {
	Incomplete     []FacultyTest           `json:"incomplete"`
	Ready          []FacultyTest           `json:"ready"`
	Live           []FacultyTest           `json:"live"`
	Analytics      []attempt.CategoryCount `json:"analytics"`
	QuestionCounts map[int64]int           `json:"questionCounts"`
}

type Service interface {
	Student(ctx context.Context, username string) ([]StudentTest, error)
	Faculty(ctx context.Context) (*Faculty, error)
}

type service struct {
	exams    exam.Repository
	attempts attempt.Repository
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(exams exam.Repository, attempts attempt.Repository, logger *slog.Logger) Service {
	return NewServiceWithClock(exams, attempts, logger, time.Now)
}

func NewServiceWithClock(exams exam.Repository, attempts attempt.Repository, logger *slog.Logger, now func() time.Time) Service {
	return &service{
		exams:    exams,
		attempts: attempts,
		logger:   logger,
		now:      now,
	}
}

const day = 24 * time.Hour

// Student lists the latest published test of every category that has not ended.
// Tests with malformed dates are skipped.
func (s *service) Student(ctx context.Context, username string) ([]StudentTest, error) {
	latest, err := s.exams.LatestPublished(ctx)
	if err != nil {
		return nil, err
	}

	attempted, err := s.attempts.AttemptedTestIDs(ctx, username)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cards := make([]StudentTest, 0, len(latest))
	for _, test := range latest {
		start, err := time.ParseInLocation(exam.DateLayout, test.StartDate, now.Location())
		if err != nil {
			s.logger.DebugContext(ctx, "skipping test with malformed start date", "test_id", test.ID)
			continue
		}
		end, err := time.ParseInLocation(exam.DateLayout, test.EndDate, now.Location())
		if err != nil {
			s.logger.DebugContext(ctx, "skipping test with malformed end date", "test_id", test.ID)
			continue
		}

		if now.After(end) {
			continue
		}

		var remaining string
		if now.Before(start) {
			remaining = fmt.Sprintf("Starts in %d day(s)", int(start.Sub(now)/day))
		} else {
			remaining = fmt.Sprintf("%d day(s) left", int(end.Sub(now)/day))
		}

		cards = append(cards, StudentTest{
			TestID:        test.ID,
			Category:      test.Category,
			Attempted:     attempted[test.ID],
			RemainingTime: remaining,
			Duration:      test.Duration,
			StartDate:     test.StartDate,
			EndDate:       test.EndDate,
		})
	}
	return cards, nil
}

// Faculty partitions every test by upload progress and publication.
func (s *service) Faculty(ctx context.Context) (*Faculty, error) {
	tests, err := s.exams.ListTests(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.exams.QuestionCounts(ctx)
	if err != nil {
		return nil, err
	}

	analytics, err := s.attempts.CountsByCategory(ctx)
	if err != nil {
		return nil, err
	}

	out := &Faculty{
		Incomplete:     []FacultyTest{},
		Ready:          []FacultyTest{},
		Live:           []FacultyTest{},
		Analytics:      analytics,
		QuestionCounts: make(map[int64]int, len(tests)),
	}
	for _, test := range tests {
		uploaded := counts[test.ID]
		out.QuestionCounts[test.ID] = uploaded

		ft := FacultyTest{Test: test, Uploaded: uploaded}
		switch {
		case uploaded < test.TotalQs:
			out.Incomplete = append(out.Incomplete, ft)
		case !test.Published:
			out.Ready = append(out.Ready, ft)
		default:
			out.Live = append(out.Live, ft)
		}
	}
	return out, nil
}
