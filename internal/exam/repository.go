package exam

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"exam-service/common/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	// RunInTx runs fn against a repository bound to one transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error

	CreateTest(ctx context.Context, test *Test) error
	GetTest(ctx context.Context, id int64) (*Test, error)
	ListTests(ctx context.Context) ([]Test, error)
	MarkPublished(ctx context.Context, id int64) error
	LatestPublished(ctx context.Context) ([]Test, error)
	CurrentPublished(ctx context.Context, category string) (*Test, error)

	CreateQuestion(ctx context.Context, q *Question) error
	GetQuestion(ctx context.Context, id int64) (*Question, error)
	ListQuestions(ctx context.Context, testID int64) ([]Question, error)
	UpdateQuestion(ctx context.Context, q *Question) error
	DeleteQuestion(ctx context.Context, id int64) error
	CountQuestions(ctx context.Context, testID int64) (int, error)
	QuestionCounts(ctx context.Context) (map[int64]int, error)
	QuestionTextExists(ctx context.Context, testID int64, text string, excludeID int64) (bool, error)
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) record(ctx context.Context, op, table string, start time.Time, err error) {
	r.metrics.Database.RecordQuery(ctx, op, table, time.Since(start), err)
}

func (r *repository) RunInTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &repository{db: tx, metrics: r.metrics})
	})
}

func (r *repository) CreateTest(ctx context.Context, test *Test) error {
	if test.CreatedAt.IsZero() {
		test.CreatedAt = time.Now().UTC()
	}

	start := time.Now()
	_, err := r.db.NewInsert().Model(test).Exec(ctx)
	r.record(ctx, "insert", "tests", start, err)
	return err
}

func (r *repository) GetTest(ctx context.Context, id int64) (*Test, error) {
	start := time.Now()
	test := new(Test)
	err := r.db.NewSelect().Model(test).Where("id = ?", id).Scan(ctx)
	r.record(ctx, "select", "tests", start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}
	return test, nil
}

// ListTests returns every test, newest first.
func (r *repository) ListTests(ctx context.Context) ([]Test, error) {
	start := time.Now()
	var tests []Test
	err := r.db.NewSelect().Model(&tests).Order("id DESC").Scan(ctx)
	r.record(ctx, "select", "tests", start, err)
	return tests, err
}

func (r *repository) MarkPublished(ctx context.Context, id int64) error {
	start := time.Now()
	res, err := r.db.NewUpdate().
		Model((*Test)(nil)).
		Set("published = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	r.record(ctx, "update", "tests", start, err)

	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTestNotFound
	}
	return nil
}

// LatestPublished returns the highest-id published test of every category.
func (r *repository) LatestPublished(ctx context.Context) ([]Test, error) {
	latest := r.db.NewSelect().
		Model((*Test)(nil)).
		ColumnExpr("MAX(id)").
		Where("published = ?", true).
		Group("category")

	start := time.Now()
	var tests []Test
	err := r.db.NewSelect().
		Model(&tests).
		Where("id IN (?)", latest).
		Order("category ASC").
		Scan(ctx)
	r.record(ctx, "select", "tests", start, err)
	return tests, err
}

func (r *repository) CurrentPublished(ctx context.Context, category string) (*Test, error) {
	start := time.Now()
	test := new(Test)
	err := r.db.NewSelect().
		Model(test).
		Where("category = ?", category).
		Where("published = ?", true).
		Order("id DESC").
		Limit(1).
		Scan(ctx)
	r.record(ctx, "select", "tests", start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}
	return test, nil
}

func (r *repository) CreateQuestion(ctx context.Context, q *Question) error {
	if q.UploadTime.IsZero() {
		q.UploadTime = time.Now().UTC()
	}

	start := time.Now()
	_, err := r.db.NewInsert().Model(q).Exec(ctx)
	r.record(ctx, "insert", "questions", start, err)
	return err
}

func (r *repository) GetQuestion(ctx context.Context, id int64) (*Question, error) {
	start := time.Now()
	q := new(Question)
	err := r.db.NewSelect().Model(q).Where("id = ?", id).Scan(ctx)
	r.record(ctx, "select", "questions", start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

func (r *repository) ListQuestions(ctx context.Context, testID int64) ([]Question, error) {
	start := time.Now()
	questions := []Question{}
	err := r.db.NewSelect().
		Model(&questions).
		Where("test_id = ?", testID).
		Order("id ASC").
		Scan(ctx)
	r.record(ctx, "select", "questions", start, err)
	return questions, err
}

func (r *repository) UpdateQuestion(ctx context.Context, q *Question) error {
	start := time.Now()
	res, err := r.db.NewUpdate().
		Model(q).
		Column("question", "options", "answer").
		WherePK().
		Exec(ctx)
	r.record(ctx, "update", "questions", start, err)

	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (r *repository) DeleteQuestion(ctx context.Context, id int64) error {
	start := time.Now()
	res, err := r.db.NewDelete().
		Model((*Question)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	r.record(ctx, "delete", "questions", start, err)

	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrQuestionNotFound
	}
	return nil
}

func (r *repository) CountQuestions(ctx context.Context, testID int64) (int, error) {
	start := time.Now()
	n, err := r.db.NewSelect().
		Model((*Question)(nil)).
		Where("test_id = ?", testID).
		Count(ctx)
	r.record(ctx, "count", "questions", start, err)
	return n, err
}

// QuestionCounts returns uploaded question counts keyed by test id in one grouped query.
// Tests without questions are absent from the map.
func (r *repository) QuestionCounts(ctx context.Context) (map[int64]int, error) {
	var rows []struct {
		TestID int64 `bun:"test_id"`
		Count  int   `bun:"question_count"`
	}

	start := time.Now()
	err := r.db.NewSelect().
		Model((*Question)(nil)).
		Column("test_id").
		ColumnExpr("COUNT(*) AS question_count").
		Group("test_id").
		Scan(ctx, &rows)
	r.record(ctx, "count", "questions", start, err)

	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.TestID] = row.Count
	}
	return counts, nil
}

// QuestionTextExists reports whether another question of testID has exactly text.
// excludeID is ignored when zero.
func (r *repository) QuestionTextExists(ctx context.Context, testID int64, text string, excludeID int64) (bool, error) {
	q := r.db.NewSelect().
		Model((*Question)(nil)).
		Where("test_id = ?", testID).
		Where("question = ?", text)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	start := time.Now()
	exists, err := q.Exists(ctx)
	r.record(ctx, "select", "questions", start, err)
	return exists, err
}
