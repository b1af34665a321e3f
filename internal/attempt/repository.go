package attempt

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"exam-service/common/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	// Insert writes a unless (username, test_id) already has an attempt; the bool reports a write.
	Insert(ctx context.Context, a *Attempt) (bool, error)
	Get(ctx context.Context, username string, testID int64) (*Attempt, error)
	ListStats(ctx context.Context, username string) ([]Stat, error)
	AttemptedTestIDs(ctx context.Context, username string) (map[int64]bool, error)
	CountsByCategory(ctx context.Context) ([]CategoryCount, error)
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

func (r *repository) Insert(ctx context.Context, a *Attempt) (bool, error) {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}

	start := time.Now()
	res, err := r.db.NewInsert().
		Model(a).
		On("CONFLICT (username, test_id) DO NOTHING").
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "attempts", time.Since(start), err)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) Get(ctx context.Context, username string, testID int64) (*Attempt, error) {
	start := time.Now()
	a := new(Attempt)
	err := r.db.NewSelect().
		Model(a).
		Where("username = ?", username).
		Where("test_id = ?", testID).
		Limit(1).
		Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "attempts", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAttempt
		}
		return nil, err
	}
	return a, nil
}

// ListStats returns username's attempts with the owning test's question total.
func (r *repository) ListStats(ctx context.Context, username string) ([]Stat, error) {
	start := time.Now()
	stats := []Stat{}
	err := r.db.NewSelect().
		Model((*Attempt)(nil)).
		Column("a.id", "a.category", "a.timestamp", "a.score", "a.test_id").
		ColumnExpr("COALESCE(t.total_qs, 0) AS total").
		Join("LEFT JOIN tests AS t ON t.id = a.test_id").
		Where("a.username = ?", username).
		Order("a.id ASC").
		Scan(ctx, &stats)

	r.metrics.Database.RecordQuery(ctx, "select", "attempts", time.Since(start), err)

	return stats, err
}

func (r *repository) AttemptedTestIDs(ctx context.Context, username string) (map[int64]bool, error) {
	start := time.Now()
	var ids []int64
	err := r.db.NewSelect().
		Model((*Attempt)(nil)).
		Column("test_id").
		Where("username = ?", username).
		Scan(ctx, &ids)

	r.metrics.Database.RecordQuery(ctx, "select", "attempts", time.Since(start), err)

	if err != nil {
		return nil, err
	}

	attempted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		attempted[id] = true
	}
	return attempted, nil
}

func (r *repository) CountsByCategory(ctx context.Context) ([]CategoryCount, error) {
	start := time.Now()
	counts := []CategoryCount{}
	err := r.db.NewSelect().
		Model((*Attempt)(nil)).
		Column("category").
		ColumnExpr("COUNT(*) AS attempts").
		Group("category").
		Order("category ASC").
		Scan(ctx, &counts)

	r.metrics.Database.RecordQuery(ctx, "count", "attempts", time.Since(start), err)

	return counts, err
}
