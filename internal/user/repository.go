package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"exam-service/common/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByUsername(ctx context.Context, username string) (*User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

// Create inserts user unless the username is taken, in which case it returns ErrUserExists.
func (r *repository) Create(ctx context.Context, user *User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	start := time.Now()
	res, err := r.db.NewInsert().
		Model(user).
		On("CONFLICT (username) DO NOTHING").
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "users", time.Since(start), err)

	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserExists
	}
	return nil
}

func (r *repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	start := time.Now()
	user := new(User)
	err := r.db.NewSelect().Model(user).Where("username = ?", username).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "users", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *repository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	start := time.Now()
	res, err := r.db.NewUpdate().
		Model((*User)(nil)).
		Set("password = ?", passwordHash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("username = ?", username).
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "update", "users", time.Since(start), err)

	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
