// Package schema lists every table and index of the service.
package schema

import (
	"context"

	"exam-service/internal/attempt"
	"exam-service/internal/db"
	"exam-service/internal/exam"
	"exam-service/internal/user"

	"github.com/uptrace/bun"
)

func Models() []interface{} {
	models := []interface{}{(*user.User)(nil)}
	models = append(models, exam.Models()...)
	models = append(models, attempt.Models()...)
	return models
}

func Indexes() []db.Index {
	indexes := exam.Indexes()
	indexes = append(indexes, attempt.Indexes()...)
	return indexes
}

// Migrate creates missing tables and indexes. It is safe to run on every start.
func Migrate(ctx context.Context, database *bun.DB) error {
	if err := db.RunMigrations(ctx, database, Models()...); err != nil {
		return err
	}
	return db.CreateIndexes(ctx, database, Indexes()...)
}
