package attempt

import (
	"time"

	"exam-service/internal/db"
	"exam-service/internal/exam"

	"github.com/uptrace/bun"
)

type Attempt struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Username  string    `bun:"username,notnull" json:"username"`
	Category  string    `bun:"category,notnull" json:"category"`
	TestID    int64     `bun:"test_id,notnull" json:"testId"`
	Score     int       `bun:"score,notnull" json:"score"`
	Timestamp time.Time `bun:"timestamp,notnull" json:"timestamp"`
}

// Result is a scored attempt as reported to the student.
type Result struct {
	Category   string  `json:"category"`
	TestID     int64   `json:"testId"`
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Stat is one row of a user's attempt history.
type Stat struct {
	ID         int64     `bun:"id" json:"id"`
	Category   string    `bun:"category" json:"category"`
	Timestamp  time.Time `bun:"timestamp" json:"timestamp"`
	Score      int       `bun:"score" json:"score"`
	TestID     int64     `bun:"test_id" json:"testId"`
	Total      int       `bun:"total" json:"total"`
	Percentage float64   `bun:"-" json:"percentage"`
}

type CategoryCount struct {
	Category string `bun:"category" json:"category"`
	Attempts int    `bun:"attempts" json:"attempts"`
}

// Session is what a student needs to sit an exam: questions without answers.
type Session struct {
	TestID    int64               `json:"testId"`
	Category  string              `json:"category"`
	Duration  int                 `json:"duration"`
	Questions []exam.ExamQuestion `json:"questions"`
}

type SubmitRequest struct {
	Answers map[string]string `json:"answers"`
}

func Models() []interface{} {
	return []interface{}{(*Attempt)(nil)}
}

func Indexes() []db.Index {
	return []db.Index{
		{Model: (*Attempt)(nil), Name: "attempts_username_test_id_key", Columns: []string{"username", "test_id"}, Unique: true},
		{Model: (*Attempt)(nil), Name: "attempts_category_idx", Columns: []string{"category"}},
	}
}
