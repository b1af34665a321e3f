package exam

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"exam-service/internal/db"

	"github.com/uptrace/bun"
)

// DateLayout is the storage and wire format of start and end dates.
const DateLayout = "2006-01-02"

type Test struct {
	bun.BaseModel `bun:"table:tests,alias:t"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Category  string    `bun:"category,notnull" json:"category"`
	TotalQs   int       `bun:"total_qs,notnull" json:"totalQs"`
	StartDate string    `bun:"start_date" json:"startDate"`
	EndDate   string    `bun:"end_date" json:"endDate"`
	Duration  int       `bun:"duration" json:"duration"`
	Published bool      `bun:"published,notnull" json:"published"`
	CreatedBy string    `bun:"created_by" json:"createdBy"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
}

// OptionDelimiter separates options in the stored column.
const OptionDelimiter = "|"

// Options is stored as a single delimited text column.
type Options []string

func (o Options) Value() (driver.Value, error) {
	return strings.Join(o, OptionDelimiter), nil
}

func (o *Options) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case nil:
		*o = nil
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("exam: cannot scan %T into Options", src)
	}
	if s == "" {
		*o = Options{}
		return nil
	}
	*o = strings.Split(s, OptionDelimiter)
	return nil
}

type Question struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	TestID     int64     `bun:"test_id,notnull" json:"testId"`
	Text       string    `bun:"question,notnull" json:"question"`
	Options    Options   `bun:"options,type:text,notnull" json:"options"`
	Answer     string    `bun:"answer,notnull" json:"answer"`
	UploadTime time.Time `bun:"upload_time,notnull" json:"uploadTime"`
}

// ExamQuestion is a question as shown to a student: no answer.
type ExamQuestion struct {
	ID      int64    `json:"id"`
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

func (q Question) ForExam() ExamQuestion {
	return ExamQuestion{ID: q.ID, Text: q.Text, Options: q.Options}
}

type CreateTestRequest struct {
	Category  string `json:"category" form:"category" validate:"required"`
	TotalQs   int    `json:"totalQs" form:"total_qs" validate:"required,min=1"`
	Duration  int    `json:"duration" form:"duration" validate:"required,min=1"`
	StartDate string `json:"startDate" form:"start_date" validate:"required"`
	EndDate   string `json:"endDate" form:"end_date" validate:"required"`
}

type QuestionRequest struct {
	Question string   `json:"question" form:"question" validate:"required"`
	Options  []string `json:"options" form:"options" validate:"required"`
	Answer   string   `json:"answer" form:"answer" validate:"required"`
}

// AddQuestionResult reports the upload and whether it completed the test.
type AddQuestionResult struct {
	Question      *Question `json:"question"`
	Uploaded      int       `json:"uploaded"`
	Remaining     int       `json:"remaining"`
	AutoPublished bool      `json:"autoPublished"`
}

type Review struct {
	Test      *Test      `json:"test"`
	Questions []Question `json:"questions"`
	Uploaded  int        `json:"uploaded"`
}

type QuestionView struct {
	Question *Question `json:"question"`
	CanEdit  bool      `json:"canEdit"`
}

// Models are the tables owned by this package, in creation order.
func Models() []interface{} {
	return []interface{}{(*Test)(nil), (*Question)(nil)}
}

func Indexes() []db.Index {
	return []db.Index{
		{Model: (*Test)(nil), Name: "tests_category_published_idx", Columns: []string{"category", "published"}},
		{Model: (*Question)(nil), Name: "questions_test_id_idx", Columns: []string{"test_id"}},
	}
}
