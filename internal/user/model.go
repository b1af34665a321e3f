package user

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	RoleStudent = "student"
	RoleFaculty = "faculty"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	Username  string    `bun:"username,pk" json:"username"`
	Password  string    `bun:"password,notnull" json:"-"`
	Role      string    `bun:"role,notnull" json:"role"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// Profile is the public view of an account.
type Profile struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Role     string `json:"role"`
}
