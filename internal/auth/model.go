package auth

import "exam-service/internal/user"

type RegisterRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
	Role     string `json:"role" form:"role" validate:"required"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
	Role     string `json:"role" form:"role" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"oldPassword" form:"old_password"`
	NewPassword     string `json:"newPassword" form:"new_password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirm_password"`
}

type AuthResponse struct {
	Notice   string     `json:"notice"`
	Redirect string     `json:"redirect,omitempty"`
	User     *user.User `json:"user,omitempty"`
}

// DashboardPath is the landing page for role.
func DashboardPath(role string) string {
	if role == user.RoleFaculty {
		return "/faculty/dashboard"
	}
	return "/student/dashboard"
}
