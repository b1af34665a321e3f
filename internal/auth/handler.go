package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"exam-service/common/httputil"
	"exam-service/internal/metrics"
	"exam-service/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service   user.Service
	issuer    *TokenIssuer
	logger    *slog.Logger
	validator *validator.Validate
	metrics   *metrics.Metrics
}

func NewHandler(service user.Service, issuer *TokenIssuer, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		service:   service,
		issuer:    issuer,
		logger:    logger,
		validator: validator.New(),
		metrics:   m,
	}
}

// RegisterRoutes mounts the anonymous endpoints.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/register", h.Register)
	router.GET("/login", h.LoginPage)
	router.POST("/login", h.Login)
	router.GET("/logout", h.Logout)
	router.POST("/logout", h.Logout)
}

// RegisterAccountRoutes mounts endpoints for any logged-in caller.
func (h *Handler) RegisterAccountRoutes(router gin.IRouter) {
	router.POST("/password", h.ChangePassword)
	router.GET("/profile", h.Profile)
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "All fields are required.")
		return
	}

	created, err := h.service.Register(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrUserExists):
			httputil.RespondWithError(c, http.StatusConflict, "User already exists. Try a different username.")
		case errors.Is(err, user.ErrValidation):
			httputil.RespondWithError(c, http.StatusBadRequest, err.Error())
		default:
			h.logger.ErrorContext(c.Request.Context(), "registration failed", "error", err)
			httputil.RespondWithError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.metrics.RecordUserRegistered(c.Request.Context(), created.Role)
	h.logger.InfoContext(c.Request.Context(), "user registered", "username", created.Username, "role", created.Role)

	c.JSON(http.StatusCreated, AuthResponse{
		Notice:   "Registered successfully! Please log in.",
		Redirect: LoginPath,
		User:     created,
	})
}

// LoginPage hands back whatever notice is pending for the client.
func (h *Handler) LoginPage(c *gin.Context) {
	httputil.RespondWithNotice(c, http.StatusOK, httputil.PopFlash(c), nil)
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "All fields are required.")
		return
	}

	authenticated, err := h.service.Authenticate(c.Request.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidCredentials):
			h.metrics.RecordLogin(c.Request.Context(), user.Normalize(req.Role), false)
			h.logger.InfoContext(c.Request.Context(), "login rejected", "username", user.Normalize(req.Username))
			httputil.RedirectWithNotice(c, LoginPath, "Invalid credentials.")
		case errors.Is(err, user.ErrValidation):
			httputil.RespondWithError(c, http.StatusBadRequest, "All fields are required.")
		default:
			h.logger.ErrorContext(c.Request.Context(), "login failed", "error", err)
			httputil.RespondWithError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	token, err := h.issuer.Issue(authenticated.Username, authenticated.Role)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to issue token", "error", err)
		httputil.RespondWithError(c, http.StatusInternalServerError, "internal server error")
		return
	}

	SetAuthCookie(c.Writer, token, int(h.issuer.TTL().Seconds()))
	h.metrics.RecordLogin(c.Request.Context(), authenticated.Role, true)
	h.logger.InfoContext(c.Request.Context(), "user logged in", "username", authenticated.Username)

	c.JSON(http.StatusOK, AuthResponse{
		Notice:   "Login successful!",
		Redirect: DashboardPath(authenticated.Role),
		User:     authenticated,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	message := "You were not logged in."
	if cookie, err := c.Request.Cookie(CookieName); err == nil {
		if claims, err := h.issuer.Parse(cookie.Value); err == nil {
			message = "You have been logged out."
			h.logger.InfoContext(c.Request.Context(), "user logged out", "username", claims.Username)
		}
	}

	ClearAuthCookie(c.Writer)
	httputil.RedirectWithNotice(c, LoginPath, message)
}

func (h *Handler) ChangePassword(c *gin.Context) {
	id, ok := GetIdentity(c.Request.Context())
	if !ok {
		httputil.RedirectWithNotice(c, LoginPath, "Unauthorized access.")
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.ChangePassword(c.Request.Context(), id.Username, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrValidation):
			httputil.RespondWithError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, user.ErrInvalidCredentials):
			httputil.RespondWithError(c, http.StatusBadRequest, "Old password is incorrect.")
		case errors.Is(err, user.ErrUserNotFound):
			ClearAuthCookie(c.Writer)
			httputil.RedirectWithNotice(c, LoginPath, "Unauthorized access.")
		default:
			h.logger.ErrorContext(c.Request.Context(), "password change failed", "error", err)
			httputil.RespondWithError(c, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	h.logger.InfoContext(c.Request.Context(), "password changed", "username", id.Username)
	c.JSON(http.StatusOK, AuthResponse{
		Notice:   "Password changed successfully.",
		Redirect: DashboardPath(id.Role),
	})
}

func (h *Handler) Profile(c *gin.Context) {
	id, ok := GetIdentity(c.Request.Context())
	if !ok {
		httputil.RedirectWithNotice(c, LoginPath, "Unauthorized access.")
		return
	}

	profile, err := h.service.Profile(c.Request.Context(), id.Username)
	if err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			httputil.RespondWithError(c, http.StatusNotFound, "User not found")
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "failed to load profile", "error", err)
		httputil.RespondWithError(c, http.StatusInternalServerError, "internal server error")
		return
	}

	c.JSON(http.StatusOK, profile)
}
