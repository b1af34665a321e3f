package dashboard

import (
	"log/slog"
	"net/http"

	"exam-service/common/httputil"
	"exam-service/internal/auth"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
	logger  *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

func (h *Handler) StudentDashboard(c *gin.Context) {
	id, _ := auth.GetIdentity(c.Request.Context())

	tests, err := h.service.Student(c.Request.Context(), id.Username)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to build student dashboard", "error", err)
		httputil.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.RespondWithNotice(c, http.StatusOK, httputil.PopFlash(c), gin.H{"tests": tests})
}

func (h *Handler) FacultyDashboard(c *gin.Context) {
	dash, err := h.service.Faculty(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to build faculty dashboard", "error", err)
		httputil.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	httputil.RespondWithNotice(c, http.StatusOK, httputil.PopFlash(c), gin.H{
		"incomplete":     dash.Incomplete,
		"ready":          dash.Ready,
		"live":           dash.Live,
		"analytics":      dash.Analytics,
		"questionCounts": dash.QuestionCounts,
	})
}

func (h *Handler) RegisterStudentRoutes(router gin.IRouter) {
	router.GET("/student/dashboard", h.StudentDashboard)
}

func (h *Handler) RegisterFacultyRoutes(router gin.IRouter) {
	router.GET("/faculty/dashboard", h.FacultyDashboard)
}
