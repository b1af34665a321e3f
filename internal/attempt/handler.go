package attempt

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"exam-service/common/httputil"
	"exam-service/internal/auth"

	"github.com/gin-gonic/gin"
)

const studentDashboard = "/student/dashboard"

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

// RegisterRoutes mounts the student exam endpoints.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/exam/:category", h.ExamPage)
	router.POST("/exam/:category", h.SubmitExam)
	router.GET("/result/:category", h.ExamResult)
}

// RegisterAccountRoutes mounts endpoints for any logged-in caller.
func (h *Handler) RegisterAccountRoutes(router gin.IRouter) {
	router.GET("/stats", h.Stats)
}

func resultPath(category string) string {
	return "/result/" + url.PathEscape(category)
}

func (h *Handler) ExamPage(c *gin.Context) {
	id, _ := auth.GetIdentity(c.Request.Context())
	category := c.Param("category")

	session, err := h.service.StartExam(c.Request.Context(), id.Username, category)
	if err != nil {
		h.handleServiceError(c, category, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// bindAnswers accepts {"answers": {...}} as JSON or q<id>=value form fields.
func bindAnswers(c *gin.Context) (map[int64]string, error) {
	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		var req SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, err
		}
		return ParseAnswers(req.Answers), nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err
	}
	raw := make(map[string]string, len(c.Request.PostForm))
	for key := range c.Request.PostForm {
		if strings.HasPrefix(key, "q") {
			raw[key] = c.Request.PostForm.Get(key)
		}
	}
	return ParseAnswers(raw), nil
}

func (h *Handler) SubmitExam(c *gin.Context) {
	id, _ := auth.GetIdentity(c.Request.Context())
	category := c.Param("category")

	answers, err := bindAnswers(c)
	if err != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Submit(c.Request.Context(), id.Username, category, answers)
	if err != nil {
		h.handleServiceError(c, category, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ExamResult(c *gin.Context) {
	id, _ := auth.GetIdentity(c.Request.Context())
	category := c.Param("category")

	result, err := h.service.Result(c.Request.Context(), id.Username, category)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoPublishedTest):
			httputil.RedirectWithNotice(c, studentDashboard, "No published test found for this category.")
		case errors.Is(err, ErrNoAttempt):
			httputil.RedirectWithNotice(c, studentDashboard, "You have not attempted this test.")
		default:
			h.handleServiceError(c, category, err)
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Stats(c *gin.Context) {
	id, _ := auth.GetIdentity(c.Request.Context())

	stats, err := h.service.Stats(c.Request.Context(), id.Username)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to load stats", "error", err)
		httputil.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": stats})
}

func (h *Handler) handleServiceError(c *gin.Context, category string, err error) {
	switch {
	case errors.Is(err, ErrAlreadyAttempted):
		c.Redirect(http.StatusSeeOther, resultPath(category))
		c.Abort()
	case errors.Is(err, ErrNoPublishedTest):
		httputil.RedirectWithNotice(c, studentDashboard, "Test not found or not published.")
	case errors.Is(err, ErrNoQuestions):
		httputil.RedirectWithNotice(c, studentDashboard, "No questions available for this test.")
	default:
		h.logger.ErrorContext(c.Request.Context(), "exam request failed", "category", category, "error", err)
		httputil.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}
