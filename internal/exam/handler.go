package exam

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"exam-service/common/httputil"
	"exam-service/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

const facultyDashboard = "/faculty/dashboard"

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes mounts the faculty test-management endpoints.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.POST("/tests", h.CreateTest)
	router.GET("/tests/:id/review", h.ReviewTest)
	router.POST("/tests/:id/questions", h.UploadQuestion)
	router.POST("/tests/:id/publish", h.PublishTest)
	router.GET("/questions/:id", h.GetQuestion)
	router.PUT("/questions/:id", h.EditQuestion)
	router.DELETE("/questions/:id", h.DeleteQuestion)
}

func reviewPath(testID int64) string {
	return fmt.Sprintf("/tests/%d/review", testID)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithError(c, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return id, true
}

func caller(c *gin.Context) string {
	id, _ := auth.GetIdentity(c.Request.Context())
	return id.Username
}

func (h *Handler) CreateTest(c *gin.Context) {
	var req CreateTestRequest
	if err := c.ShouldBind(&req); err != nil || h.validate.Struct(&req) != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "Invalid request: category, total questions, duration, start and end date are required")
		return
	}

	test, err := h.service.CreateTest(c.Request.Context(), req, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	httputil.RespondWithNotice(c, http.StatusCreated, "Test created successfully. Please upload questions now.", gin.H{
		"test":     test,
		"redirect": reviewPath(test.ID),
	})
}

func (h *Handler) ReviewTest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	review, err := h.service.Review(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	httputil.RespondWithNotice(c, http.StatusOK, httputil.PopFlash(c), gin.H{
		"test":      review.Test,
		"questions": review.Questions,
		"uploaded":  review.Uploaded,
		"totalQs":   review.Test.TotalQs,
		"published": review.Test.Published,
	})
}

func (h *Handler) UploadQuestion(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req QuestionRequest
	if err := c.ShouldBind(&req); err != nil || h.validate.Struct(&req) != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "Invalid request: question, options and answer are required")
		return
	}

	result, err := h.service.AddQuestion(c.Request.Context(), id, req, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if result.AutoPublished {
		httputil.RespondWithNotice(c, http.StatusCreated, "All questions uploaded. Test automatically published.", gin.H{
			"result":   result,
			"redirect": facultyDashboard,
		})
		return
	}

	httputil.RespondWithNotice(c, http.StatusCreated, "Question uploaded successfully.", gin.H{
		"result":   result,
		"redirect": reviewPath(id),
	})
}

func (h *Handler) PublishTest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	test, err := h.service.Publish(c.Request.Context(), id, caller(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	httputil.RespondWithNotice(c, http.StatusOK, "Test published successfully.", gin.H{
		"test":     test,
		"redirect": facultyDashboard,
	})
}

func (h *Handler) GetQuestion(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	view, err := h.service.GetQuestion(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) EditQuestion(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req QuestionRequest
	if err := c.ShouldBind(&req); err != nil || h.validate.Struct(&req) != nil {
		httputil.RespondWithError(c, http.StatusBadRequest, "Invalid request: question, options and answer are required")
		return
	}

	q, err := h.service.EditQuestion(c.Request.Context(), id, req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	httputil.RespondWithNotice(c, http.StatusOK, "Question updated successfully.", gin.H{
		"question": q,
		"redirect": reviewPath(q.TestID),
	})
}

func (h *Handler) DeleteQuestion(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	q, err := h.service.DeleteQuestion(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	httputil.RespondWithNotice(c, http.StatusOK, "Question deleted successfully.", gin.H{
		"testId":   q.TestID,
		"redirect": reviewPath(q.TestID),
	})
}

func (h *Handler) handleServiceError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	var shortfall *ShortfallError
	switch {
	case errors.Is(err, ErrTestNotFound):
		h.logger.InfoContext(ctx, "test not found", "path", c.Request.URL.Path)
		httputil.RedirectWithNotice(c, facultyDashboard, "Test not found.")
	case errors.Is(err, ErrQuestionNotFound):
		h.logger.InfoContext(ctx, "question not found", "path", c.Request.URL.Path)
		httputil.RedirectWithNotice(c, facultyDashboard, "Question not found.")
	case errors.Is(err, ErrValidation):
		httputil.RespondWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTestPublished):
		httputil.RespondWithError(c, http.StatusConflict, "Test is already published. Questions can no longer be changed.")
	case errors.As(err, &shortfall):
		c.JSON(http.StatusConflict, gin.H{
			"error":    fmt.Sprintf("Cannot publish. %d more questions needed.", shortfall.Missing),
			"missing":  shortfall.Missing,
			"uploaded": shortfall.Uploaded,
			"required": shortfall.Required,
		})
	default:
		h.logger.ErrorContext(ctx, "internal error", "error", err)
		httputil.RespondWithError(c, http.StatusInternalServerError, "Internal server error")
	}
}
