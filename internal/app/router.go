package app

import (
	"log/slog"
	"net/http"

	"exam-service/common/httputil"
	commonmetrics "exam-service/common/metrics"
	"exam-service/internal/attempt"
	"exam-service/internal/auth"
	"exam-service/internal/config"
	"exam-service/internal/dashboard"
	"exam-service/internal/events"
	"exam-service/internal/exam"
	"exam-service/internal/health"
	"exam-service/internal/metrics"
	"exam-service/internal/middleware"
	"exam-service/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/bun"
)

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Config   *config.Config
	DB       *bun.DB
	Logger   *slog.Logger
	Metrics  *commonmetrics.Metrics
	Domain   *metrics.Metrics
	Notifier *events.Notifier
	// BcryptCost overrides bcrypt.DefaultCost when non-zero.
	BcryptCost int
}

// NewRouter wires repositories, services and handlers onto a gin engine.
func NewRouter(d Deps) (*gin.Engine, *health.Handler) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(d.Logger))
	router.Use(middleware.CORS(d.Config.Server.CORSOrigins))

	checks := map[string]health.Checker{
		"database": health.CheckFunc(d.DB.PingContext),
	}
	if hc, ok := d.Notifier.Producer().(events.HealthChecker); ok {
		checks["events"] = hc
	}
	healthHandler := health.NewHandler(checks, d.Metrics, d.Logger)
	healthHandler.RegisterRoutes(router)

	router.GET("/", func(c *gin.Context) {
		httputil.RespondWithNotice(c, http.StatusOK, httputil.PopFlash(c), gin.H{
			"service": ServiceName,
			"version": Version,
		})
	})

	// Repositories
	userRepo := user.NewRepository(d.DB, d.Metrics)
	examRepo := exam.NewRepository(d.DB, d.Metrics)
	attemptRepo := attempt.NewRepository(d.DB, d.Metrics)

	// Services
	var userService user.Service
	if d.BcryptCost != 0 {
		userService = user.NewServiceWithCost(userRepo, d.BcryptCost)
	} else {
		userService = user.NewService(userRepo)
	}
	examService := exam.NewService(examRepo, d.Notifier, d.Domain, d.Logger)
	attemptService := attempt.NewService(attemptRepo, examRepo, d.Notifier, d.Domain, d.Logger)
	dashboardService := dashboard.NewService(examRepo, attemptRepo, d.Logger)

	// Handlers
	issuer := auth.NewTokenIssuer(d.Config.Auth.JWTSecret, d.Config.Auth.TokenTTL())
	authHandler := auth.NewHandler(userService, issuer, d.Logger, d.Domain)
	examHandler := exam.NewHandler(examService, d.Logger)
	attemptHandler := attempt.NewHandler(attemptService, d.Logger)
	dashboardHandler := dashboard.NewHandler(dashboardService, d.Logger)

	authHandler.RegisterRoutes(router)

	authed := router.Group("", auth.AuthMiddleware(issuer, d.Logger))
	authHandler.RegisterAccountRoutes(authed)
	attemptHandler.RegisterAccountRoutes(authed)

	student := authed.Group("", auth.RequireRole(d.Logger, user.RoleStudent))
	dashboardHandler.RegisterStudentRoutes(student)
	attemptHandler.RegisterRoutes(student)

	faculty := authed.Group("", auth.RequireRole(d.Logger, user.RoleFaculty))
	dashboardHandler.RegisterFacultyRoutes(faculty)
	examHandler.RegisterRoutes(faculty)

	return router, healthHandler
}
