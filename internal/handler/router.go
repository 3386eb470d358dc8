package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/noah-isme/sma-attendance-api/internal/middleware"
	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// Handlers groups the HTTP handlers served by the API.
type Handlers struct {
	Students   *StudentHandler
	Classes    *ClassHandler
	DaysOff    *DayOffHandler
	Attendance *AttendanceHandler
	Reports    *ReportHandler
	Alerts     *AlertHandler
	Thresholds *ThresholdHandler
	Query      *QueryHandler
	Metrics    *MetricsHandler
}

// RouterConfig controls route registration.
type RouterConfig struct {
	APIPrefix   string
	AuthEnabled bool
	Tokens      middleware.TokenValidator
	Swagger     bool
}

// NewRouter builds the engine. Global middleware runs before every route, including 404 and 405 answers.
func NewRouter(cfg RouterConfig, h Handlers, global ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(global...)
	r.NoRoute(NotFound)
	r.NoMethod(MethodNotAllowed)

	if h.Metrics != nil {
		r.GET("/health", h.Metrics.Health)
		r.GET("/ready", h.Metrics.Ready)
		r.GET("/metrics", h.Metrics.Prometheus)
	}
	if cfg.Swagger {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	prefix := "/" + strings.Trim(cfg.APIPrefix, "/")
	if prefix == "/" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)
	if cfg.Tokens != nil {
		api.Use(middleware.OptionalJWT(cfg.Tokens))
	}

	admin := middleware.Guard(cfg.AuthEnabled, cfg.Tokens, models.RoleAdmin)
	staff := middleware.Guard(cfg.AuthEnabled, cfg.Tokens, models.RoleAdmin, models.RoleTeacher)

	students := api.Group("/students")
	students.GET("", h.Students.List)
	students.GET("/:id", h.Students.Get)
	students.POST("", admin, h.Students.Create)
	students.PUT("/:id", admin, h.Students.Update)
	students.DELETE("/:id", admin, h.Students.Delete)

	classes := api.Group("/classes")
	classes.GET("", h.Classes.List)
	classes.GET("/:id", h.Classes.Get)
	classes.POST("", admin, h.Classes.Create)
	classes.PUT("/:id", admin, h.Classes.Update)
	classes.DELETE("/:id", admin, h.Classes.Delete)
	classes.POST("/:id/students", admin, h.Classes.AddStudent)
	classes.DELETE("/:id/students/:studentId", admin, h.Classes.RemoveStudent)

	daysOff := api.Group("/days-off")
	daysOff.GET("", h.DaysOff.List)
	daysOff.POST("", admin, h.DaysOff.Create)
	daysOff.DELETE("/:id", admin, h.DaysOff.Delete)

	api.POST("/attendance", staff, h.Attendance.Submit)
	api.GET("/attendance/students/:id", h.Attendance.ForStudent)

	reports := api.Group("/reports")
	reports.GET("/attendance", h.Reports.Attendance)
	reports.POST("/attendance", h.Reports.AttendanceQuery)
	reports.POST("/exports", staff, h.Reports.CreateExport)
	reports.GET("/exports/:id", h.Reports.ExportStatus)
	// signed tokens authorise downloads on their own
	api.GET("/exports/:token", h.Reports.Download)

	alerts := api.Group("/alerts")
	alerts.GET("/students/:id", h.Alerts.Student)
	alerts.GET("/students/:id/trend", h.Alerts.Trend)
	alerts.GET("/classes/:id", h.Alerts.Class)

	settings := api.Group("/settings")
	settings.GET("/thresholds", h.Thresholds.Get)
	settings.PUT("/thresholds", admin, h.Thresholds.Update)
	settings.POST("/thresholds/validate", h.Thresholds.Validate)

	api.POST("/query", h.Query.Ask)
	if h.Metrics != nil {
		api.GET("/metrics/summary", h.Metrics.Summary)
	}

	return r
}
