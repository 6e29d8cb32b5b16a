package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/unireg-api/internal/handler"
	internalmiddleware "github.com/noah-isme/unireg-api/internal/middleware"
	"github.com/noah-isme/unireg-api/internal/models"
)

type routeDeps struct {
	auth          internalmiddleware.Authenticator
	audit         internalmiddleware.AuditRecorder
	logger        *zap.Logger
	registration  *handler.RegistrationHandler
	courses       *handler.CourseHandler
	records       *handler.AcademicRecordHandler
	settings      *handler.SettingsHandler
	notifications *handler.NotificationHandler
}

func registerRoutes(api *gin.RouterGroup, deps routeDeps) {
	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(deps.auth))

	admin := internalmiddleware.RequireRoles(models.RoleAdmin)
	advisorOrAdmin := internalmiddleware.RequireRoles(models.RoleAdvisor, models.RoleAdmin)
	studentOrAdmin := internalmiddleware.RequireRoles(models.RoleStudent, models.RoleAdmin)
	selfAdvisorOrAdmin := internalmiddleware.RBAC(internalmiddleware.SelfAccess, string(models.RoleAdvisor), string(models.RoleAdmin))

	registration := secured.Group("/registration")
	registration.GET("/eligibility", deps.registration.Eligibility)
	registration.POST("/requests", studentOrAdmin, deps.registration.Create)
	registration.GET("/requests", deps.registration.List)
	registration.GET("/requests/:id", deps.registration.Get)
	registration.POST("/requests/:id/approve", advisorOrAdmin, deps.registration.Approve)
	registration.POST("/requests/:id/reject", advisorOrAdmin, deps.registration.Reject)

	courses := secured.Group("/courses")
	courses.GET("", deps.courses.List)
	courses.GET("/:id", deps.courses.Get)
	courses.POST("", admin, deps.courses.Create)
	courses.PUT("/:id", admin, deps.courses.Update)

	students := secured.Group("/students", selfAdvisorOrAdmin)
	students.GET("/:id/record", deps.records.Record)
	students.GET("/:id/transcript",
		internalmiddleware.Audit(deps.audit, deps.logger, models.AuditActionTranscriptRead, "transcript"),
		deps.records.Transcript,
	)

	secured.POST("/enrollments/:id/grade", admin, deps.records.PostGrade)

	secured.GET("/settings", deps.settings.List)
	secured.PUT("/settings/:key", admin, deps.settings.Update)

	secured.GET("/notifications", deps.notifications.List)
}
