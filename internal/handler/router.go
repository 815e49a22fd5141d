package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-cms-api/internal/middleware"
	"github.com/noah-isme/course-cms-api/internal/models"
	"github.com/noah-isme/course-cms-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Course       *CourseHandler
	Lecturer     *LecturerHandler
	Student      *StudentHandler
	Call         *CallHandler
	Enrollment   *EnrollmentHandler
	Group        *GroupHandler
	GroupStudent *GroupStudentHandler
	Material     *MaterialHandler
	Payment      *PaymentHandler
	Export       *ExportHandler
	Metrics      *MetricsHandler
}

// RegisterRoutes mounts the versioned API under /api/v1.
func RegisterRoutes(r *gin.Engine, h Handlers, authSvc *service.AuthService, audit *middleware.AuditRecorder) {
	admin := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleLecturer)
	anyRole := middleware.RequireRoles(models.RoleAdmin, models.RoleLecturer, models.RoleStudent)
	adminOrSelf := middleware.RBAC(string(models.RoleAdmin), "SELF")

	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", h.Auth.Logout)
		authed.POST("/change-password", h.Auth.ChangePassword)
		authed.GET("/me", h.Auth.Me)
	}

	protected := api.Group("", middleware.JWT(authSvc))

	users := protected.Group("/users", admin)
	{
		users.GET("", h.User.List)
		users.GET("/:id", h.User.Get)
		users.POST("", middleware.Audit(audit, models.AuditActionUserCreate, "users"), h.User.Create)
		users.PUT("/:id", middleware.Audit(audit, models.AuditActionUserUpdate, "users"), h.User.Update)
		users.DELETE("/:id", middleware.Audit(audit, models.AuditActionUserDelete, "users"), h.User.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", anyRole, h.Course.List)
		courses.GET("/:id", anyRole, h.Course.Get)
		courses.POST("", admin, h.Course.Create)
		courses.PUT("/:id", admin, h.Course.Update)
		courses.DELETE("/:id", admin, h.Course.Delete)
		courses.POST("/:id/lecturers", admin, h.Course.AssignLecturer)
	}

	protected.GET("/course-lecturers", staff, h.Group.Assignments)

	lecturers := protected.Group("/lecturers")
	{
		lecturers.GET("", staff, h.Lecturer.List)
		lecturers.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleLecturer), "SELF"), h.Lecturer.Get)
		lecturers.POST("", admin, middleware.Audit(audit, models.AuditActionUserCreate, "lecturers"), h.Lecturer.Create)
		lecturers.PUT("/:id", admin, h.Lecturer.Update)
		lecturers.DELETE("/:id", admin, middleware.Audit(audit, models.AuditActionUserDelete, "lecturers"), h.Lecturer.Delete)
		lecturers.GET("/:id/groups", staff, h.Lecturer.Groups)
	}

	students := protected.Group("/students")
	{
		students.GET("", staff, h.Student.List)
		students.GET("/:id", adminOrSelf, h.Student.Get)
		students.POST("", admin, middleware.Audit(audit, models.AuditActionUserCreate, "students"), h.Student.Create)
		students.PUT("/:id", admin, h.Student.Update)
		students.DELETE("/:id", admin, middleware.Audit(audit, models.AuditActionUserDelete, "students"), h.Student.Delete)
		students.GET("/:id/calls", adminOrSelf, h.Student.Calls)
		students.GET("/:id/groups", adminOrSelf, h.Student.Groups)
		students.POST("/:id/block", admin, middleware.Audit(audit, models.AuditActionStudentBlock, "students"), h.Payment.BlockStudent)
		students.POST("/:id/unblock", admin, middleware.Audit(audit, models.AuditActionStudentUnblock, "students"), h.Payment.UnblockStudent)
	}

	calls := protected.Group("/calls")
	{
		calls.GET("", anyRole, h.Call.List)
		calls.GET("/:id", anyRole, h.Call.Get)
		calls.POST("", admin, h.Call.Create)
		calls.PUT("/:id", admin, h.Call.Update)
		calls.DELETE("/:id", admin, h.Call.Delete)

		calls.GET("/:id/capacity", staff, h.Enrollment.Capacity)
		calls.GET("/:id/students", staff, h.Enrollment.Students)
		calls.GET("/:id/students/:studentId/exists", staff, h.Enrollment.Exists)
		calls.POST("/:id/students/:studentId", admin, middleware.Audit(audit, models.AuditActionEnroll, "enrollments"), h.Enrollment.Enroll)
		calls.DELETE("/:id/students/:studentId", admin, middleware.Audit(audit, models.AuditActionWithdraw, "enrollments"), h.Enrollment.Withdraw)
		calls.POST("/:id/enrollments/bulk", admin, middleware.Audit(audit, models.AuditActionEnroll, "enrollments"), h.Enrollment.BulkEnroll)
		calls.POST("/:id/withdrawals/bulk", admin, middleware.Audit(audit, models.AuditActionWithdraw, "enrollments"), h.Enrollment.BulkWithdraw)
	}

	enrollments := protected.Group("/enrollments", staff)
	{
		enrollments.GET("", h.Enrollment.List)
		enrollments.GET("/statistics", h.Enrollment.Statistics)
	}

	groups := protected.Group("/groups")
	{
		groups.GET("", staff, h.Group.List)
		groups.GET("/:id", anyRole, h.Group.Get)
		groups.POST("", admin, h.Group.Create)
		groups.PUT("/:id", staff, h.Group.Update)
		groups.POST("/:id/finish", admin, middleware.Audit(audit, models.AuditActionGroupFinish, "groups"), h.Group.Finish)

		groups.GET("/:id/students", staff, h.GroupStudent.List)
		groups.POST("/:id/students", admin, h.GroupStudent.Add)
		groups.DELETE("/:id/students/:studentId", admin, h.GroupStudent.Remove)
		groups.POST("/:id/students/:studentId/feedback", anyRole, h.GroupStudent.Feedback)
		groups.PUT("/:id/students/:studentId/status", staff, h.GroupStudent.UpdateStatus)

		groups.GET("/:id/materials", anyRole, h.Material.ListByGroup)
		groups.POST("/:id/materials", staff, h.Material.Create)
	}

	materials := protected.Group("/materials")
	{
		materials.GET("/:id", anyRole, h.Material.Get)
		materials.PUT("/:id", staff, h.Material.Update)
		materials.DELETE("/:id", staff, h.Material.Delete)
	}

	payments := protected.Group("/payments", admin)
	{
		payments.GET("", h.Payment.List)
		payments.GET("/overdue", h.Payment.Overdue)
		payments.GET("/statistics", h.Payment.Statistics)
		payments.GET("/:id", h.Payment.Get)
		payments.POST("/:id/confirm", middleware.Audit(audit, models.AuditActionPaymentConfirm, "payments"), h.Payment.Confirm)
		payments.PUT("/:id", middleware.Audit(audit, models.AuditActionPaymentUpdate, "payments"), h.Payment.Update)
		payments.DELETE("/:id", middleware.Audit(audit, models.AuditActionPaymentDelete, "payments"), h.Payment.Delete)
	}

	protected.GET("/group-students/:id/payments", admin, h.Payment.Schedule)

	exports := protected.Group("/exports", admin)
	{
		exports.POST("", h.Export.Generate)
	}
	// Download links carry their own signed token, no session required.
	api.GET("/exports/download/:token", h.Export.Download)

	protected.GET("/metrics/summary", admin, h.Metrics.Snapshot)
}
