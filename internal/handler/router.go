package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/middleware"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/models"
	"github.com/muhammedrifadkp/CDC-Attendance-sub001/internal/service"
)

// Handlers aggregates every endpoint group for route registration.
type Handlers struct {
	Auth          *AuthHandler
	Departments   *DepartmentHandler
	Courses       *CourseHandler
	Batches       *BatchHandler
	Students      *StudentHandler
	Attendance    *AttendanceHandler
	Lab           *LabHandler
	Projects      *ProjectHandler
	Notifications *NotificationHandler
	Dashboard     *DashboardHandler
	Metrics       *MetricsHandler
}

// Register mounts the API surface under prefix. Everything except login,
// health and metrics sits behind JWT; write routes carry role guards on top.
func Register(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.POST("/auth/login", h.Auth.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(auth))

	protected.GET("/auth/profile", h.Auth.Profile)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	departments := protected.Group("/departments")
	{
		departments.GET("", h.Departments.List)
		departments.GET("/overview", h.Departments.Overview)
		departments.GET("/:id", h.Departments.Get)
		departments.POST("", adminOnly, h.Departments.Create)
		departments.PUT("/:id", adminOnly, h.Departments.Update)
		departments.DELETE("/:id", adminOnly, h.Departments.Delete)
	}

	courses := protected.Group("/courses")
	{
		courses.GET("", h.Courses.List)
		courses.GET("/:id", h.Courses.Get)
		courses.GET("/:id/overview", h.Courses.Overview)
		courses.POST("", staff, h.Courses.Create)
		courses.PUT("/:id", staff, h.Courses.Update)
		courses.DELETE("/:id", staff, h.Courses.Delete)
	}

	batches := protected.Group("/batches")
	{
		batches.GET("", h.Batches.List)
		batches.GET("/:id", h.Batches.Get)
		batches.GET("/:id/overview", h.Batches.Overview)
		batches.GET("/:id/students", h.Batches.Roster)
		batches.POST("", staff, h.Batches.Create)
		batches.PUT("/:id", staff, h.Batches.Update)
		batches.PATCH("/:id/finished", staff, h.Batches.ToggleFinished)
		batches.DELETE("/:id", staff, h.Batches.Delete)
	}

	students := protected.Group("/students")
	{
		students.GET("", h.Students.List)
		students.GET("/overview", h.Students.Overview)
		students.GET("/next-roll-number", staff, h.Students.NextRollNumber)
		students.GET("/:id", h.Students.Get)
		students.GET("/:id/stats", h.Students.Stats)
		students.POST("", staff, h.Students.Create)
		students.PUT("/:id", staff, h.Students.Update)
		students.DELETE("/:id", staff, h.Students.Delete)
	}

	attendance := protected.Group("/attendance")
	{
		attendance.POST("", staff, h.Attendance.Mark)
		attendance.POST("/bulk", staff, h.Attendance.BulkMark)
		attendance.GET("/batch/:id", h.Attendance.BatchView)
		attendance.GET("/batch/:id/stats", h.Attendance.Stats)
		attendance.GET("/batch/:id/trend", h.Attendance.Trend)
		attendance.GET("/student/:id", h.Attendance.History)
		attendance.GET("/today", h.Attendance.TodaySummary)
		attendance.GET("/export", staff, h.Attendance.Export)
	}

	lab := protected.Group("/lab")
	{
		lab.GET("/pcs", h.Lab.ListPCs)
		lab.GET("/pcs/by-row", h.Lab.ListPCsByRow)
		lab.POST("/pcs", adminOnly, h.Lab.CreatePC)
		lab.PUT("/pcs/:id", adminOnly, h.Lab.UpdatePC)
		lab.DELETE("/pcs/:id", adminOnly, h.Lab.DeletePC)
		lab.GET("/availability", h.Lab.Availability)
		lab.GET("/bookings", h.Lab.ListBookings)
		lab.GET("/bookings/attendance", h.Lab.BookingsWithAttendance)
		lab.POST("/bookings", staff, h.Lab.Book)
		lab.PATCH("/bookings/:id/status", staff, h.Lab.UpdateBookingStatus)
		lab.POST("/bookings/clear", adminOnly, h.Lab.ClearBookings)
		lab.POST("/bookings/apply-previous", staff, h.Lab.ApplyPrevious)
	}

	projects := protected.Group("/projects")
	{
		projects.GET("", h.Projects.List)
		projects.GET("/:id", h.Projects.Get)
		projects.POST("", staff, h.Projects.Create)
		projects.PUT("/:id", staff, h.Projects.Update)
		projects.DELETE("/:id", staff, h.Projects.Delete)
		projects.GET("/:id/submissions", h.Projects.Submissions)
		projects.GET("/:id/analytics", h.Projects.Analytics)
		projects.GET("/:id/report", staff, h.Projects.Report)
		projects.POST("/:id/complete", staff, h.Projects.Complete)
		projects.POST("/submissions", h.Projects.Submit)
		projects.POST("/submissions/:id/resubmit", h.Projects.Resubmit)
		projects.POST("/submissions/:id/review", staff, h.Projects.StartReview)
		projects.POST("/submissions/:id/return", staff, h.Projects.Return)
		projects.POST("/submissions/:id/grade", staff, h.Projects.Grade)
		projects.POST("/submissions/:id/files", h.Projects.UploadFile)
		projects.GET("/submissions/:id/files/:fileId", h.Projects.DownloadFile)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", adminOnly, h.Notifications.ListAll)
		notifications.POST("", adminOnly, h.Notifications.Create)
		notifications.GET("/inbox", h.Notifications.Inbox)
		notifications.POST("/:id/read", h.Notifications.MarkRead)
		notifications.DELETE("/:id", adminOnly, h.Notifications.Delete)
		notifications.POST("/prune", adminOnly, h.Notifications.PruneExpired)
	}

	dashboard := protected.Group("/dashboard")
	{
		dashboard.GET("/summary", adminOnly, h.Dashboard.Summary)
		dashboard.GET("/attendance-analytics", adminOnly, h.Dashboard.AttendanceAnalytics)
	}
}
