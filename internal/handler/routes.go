package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-record-api/internal/middleware"
	"github.com/noah-isme/class-record-api/internal/models"
)

// Handlers groups the API handlers mounted under the API prefix.
type Handlers struct {
	GradingConfigs *GradingConfigHandler
	Grades         *GradeHandler
	Attendance     *AttendanceHandler
}

// RegisterRoutes mounts the class record API on group. auth runs before the
// role checks of every route.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	secured := group.Group("")
	if auth != nil {
		secured.Use(auth)
	}

	staff := middleware.Staff()
	staffOrSelf := middleware.StaffOrSelf()
	coordinators := middleware.RequireRoles(models.RoleAdmin, models.RoleCoordinator)

	configs := secured.Group("/grading-configs")
	configs.GET("", staff, h.GradingConfigs.List)
	configs.GET("/:classType", staff, h.GradingConfigs.Get)
	configs.PUT("/:classType", coordinators, h.GradingConfigs.Update)
	configs.DELETE("/:classType", coordinators, h.GradingConfigs.Revert)

	schedules := secured.Group("/schedules/:id")
	schedules.GET("/grades", staff, h.Grades.ClassRecord)
	schedules.PUT("/grade-items", staff, h.Grades.UpsertScore)
	schedules.POST("/grade-items/bulk", staff, h.Grades.BulkScores)
	schedules.GET("/max-scores", staff, h.Grades.ListMaxScores)
	schedules.PUT("/max-scores", staff, h.Grades.UpdateMaxScore)

	sessions := schedules.Group("/sessions/:type/:week")
	sessions.GET("", staff, h.Attendance.Session)
	sessions.POST("/cancel", staff, h.Attendance.Cancel)
	sessions.POST("/restore", staff, h.Attendance.Restore)
	sessions.POST("/mark", staff, h.Attendance.Mark)
	sessions.POST("/bulk", staff, h.Attendance.BulkMark)
	sessions.POST("/students/:studentId/cancel", staff, h.Attendance.CancelStudent)
	sessions.POST("/students/:studentId/restore", staff, h.Attendance.RestoreStudent)

	students := schedules.Group("/students/:studentId")
	students.GET("/grades", staffOrSelf, h.Grades.StudentGrades)
	students.GET("/attendance", staffOrSelf, h.Attendance.StudentAttendance)
	students.POST("/overrides", staff, h.Attendance.ApplyOverride)
	students.DELETE("/overrides/:status", staff, h.Attendance.RemoveOverride)
}
