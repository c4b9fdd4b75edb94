package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-record-api/internal/models"
	"github.com/noah-isme/class-record-api/internal/service"
	"github.com/noah-isme/class-record-api/pkg/response"
)

type sessionService interface {
	View(ctx context.Context, key models.SessionKey) (*models.SessionView, error)
	Cancel(ctx context.Context, key models.SessionKey, req service.CancelSessionRequest, actor string) (*models.SessionView, error)
	Restore(ctx context.Context, key models.SessionKey, actor string) (*models.SessionView, error)
	CancelOne(ctx context.Context, key models.SessionKey, studentID string, req service.CancelSessionRequest, actor string) (*models.AttendanceRecord, error)
	RestoreOne(ctx context.Context, key models.SessionKey, studentID, actor string) error
	Mark(ctx context.Context, key models.SessionKey, req service.MarkAttendanceRequest, actor string) (*models.AttendanceRecord, error)
	BulkMark(ctx context.Context, key models.SessionKey, req service.BulkMarkRequest, actor string) (*models.BulkAttendanceResult, error)
	StudentSheet(ctx context.Context, scheduleID, studentID string) (*models.StudentAttendance, error)
}

type overrideService interface {
	Apply(ctx context.Context, scheduleID, studentID string, req service.ApplyOverrideRequest, actor string) (*models.BulkAttendanceResult, error)
	Remove(ctx context.Context, scheduleID, studentID string, req service.RemoveOverrideRequest, actor string) (*service.RemoveOverrideResult, error)
}

// AttendanceHandler exposes session, student sheet and override endpoints.
type AttendanceHandler struct {
	sessions  sessionService
	overrides overrideService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(sessions sessionService, overrides overrideService) *AttendanceHandler {
	return &AttendanceHandler{sessions: sessions, overrides: overrides}
}

// Session godoc
// @Summary Session roster and state
// @Tags Attendance
// @Produce json
// @Param id path string true "Schedule ID"
// @Param type path string true "lecture or lab"
// @Param week path int true "Week"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/sessions/{type}/{week} [get]
func (h *AttendanceHandler) Session(c *gin.Context) {
	key, err := sessionKeyFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.sessions.View(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Cancel godoc
// @Summary Cancel a session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param type path string true "lecture or lab"
// @Param week path int true "Week"
// @Param payload body service.CancelSessionRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id}/sessions/{type}/{week}/cancel [post]
func (h *AttendanceHandler) Cancel(c *gin.Context) {
	key, err := sessionKeyFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CancelSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	view, err := h.sessions.Cancel(c.Request.Context(), key, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// Restore godoc
// @Summary Restore a cancelled session
// @Tags Attendance
// @Produce json
// @Param id path string true "Schedule ID"
// @Param type path string true "lecture or lab"
// @Param week path int true "Week"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/{id}/sessions/{type}/{week}/restore [post]
func (h *AttendanceHandler) Restore(c *gin.Context) {
	key, err := sessionKeyFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.sessions.Restore(c.Request.Context(), key, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view)
}

// CancelStudent godoc
// @Summary Cancel a session for one student
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param type path string true "lecture or lab"
// @Param week path int true "Week"
// @Param studentId path string true "Student ID"
// @Param payload body service.CancelSessionRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/sessions/{type}/{week}/students/{studentId}/cancel [post]
func (h *AttendanceHandler) CancelStudent(c *gin.Context) {
	key, err := sessionKeyFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.CancelSessionRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.sessions.CancelOne(c.Request.Context(), key, c.Param("studentId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// RestoreStudent godoc
// @Summary Undo a single-student cancellation
// @Tags Attendance
// @Param id path string true "Schedule ID"
// @Param type path string true "lecture or lab"
// @Param week path int true "Week"
// @Param studentId path string true "Student ID"
// @Success 204
// @Router /schedules/{id}/sessions/{type}/{week}/students/{studentId}/restore [post]
func (h *AttendanceHandler) RestoreStudent(c *gin.Context) {
	key, err := sessionKeyFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.sessions.RestoreOne(c.Request.Context(), key, c.Param("studentId"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Mark godoc
// @Summary Record one student's attendance
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param type path string true "lecture or lab"
// @Param week path int true "Week"
// @Param payload body service.MarkAttendanceRequest true "Mark payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/sessions/{type}/{week}/mark [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	key, err := sessionKeyFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.MarkAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.sessions.Mark(c.Request.Context(), key, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// BulkMark godoc
// @Summary Record attendance for many students
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param type path string true "lecture or lab"
// @Param week path int true "Week"
// @Param payload body service.BulkMarkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/sessions/{type}/{week}/bulk [post]
func (h *AttendanceHandler) BulkMark(c *gin.Context) {
	key, err := sessionKeyFromParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req service.BulkMarkRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.sessions.BulkMark(c.Request.Context(), key, req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// StudentAttendance godoc
// @Summary Attendance grid and summary of one student
// @Tags Attendance
// @Produce json
// @Param id path string true "Schedule ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/students/{studentId}/attendance [get]
func (h *AttendanceHandler) StudentAttendance(c *gin.Context) {
	sheet, err := h.sessions.StudentSheet(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet)
}

// ApplyOverride godoc
// @Summary Apply a D or FA status to every session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param studentId path string true "Student ID"
// @Param payload body service.ApplyOverrideRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/students/{studentId}/overrides [post]
func (h *AttendanceHandler) ApplyOverride(c *gin.Context) {
	var req service.ApplyOverrideRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.overrides.Apply(c.Request.Context(), c.Param("id"), c.Param("studentId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// RemoveOverride godoc
// @Summary Remove a D or FA status
// @Tags Attendance
// @Produce json
// @Param id path string true "Schedule ID"
// @Param studentId path string true "Student ID"
// @Param status path string true "D or FA"
// @Param reason query string false "Required when removing FA"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id}/students/{studentId}/overrides/{status} [delete]
func (h *AttendanceHandler) RemoveOverride(c *gin.Context) {
	req := service.RemoveOverrideRequest{Status: c.Param("status"), Reason: c.Query("reason")}
	result, err := h.overrides.Remove(c.Request.Context(), c.Param("id"), c.Param("studentId"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
