package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-record-api/internal/models"
	"github.com/noah-isme/class-record-api/internal/service"
	"github.com/noah-isme/class-record-api/pkg/response"
)

type gradeService interface {
	ClassRecord(ctx context.Context, scheduleID string) (*models.ClassRecord, error)
	StudentGrades(ctx context.Context, scheduleID, studentID string) (*models.GradeSummary, error)
	UpsertScore(ctx context.Context, scheduleID string, req service.UpsertScoreRequest, actor string) (*models.GradeItem, error)
	BulkUpsertScores(ctx context.Context, scheduleID string, req service.BulkScoreRequest, actor string) (*service.BulkScoreResult, error)
}

type maxScoreService interface {
	List(ctx context.Context, scheduleID string) ([]models.ItemMaxScore, error)
	Update(ctx context.Context, scheduleID string, req service.UpdateMaxScoreRequest, actor string) (*models.RescaleResult, error)
}

// GradeHandler exposes class record, score entry and max score endpoints.
type GradeHandler struct {
	grades    gradeService
	maxScores maxScoreService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeService, maxScores maxScoreService) *GradeHandler {
	return &GradeHandler{grades: grades, maxScores: maxScores}
}

// ClassRecord godoc
// @Summary Class record of a schedule
// @Tags Grades
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/grades [get]
func (h *GradeHandler) ClassRecord(c *gin.Context) {
	record, err := h.grades.ClassRecord(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// StudentGrades godoc
// @Summary Grades of one student
// @Tags Grades
// @Produce json
// @Param id path string true "Schedule ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/students/{studentId}/grades [get]
func (h *GradeHandler) StudentGrades(c *gin.Context) {
	summary, err := h.grades.StudentGrades(c.Request.Context(), c.Param("id"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// UpsertScore godoc
// @Summary Enter or clear one item score
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body service.UpsertScoreRequest true "Score payload; omit score to clear"
// @Success 200 {object} response.Envelope
// @Success 204
// @Router /schedules/{id}/grade-items [put]
func (h *GradeHandler) UpsertScore(c *gin.Context) {
	var req service.UpsertScoreRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.grades.UpsertScore(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	if item == nil {
		response.NoContent(c)
		return
	}
	response.JSON(c, http.StatusOK, item)
}

// BulkScores godoc
// @Summary Bulk score entry
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body service.BulkScoreRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/grade-items/bulk [post]
func (h *GradeHandler) BulkScores(c *gin.Context) {
	var req service.BulkScoreRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.grades.BulkUpsertScores(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ListMaxScores godoc
// @Summary Stored per-item max scores
// @Tags Grades
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/max-scores [get]
func (h *GradeHandler) ListMaxScores(c *gin.Context) {
	stored, err := h.maxScores.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stored)
}

// UpdateMaxScore godoc
// @Summary Change an item max score and rescale recorded scores
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Schedule ID"
// @Param payload body service.UpdateMaxScoreRequest true "Max score payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/{id}/max-scores [put]
func (h *GradeHandler) UpdateMaxScore(c *gin.Context) {
	var req service.UpdateMaxScoreRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.maxScores.Update(c.Request.Context(), c.Param("id"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
