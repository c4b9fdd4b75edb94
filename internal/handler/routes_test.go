package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalmiddleware "github.com/noah-isme/class-record-api/internal/middleware"
	"github.com/noah-isme/class-record-api/internal/models"
	"github.com/noah-isme/class-record-api/internal/service"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

type gradingConfigServiceMock struct {
	lastActor string
	revertErr error
}

func (m *gradingConfigServiceMock) List(ctx context.Context) ([]models.GradingConfig, error) {
	return []models.GradingConfig{{ClassType: models.ClassTypeLecture, Source: models.ConfigSourceDefault}}, nil
}

func (m *gradingConfigServiceMock) Resolve(ctx context.Context, classType string) (*models.GradingConfig, error) {
	return &models.GradingConfig{ClassType: classType, Source: models.ConfigSourceDefault}, nil
}

func (m *gradingConfigServiceMock) Update(ctx context.Context, classType string, req service.UpdateGradingConfigRequest, actor string) (*models.GradingConfig, error) {
	m.lastActor = actor
	return &models.GradingConfig{ClassType: classType, Source: models.ConfigSourceStored}, nil
}

func (m *gradingConfigServiceMock) Revert(ctx context.Context, classType string, actor string) (*models.GradingConfig, error) {
	if m.revertErr != nil {
		return nil, m.revertErr
	}
	return &models.GradingConfig{ClassType: classType, Source: models.ConfigSourceDefault}, nil
}

type gradeServiceMock struct {
	lastScore *service.UpsertScoreRequest
}

func (m *gradeServiceMock) ClassRecord(ctx context.Context, scheduleID string) (*models.ClassRecord, error) {
	return &models.ClassRecord{Schedule: models.Schedule{ID: scheduleID}}, nil
}

func (m *gradeServiceMock) StudentGrades(ctx context.Context, scheduleID, studentID string) (*models.GradeSummary, error) {
	return &models.GradeSummary{StudentID: studentID, ScheduleID: scheduleID, Status: models.SummaryIncomplete}, nil
}

func (m *gradeServiceMock) UpsertScore(ctx context.Context, scheduleID string, req service.UpsertScoreRequest, actor string) (*models.GradeItem, error) {
	m.lastScore = &req
	if req.Score == nil {
		return nil, nil
	}
	return &models.GradeItem{StudentID: req.StudentID, Score: *req.Score}, nil
}

func (m *gradeServiceMock) BulkUpsertScores(ctx context.Context, scheduleID string, req service.BulkScoreRequest, actor string) (*service.BulkScoreResult, error) {
	return &service.BulkScoreResult{Processed: len(req.Items), Success: len(req.Items)}, nil
}

type maxScoreServiceMock struct{}

func (maxScoreServiceMock) List(ctx context.Context, scheduleID string) ([]models.ItemMaxScore, error) {
	return nil, nil
}

func (maxScoreServiceMock) Update(ctx context.Context, scheduleID string, req service.UpdateMaxScoreRequest, actor string) (*models.RescaleResult, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "no current max score for item")
}

type sessionServiceMock struct {
	lastKey    models.SessionKey
	cancelErr  error
	lastReason string
}

func (m *sessionServiceMock) View(ctx context.Context, key models.SessionKey) (*models.SessionView, error) {
	m.lastKey = key
	return &models.SessionView{Key: key, State: models.SessionActive, Consistent: true}, nil
}

func (m *sessionServiceMock) Cancel(ctx context.Context, key models.SessionKey, req service.CancelSessionRequest, actor string) (*models.SessionView, error) {
	m.lastKey = key
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	return &models.SessionView{Key: key, State: models.SessionCancelled}, nil
}

func (m *sessionServiceMock) Restore(ctx context.Context, key models.SessionKey, actor string) (*models.SessionView, error) {
	return &models.SessionView{Key: key, State: models.SessionActive}, nil
}

func (m *sessionServiceMock) CancelOne(ctx context.Context, key models.SessionKey, studentID string, req service.CancelSessionRequest, actor string) (*models.AttendanceRecord, error) {
	return &models.AttendanceRecord{StudentID: studentID, Status: models.AttendanceStatusCancelled}, nil
}

func (m *sessionServiceMock) RestoreOne(ctx context.Context, key models.SessionKey, studentID, actor string) error {
	return nil
}

func (m *sessionServiceMock) Mark(ctx context.Context, key models.SessionKey, req service.MarkAttendanceRequest, actor string) (*models.AttendanceRecord, error) {
	return &models.AttendanceRecord{StudentID: req.StudentID, Status: models.AttendanceStatus(req.Status), RecordedBy: actor}, nil
}

func (m *sessionServiceMock) BulkMark(ctx context.Context, key models.SessionKey, req service.BulkMarkRequest, actor string) (*models.BulkAttendanceResult, error) {
	return &models.BulkAttendanceResult{Processed: len(req.Items), Success: len(req.Items)}, nil
}

func (m *sessionServiceMock) StudentSheet(ctx context.Context, scheduleID, studentID string) (*models.StudentAttendance, error) {
	return &models.StudentAttendance{StudentID: studentID, ScheduleID: scheduleID}, nil
}

type overrideServiceMock struct {
	lastRemove service.RemoveOverrideRequest
}

func (m *overrideServiceMock) Apply(ctx context.Context, scheduleID, studentID string, req service.ApplyOverrideRequest, actor string) (*models.BulkAttendanceResult, error) {
	return &models.BulkAttendanceResult{Processed: 36, Success: 35, Failures: []models.AttendanceWriteFailure{{StudentID: studentID, SessionType: models.SessionLab, Week: 9, Reason: "failed to write override"}}}, nil
}

func (m *overrideServiceMock) Remove(ctx context.Context, scheduleID, studentID string, req service.RemoveOverrideRequest, actor string) (*service.RemoveOverrideResult, error) {
	m.lastRemove = req
	return &service.RemoveOverrideResult{Status: models.AttendanceStatus(req.Status), Removed: 36}, nil
}

type testRouter struct {
	engine    *gin.Engine
	configs   *gradingConfigServiceMock
	grades    *gradeServiceMock
	sessions  *sessionServiceMock
	overrides *overrideServiceMock
}

func buildTestRouter() testRouter {
	gin.SetMode(gin.TestMode)
	tr := testRouter{
		engine:    gin.New(),
		configs:   &gradingConfigServiceMock{},
		grades:    &gradeServiceMock{},
		sessions:  &sessionServiceMock{},
		overrides: &overrideServiceMock{},
	}
	auth := func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{
				UserID:   c.GetHeader("X-Test-User"),
				Role:     models.UserRole(role),
				FullName: "Test User",
			})
		}
		c.Next()
	}
	RegisterRoutes(tr.engine.Group("/api/v1"), Handlers{
		GradingConfigs: NewGradingConfigHandler(tr.configs),
		Grades:         NewGradeHandler(tr.grades, maxScoreServiceMock{}),
		Attendance:     NewAttendanceHandler(tr.sessions, tr.overrides),
	}, auth)
	return tr
}

func (tr testRouter) do(method, path, role, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Test-Role", role)
		req.Header.Set("X-Test-User", "stu-1")
	}
	w := httptest.NewRecorder()
	tr.engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) appErrors.Error {
	t.Helper()
	var envelope struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestRoutesRequireAuthentication(t *testing.T) {
	tr := buildTestRouter()
	w := tr.do(http.MethodGet, "/api/v1/schedules/sch-1/grades", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutesRoleChecks(t *testing.T) {
	tr := buildTestRouter()
	student := string(models.RoleStudent)

	assert.Equal(t, http.StatusForbidden, tr.do(http.MethodGet, "/api/v1/schedules/sch-1/grades", student, "").Code)
	assert.Equal(t, http.StatusOK, tr.do(http.MethodGet, "/api/v1/schedules/sch-1/students/stu-1/grades", student, "").Code)
	assert.Equal(t, http.StatusOK, tr.do(http.MethodGet, "/api/v1/schedules/sch-1/students/stu-1/attendance", student, "").Code)
	assert.Equal(t, http.StatusForbidden, tr.do(http.MethodGet, "/api/v1/schedules/sch-1/students/stu-2/attendance", student, "").Code)
	assert.Equal(t, http.StatusForbidden, tr.do(http.MethodPut, "/api/v1/grading-configs/LECTURE", string(models.RoleInstructor), `{"components":[]}`).Code)
}

func TestGradingConfigRoutes(t *testing.T) {
	tr := buildTestRouter()
	coordinator := string(models.RoleCoordinator)

	w := tr.do(http.MethodPut, "/api/v1/grading-configs/LECTURE", coordinator, `{"components":[{"name":"quiz","weight":100,"items":3,"max_score":20}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Test User", tr.configs.lastActor)
	assert.Contains(t, w.Body.String(), `"source":"stored"`)

	w = tr.do(http.MethodPut, "/api/v1/grading-configs/LECTURE", coordinator, `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrValidation.Code, decodeError(t, w).Code)

	tr.configs.revertErr = appErrors.Clone(appErrors.ErrNotFound, "no stored grading config for class type")
	w = tr.do(http.MethodDelete, "/api/v1/grading-configs/LECTURE", coordinator, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGradeRoutes(t *testing.T) {
	tr := buildTestRouter()
	instructor := string(models.RoleInstructor)

	w := tr.do(http.MethodPut, "/api/v1/schedules/sch-1/grade-items", instructor, `{"student_id":"stu-1","term":"midterm","component":"quiz","item_number":1,"score":18}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, tr.grades.lastScore.Score)
	assert.Equal(t, 18.0, *tr.grades.lastScore.Score)

	w = tr.do(http.MethodPut, "/api/v1/schedules/sch-1/grade-items", instructor, `{"student_id":"stu-1","term":"midterm","component":"quiz","item_number":1,"score":null}`)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = tr.do(http.MethodPost, "/api/v1/schedules/sch-1/grade-items/bulk", instructor, `{"mode":"atomic","items":[{"student_id":"stu-1","term":"final","component":"quiz","item_number":1,"score":10}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":1`)

	w = tr.do(http.MethodPut, "/api/v1/schedules/sch-1/max-scores", instructor, `{"component":"quiz","item_number":1,"term":"final","max_score":12}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, appErrors.ErrNotFound.Code, decodeError(t, w).Code)
}

func TestSessionRoutes(t *testing.T) {
	tr := buildTestRouter()
	instructor := string(models.RoleInstructor)

	w := tr.do(http.MethodGet, "/api/v1/schedules/sch-1/sessions/LAB/4", instructor, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SessionKey{ScheduleID: "sch-1", SessionType: models.SessionLab, Week: 4}, tr.sessions.lastKey)

	w = tr.do(http.MethodGet, "/api/v1/schedules/sch-1/sessions/lab/four", instructor, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	tr.sessions.cancelErr = appErrors.Clone(appErrors.ErrSessionCancelled, "session already cancelled")
	w = tr.do(http.MethodPost, "/api/v1/schedules/sch-1/sessions/lecture/2/cancel", instructor, `{"reason":"typhoon"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrSessionCancelled.Code, decodeError(t, w).Code)

	w = tr.do(http.MethodPost, "/api/v1/schedules/sch-1/sessions/lecture/2/restore", instructor, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = tr.do(http.MethodPost, "/api/v1/schedules/sch-1/sessions/lecture/2/mark", instructor, `{"student_id":"stu-1","status":"P"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"recorded_by":"Test User"`)

	w = tr.do(http.MethodPost, "/api/v1/schedules/sch-1/sessions/lecture/2/bulk", instructor, `{"mode":"partialOnError","items":[{"student_id":"stu-1","status":"A"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = tr.do(http.MethodPost, "/api/v1/schedules/sch-1/sessions/lecture/2/students/stu-1/cancel", instructor, `{"reason":"varsity"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = tr.do(http.MethodPost, "/api/v1/schedules/sch-1/sessions/lecture/2/students/stu-1/restore", instructor, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOverrideRoutes(t *testing.T) {
	tr := buildTestRouter()
	instructor := string(models.RoleInstructor)

	w := tr.do(http.MethodPost, "/api/v1/schedules/sch-1/students/stu-1/overrides", instructor, `{"status":"D"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"week":9`)

	w = tr.do(http.MethodDelete, "/api/v1/schedules/sch-1/students/stu-1/overrides/FA?reason=appeal", instructor, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.RemoveOverrideRequest{Status: "FA", Reason: "appeal"}, tr.overrides.lastRemove)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := NewMetricsHandler(nil, map[string]Pinger{"postgres": PingFunc(func(ctx context.Context) error { return nil })})
	failing := NewMetricsHandler(nil, map[string]Pinger{"redis": PingFunc(func(ctx context.Context) error { return context.DeadlineExceeded })})

	router := gin.New()
	router.GET("/ready", healthy.Ready)
	router.GET("/ready-failing", failing.Ready)
	router.GET("/metrics", healthy.Prometheus)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready-failing", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "redis")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
