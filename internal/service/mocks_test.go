package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/class-record-api/internal/attendance"
	"github.com/noah-isme/class-record-api/internal/models"
	"github.com/noah-isme/class-record-api/internal/repository"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

type mockScheduleRepo struct {
	schedules map[string]*models.Schedule
}

func (m *mockScheduleRepo) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	if s, ok := m.schedules[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockEnrollmentRepo struct {
	enrollments []models.Enrollment
}

func (m *mockEnrollmentRepo) ListBySchedule(ctx context.Context, scheduleID string) ([]models.Enrollment, error) {
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.ScheduleID == scheduleID && e.Active() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockEnrollmentRepo) Find(ctx context.Context, scheduleID, studentID string) (*models.Enrollment, error) {
	for i := range m.enrollments {
		if m.enrollments[i].ScheduleID == scheduleID && m.enrollments[i].StudentID == studentID {
			e := m.enrollments[i]
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

type mockGradingConfigRepo struct {
	stored     map[string]*repository.StoredGradingConfig
	finds      int
	replaceErr error
}

func (m *mockGradingConfigRepo) FindByClassType(ctx context.Context, classType string) (*repository.StoredGradingConfig, error) {
	m.finds++
	if stored, ok := m.stored[classType]; ok {
		return stored, nil
	}
	return &repository.StoredGradingConfig{}, nil
}

func (m *mockGradingConfigRepo) Replace(ctx context.Context, classType string, components []models.GradingComponent, actor string) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	if m.stored == nil {
		m.stored = make(map[string]*repository.StoredGradingConfig)
	}
	m.stored[classType] = &repository.StoredGradingConfig{Components: components, UpdatedBy: actor, UpdatedAt: time.Now()}
	return nil
}

func (m *mockGradingConfigRepo) Delete(ctx context.Context, classType string) (int64, error) {
	stored, ok := m.stored[classType]
	if !ok {
		return 0, nil
	}
	delete(m.stored, classType)
	return int64(len(stored.Components)), nil
}

type gradeItemKey struct {
	studentID string
	key       models.MaxScoreKey
}

type mockGradeItemRepo struct {
	items     map[gradeItemKey]models.GradeItem
	maxScores map[models.MaxScoreKey]models.ItemMaxScore
	bulkCalls int
	upsertErr error
	// onList runs before every list call.
	onList func()
}

func newMockGradeItemRepo() *mockGradeItemRepo {
	return &mockGradeItemRepo{items: make(map[gradeItemKey]models.GradeItem), maxScores: make(map[models.MaxScoreKey]models.ItemMaxScore)}
}

func itemKeyOf(item models.GradeItem) gradeItemKey {
	return gradeItemKey{studentID: item.StudentID, key: models.MaxScoreKey{ScheduleID: item.ScheduleID, Component: item.Component, ItemNumber: item.ItemNumber, Term: item.Term}}
}

func (m *mockGradeItemRepo) ListBySchedule(ctx context.Context, scheduleID string) ([]models.GradeItem, error) {
	if m.onList != nil {
		m.onList()
	}
	var out []models.GradeItem
	for _, item := range m.items {
		if item.ScheduleID == scheduleID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockGradeItemRepo) ListByStudent(ctx context.Context, scheduleID, studentID string) ([]models.GradeItem, error) {
	if m.onList != nil {
		m.onList()
	}
	var out []models.GradeItem
	for _, item := range m.items {
		if item.ScheduleID == scheduleID && item.StudentID == studentID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockGradeItemRepo) Upsert(ctx context.Context, item *models.GradeItem) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.items[itemKeyOf(*item)] = *item
	return nil
}

func (m *mockGradeItemRepo) BulkUpsert(ctx context.Context, items []models.GradeItem) error {
	m.bulkCalls++
	for i := range items {
		if err := m.Upsert(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockGradeItemRepo) Delete(ctx context.Context, studentID string, key models.MaxScoreKey) (bool, error) {
	k := gradeItemKey{studentID: studentID, key: key}
	if _, ok := m.items[k]; !ok {
		return false, nil
	}
	delete(m.items, k)
	return true, nil
}

func (m *mockGradeItemRepo) FindMaxScore(ctx context.Context, key models.MaxScoreKey) (*models.ItemMaxScore, error) {
	if stored, ok := m.maxScores[key]; ok {
		return &stored, nil
	}
	return nil, sql.ErrNoRows
}

type mockMaxScoreRepo struct {
	stored       []models.ItemMaxScore
	result       *models.RescaleResult
	err          error
	lastKey      models.MaxScoreKey
	lastFallback *float64
}

func (m *mockMaxScoreRepo) ListMaxScores(ctx context.Context, scheduleID string) ([]models.ItemMaxScore, error) {
	return m.stored, nil
}

func (m *mockMaxScoreRepo) Rescale(ctx context.Context, key models.MaxScoreKey, newMax float64, fallback *float64, actor string) (*models.RescaleResult, error) {
	m.lastKey = key
	m.lastFallback = fallback
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type attendanceKey struct {
	studentID string
	key       models.SessionKey
}

// mockAttendanceRepo keeps one record per key and stamps strictly increasing
// update times so override precedence is deterministic.
type mockAttendanceRepo struct {
	mu       sync.Mutex
	records  map[attendanceKey]models.AttendanceRecord
	clock    time.Time
	failWeek map[int]bool
	upserts  int
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{records: make(map[attendanceKey]models.AttendanceRecord), clock: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
}

func (m *mockAttendanceRepo) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWeek[record.Week] {
		return errors.New("connection reset")
	}
	m.upserts++
	m.clock = m.clock.Add(time.Second)
	record.UpdatedAt = m.clock
	m.records[attendanceKey{studentID: record.StudentID, key: record.Key()}] = *record
	return nil
}

func (m *mockAttendanceRepo) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error {
	for i := range records {
		if err := m.Upsert(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockAttendanceRepo) ListByKey(ctx context.Context, key models.SessionKey) ([]models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AttendanceRecord
	for k, r := range m.records {
		if k.key == key {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) ListByStudent(ctx context.Context, scheduleID, studentID string) ([]models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AttendanceRecord
	for k, r := range m.records {
		if k.studentID == studentID && k.key.ScheduleID == scheduleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) ListOverrides(ctx context.Context, scheduleID string) (map[string]models.AttendanceStatus, error) {
	m.mu.Lock()
	byStudent := make(map[string][]models.AttendanceRecord)
	for k, r := range m.records {
		if k.key.ScheduleID == scheduleID {
			byStudent[k.studentID] = append(byStudent[k.studentID], r)
		}
	}
	m.mu.Unlock()

	out := make(map[string]models.AttendanceStatus)
	for studentID, records := range byStudent {
		if status := attendance.ActiveOverride(records); status != nil {
			out[studentID] = *status
		}
	}
	return out, nil
}

func (m *mockAttendanceRepo) DeleteByStatus(ctx context.Context, scheduleID, studentID string, status models.AttendanceStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for k, r := range m.records {
		if k.studentID == studentID && k.key.ScheduleID == scheduleID && r.Status == status {
			delete(m.records, k)
			removed++
		}
	}
	return removed, nil
}

func (m *mockAttendanceRepo) DeleteAtKey(ctx context.Context, key models.SessionKey, studentID string, status models.AttendanceStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := attendanceKey{studentID: studentID, key: key}
	if r, ok := m.records[k]; ok && r.Status == status {
		delete(m.records, k)
		return true, nil
	}
	return false, nil
}

func (m *mockAttendanceRepo) statusAt(studentID string, key models.SessionKey) models.AttendanceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[attendanceKey{studentID: studentID, key: key}].Status
}

// mockCancellationRepo writes through to the attendance mock so cancel and
// restore behave like the transactional repository.
type mockCancellationRepo struct {
	rows    map[models.SessionKey]*models.SessionCancellation
	records *mockAttendanceRepo
}

func newMockCancellationRepo(records *mockAttendanceRepo) *mockCancellationRepo {
	return &mockCancellationRepo{rows: make(map[models.SessionKey]*models.SessionCancellation), records: records}
}

func (m *mockCancellationRepo) Find(ctx context.Context, key models.SessionKey) (*models.SessionCancellation, error) {
	if row, ok := m.rows[key]; ok {
		return row, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCancellationRepo) ListBySchedule(ctx context.Context, scheduleID string) ([]models.SessionCancellation, error) {
	var out []models.SessionCancellation
	for key, row := range m.rows {
		if key.ScheduleID == scheduleID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *mockCancellationRepo) Cancel(ctx context.Context, cancellation *models.SessionCancellation, studentIDs []string) error {
	key := models.SessionKey{ScheduleID: cancellation.ScheduleID, SessionType: cancellation.SessionType, Week: cancellation.Week}
	if _, exists := m.rows[key]; exists {
		return repository.ErrCancellationExists
	}
	cancellation.CancelledAt = time.Now()
	m.rows[key] = cancellation
	reason := cancellation.Reason
	for _, studentID := range studentIDs {
		record := &models.AttendanceRecord{StudentID: studentID, ScheduleID: key.ScheduleID, SessionType: key.SessionType, Week: key.Week, Status: models.AttendanceStatusCancelled, Remarks: &reason, RecordedBy: cancellation.CancelledBy}
		if err := m.records.Upsert(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockCancellationRepo) Restore(ctx context.Context, key models.SessionKey, studentIDs []string) (int64, error) {
	if _, exists := m.rows[key]; !exists {
		return 0, repository.ErrCancellationMissing
	}
	delete(m.rows, key)
	var restored int64
	for _, studentID := range studentIDs {
		removed, err := m.records.DeleteAtKey(ctx, key, studentID, models.AttendanceStatusCancelled)
		if err != nil {
			return 0, err
		}
		if removed {
			restored++
		}
	}
	return restored, nil
}

type mockCacheRepo struct {
	entries map[string][]byte
	getErr  error
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{entries: make(map[string][]byte)}
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *mockCacheRepo) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *mockCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}
