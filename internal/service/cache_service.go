package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// GradingConfigCacheKey addresses a resolved grading config.
func GradingConfigCacheKey(classType string) string {
	return "grading-config:" + strings.ToUpper(classType)
}

// ClassRecordCacheKey addresses the class record of a schedule.
func ClassRecordCacheKey(scheduleID string) string {
	return fmt.Sprintf("grades:%s:record", scheduleID)
}

// StudentGradesCacheKey addresses a student's summary within a schedule.
func StudentGradesCacheKey(scheduleID, studentID string) string {
	return fmt.Sprintf("grades:%s:student:%s", scheduleID, studentID)
}

func scheduleGradesPattern(scheduleID string) string {
	return fmt.Sprintf("grades:%s:*", scheduleID)
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool

	// genMu orders grade view writes against invalidations. A schedule's
	// generation is the global counter plus its own counter.
	genMu       sync.Mutex
	globalGen   uint64
	scheduleGen map[string]uint64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled, scheduleGen: make(map[string]uint64)}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was
// hit. Backend failures are logged and reported as a miss so reads fall back
// to the database.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true
}

// Set stores the value in cache. Failures are logged only.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !s.Enabled() {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// ScheduleGeneration returns the invalidation generation of a schedule's
// grade views. Read it before loading the data a view is computed from.
func (s *CacheService) ScheduleGeneration(scheduleID string) uint64 {
	if !s.Enabled() {
		return 0
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.globalGen + s.scheduleGen[scheduleID]
}

// SetScheduleView stores a computed grade view of a schedule unless the
// schedule was invalidated after gen was read. It reports whether the value
// was written.
func (s *CacheService) SetScheduleView(ctx context.Context, scheduleID string, gen uint64, key string, value interface{}) bool {
	if !s.Enabled() {
		return false
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.globalGen+s.scheduleGen[scheduleID] != gen {
		s.logger.Debug("skipping stale cache write", zap.String("key", key))
		return false
	}
	s.Set(ctx, key, value, 0)
	return true
}

// InvalidateGradingConfig drops a cached grading config.
func (s *CacheService) InvalidateGradingConfig(ctx context.Context, classType string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.Delete(ctx, GradingConfigCacheKey(classType)); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("class_type", classType), zap.Error(err))
	}
}

// InvalidateSchedule drops every cached grade view of a schedule.
func (s *CacheService) InvalidateSchedule(ctx context.Context, scheduleID string) {
	if !s.Enabled() {
		return
	}
	s.genMu.Lock()
	s.scheduleGen[scheduleID]++
	s.genMu.Unlock()
	s.invalidatePattern(ctx, scheduleGradesPattern(scheduleID))
}

// InvalidateAllGrades drops every cached grade view, used when a grading
// config edit may affect many schedules.
func (s *CacheService) InvalidateAllGrades(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	s.genMu.Lock()
	s.globalGen++
	s.genMu.Unlock()
	s.invalidatePattern(ctx, "grades:*")
}

func (s *CacheService) invalidatePattern(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
