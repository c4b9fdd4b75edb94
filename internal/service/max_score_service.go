package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/class-record-api/internal/grading"
	"github.com/noah-isme/class-record-api/internal/models"
	"github.com/noah-isme/class-record-api/internal/repository"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

type maxScoreRepository interface {
	ListMaxScores(ctx context.Context, scheduleID string) ([]models.ItemMaxScore, error)
	Rescale(ctx context.Context, key models.MaxScoreKey, newMax float64, fallback *float64, actor string) (*models.RescaleResult, error)
}

// UpdateMaxScoreRequest edits the max score of one item column.
type UpdateMaxScoreRequest struct {
	Component  string  `json:"component" validate:"required"`
	ItemNumber int     `json:"item_number" validate:"gte=1"`
	Term       string  `json:"term" validate:"required,term"`
	MaxScore   float64 `json:"max_score" validate:"gte=0,lte=1000"`
}

// MaxScoreService edits per-item max scores and rescales recorded scores.
type MaxScoreService struct {
	schedules scheduleReader
	repo      maxScoreRepository
	configs   gradingConfigResolver
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMaxScoreService constructs the service. cache and metrics may be nil.
func NewMaxScoreService(schedules scheduleReader, repo maxScoreRepository, configs gradingConfigResolver, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *MaxScoreService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaxScoreService{schedules: schedules, repo: repo, configs: configs, cache: cache, metrics: metrics, validator: newValidator(validate), logger: logger}
}

// List returns the stored max scores of a schedule.
func (s *MaxScoreService) List(ctx context.Context, scheduleID string) ([]models.ItemMaxScore, error) {
	if _, _, err := loadScheduleConfig(ctx, s.schedules, s.configs, scheduleID); err != nil {
		return nil, err
	}
	stored, err := s.repo.ListMaxScores(ctx, scheduleID)
	if err != nil {
		return nil, internalError(err, "failed to list max scores")
	}
	return stored, nil
}

// Update sets the max score of one item column. When the previous max is
// known, non-zero and different, every recorded score at that column is
// rescaled proportionally in the same transaction.
func (s *MaxScoreService) Update(ctx context.Context, scheduleID string, req UpdateMaxScoreRequest, actor string) (*models.RescaleResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid max score payload")
	}
	if err := grading.ValidateMaxScore(req.MaxScore); err != nil {
		return nil, validationError(err, err.Error())
	}
	_, config, err := loadScheduleConfig(ctx, s.schedules, s.configs, scheduleID)
	if err != nil {
		return nil, err
	}

	key := models.MaxScoreKey{
		ScheduleID: scheduleID,
		Component:  grading.NormalizeComponent(req.Component),
		ItemNumber: req.ItemNumber,
		Term:       models.Term(strings.ToLower(req.Term)),
	}
	var fallback *float64
	if comp, ok := grading.Lookup(*config, key.Component); ok {
		defaultMax := comp.MaxScore
		fallback = &defaultMax
	}

	result, err := s.repo.Rescale(ctx, key, req.MaxScore, fallback, actor)
	if err != nil {
		if errors.Is(err, repository.ErrNoCurrentMax) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no current max score for item")
		}
		return nil, internalError(err, "failed to update max score")
	}

	s.metrics.RecordMaxScoreUpdate(result.Rescaled, len(result.Changes))
	s.cache.InvalidateSchedule(ctx, scheduleID)
	s.logger.Info("max score updated",
		zap.String("schedule_id", scheduleID),
		zap.String("component", key.Component),
		zap.Int("item_number", key.ItemNumber),
		zap.String("term", string(key.Term)),
		zap.Float64("previous_max", result.PreviousMax),
		zap.Float64("new_max", result.NewMax),
		zap.Int("changed", len(result.Changes)),
		zap.String("actor", actor),
	)
	return result, nil
}
