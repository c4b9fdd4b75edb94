package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/class-record-api/internal/grading"
	"github.com/noah-isme/class-record-api/internal/models"
	"github.com/noah-isme/class-record-api/internal/repository"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
)

type gradingConfigRepository interface {
	FindByClassType(ctx context.Context, classType string) (*repository.StoredGradingConfig, error)
	Replace(ctx context.Context, classType string, components []models.GradingComponent, actor string) error
	Delete(ctx context.Context, classType string) (int64, error)
}

// GradingComponentRequest is one component of an edited grading config.
type GradingComponentRequest struct {
	Name     string  `json:"name" validate:"required"`
	Weight   float64 `json:"weight" validate:"gte=0,lte=100"`
	Items    int     `json:"items" validate:"gte=1"`
	MaxScore float64 `json:"max_score" validate:"gt=0"`
}

// UpdateGradingConfigRequest replaces the stored components of a class type.
type UpdateGradingConfigRequest struct {
	Components []GradingComponentRequest `json:"components" validate:"required,min=1,dive"`
}

// GradingConfigService resolves, edits and reverts grading configs.
type GradingConfigService struct {
	repo      gradingConfigRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradingConfigService constructs the service. cache and metrics may be nil.
func NewGradingConfigService(repo gradingConfigRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradingConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingConfigService{repo: repo, cache: cache, metrics: metrics, validator: newValidator(validate), logger: logger}
}

// Resolve returns the usable config of a class type: the stored one when it
// survives cleaning, otherwise the built-in default.
func (s *GradingConfigService) Resolve(ctx context.Context, classType string) (*models.GradingConfig, error) {
	classType = grading.NormalizeClassType(classType)
	key := GradingConfigCacheKey(classType)

	var cached models.GradingConfig
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	start := time.Now()
	stored, err := s.repo.FindByClassType(ctx, classType)
	s.metrics.ObserveDBQuery("grading_config_find", time.Since(start))
	if err != nil {
		return nil, internalError(err, "failed to load grading config")
	}

	config := grading.Resolve(classType, stored.Components)
	if config.Source == models.ConfigSourceStored && stored.UpdatedBy != "" {
		updatedBy := stored.UpdatedBy
		updatedAt := stored.UpdatedAt
		config.UpdatedBy = &updatedBy
		config.UpdatedAt = &updatedAt
	}
	s.cache.Set(ctx, key, config, 0)
	return &config, nil
}

// List resolves every catalogued class type.
func (s *GradingConfigService) List(ctx context.Context) ([]models.GradingConfig, error) {
	configs := make([]models.GradingConfig, 0, len(models.ClassTypes))
	for _, classType := range models.ClassTypes {
		config, err := s.Resolve(ctx, classType)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *config)
	}
	return configs, nil
}

// Update replaces the stored components of a class type.
func (s *GradingConfigService) Update(ctx context.Context, classType string, req UpdateGradingConfigRequest, actor string) (*models.GradingConfig, error) {
	if !grading.KnownClassType(classType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown class type")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grading config payload")
	}
	classType = grading.NormalizeClassType(classType)

	components := make([]models.GradingComponent, 0, len(req.Components))
	for _, comp := range req.Components {
		components = append(components, models.GradingComponent{
			Name:     grading.NormalizeComponent(comp.Name),
			Weight:   comp.Weight,
			Items:    comp.Items,
			MaxScore: comp.MaxScore,
		})
	}
	if err := grading.ValidateComponents(components); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidWeights.Code, appErrors.ErrInvalidWeights.Status, err.Error())
	}

	if err := s.repo.Replace(ctx, classType, components, actor); err != nil {
		return nil, internalError(err, "failed to store grading config")
	}
	s.invalidate(ctx, classType)
	s.logger.Info("grading config updated", zap.String("class_type", classType), zap.String("actor", actor), zap.Int("components", len(components)))
	return s.Resolve(ctx, classType)
}

// Revert drops the stored components so the built-in default applies again.
func (s *GradingConfigService) Revert(ctx context.Context, classType string, actor string) (*models.GradingConfig, error) {
	classType = grading.NormalizeClassType(classType)
	removed, err := s.repo.Delete(ctx, classType)
	if err != nil {
		return nil, internalError(err, "failed to revert grading config")
	}
	if removed == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no stored grading config for class type")
	}
	s.invalidate(ctx, classType)
	s.logger.Info("grading config reverted", zap.String("class_type", classType), zap.String("actor", actor))
	return s.Resolve(ctx, classType)
}

func (s *GradingConfigService) invalidate(ctx context.Context, classType string) {
	s.cache.InvalidateGradingConfig(ctx, classType)
	s.cache.InvalidateAllGrades(ctx)
}
