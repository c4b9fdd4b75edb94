package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-record-api/internal/models"
	"github.com/noah-isme/class-record-api/internal/service"
	"github.com/noah-isme/class-record-api/pkg/response"
)

type gradingConfigService interface {
	List(ctx context.Context) ([]models.GradingConfig, error)
	Resolve(ctx context.Context, classType string) (*models.GradingConfig, error)
	Update(ctx context.Context, classType string, req service.UpdateGradingConfigRequest, actor string) (*models.GradingConfig, error)
	Revert(ctx context.Context, classType string, actor string) (*models.GradingConfig, error)
}

// GradingConfigHandler exposes grading config endpoints.
type GradingConfigHandler struct {
	configs gradingConfigService
}

// NewGradingConfigHandler constructs the handler.
func NewGradingConfigHandler(configs gradingConfigService) *GradingConfigHandler {
	return &GradingConfigHandler{configs: configs}
}

// List godoc
// @Summary List resolved grading configs
// @Tags GradingConfigs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grading-configs [get]
func (h *GradingConfigHandler) List(c *gin.Context) {
	configs, err := h.configs.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, configs)
}

// Get godoc
// @Summary Resolve the grading config of a class type
// @Tags GradingConfigs
// @Produce json
// @Param classType path string true "Class type"
// @Success 200 {object} response.Envelope
// @Router /grading-configs/{classType} [get]
func (h *GradingConfigHandler) Get(c *gin.Context) {
	config, err := h.configs.Resolve(c.Request.Context(), c.Param("classType"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, config)
}

// Update godoc
// @Summary Replace the grading config of a class type
// @Tags GradingConfigs
// @Accept json
// @Produce json
// @Param classType path string true "Class type"
// @Param payload body service.UpdateGradingConfigRequest true "Components"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grading-configs/{classType} [put]
func (h *GradingConfigHandler) Update(c *gin.Context) {
	var req service.UpdateGradingConfigRequest
	if !bindJSON(c, &req) {
		return
	}
	config, err := h.configs.Update(c.Request.Context(), c.Param("classType"), req, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, config)
}

// Revert godoc
// @Summary Revert a class type to the built-in grading config
// @Tags GradingConfigs
// @Produce json
// @Param classType path string true "Class type"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grading-configs/{classType} [delete]
func (h *GradingConfigHandler) Revert(c *gin.Context) {
	config, err := h.configs.Revert(c.Request.Context(), c.Param("classType"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, config)
}
