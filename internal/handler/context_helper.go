package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/class-record-api/internal/middleware"
	"github.com/noah-isme/class-record-api/internal/models"
	appErrors "github.com/noah-isme/class-record-api/pkg/errors"
	"github.com/noah-isme/class-record-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext names the caller on recorded_by style columns.
func actorFromContext(c *gin.Context) string {
	return claimsFromContext(c).Actor()
}

func sessionKeyFromParams(c *gin.Context) (models.SessionKey, error) {
	week, err := strconv.Atoi(c.Param("week"))
	if err != nil {
		return models.SessionKey{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "week must be a number")
	}
	return models.SessionKey{
		ScheduleID:  c.Param("id"),
		SessionType: models.SessionType(strings.ToLower(c.Param("type"))),
		Week:        week,
	}, nil
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}
