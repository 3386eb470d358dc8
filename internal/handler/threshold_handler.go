package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/validation"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type thresholdSettings interface {
	Get(ctx context.Context) (models.ThresholdSet, error)
	Validate(req dto.ThresholdRequest) validation.Result
	Update(ctx context.Context, req dto.ThresholdRequest) (*models.ThresholdSet, []string, error)
}

// ThresholdHandler exposes the alert threshold settings.
type ThresholdHandler struct {
	thresholds thresholdSettings
}

// NewThresholdHandler constructs ThresholdHandler.
func NewThresholdHandler(thresholds thresholdSettings) *ThresholdHandler {
	return &ThresholdHandler{thresholds: thresholds}
}

// Get godoc
// @Summary Current alert thresholds
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings/thresholds [get]
func (h *ThresholdHandler) Get(c *gin.Context) {
	set, err := h.thresholds.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil)
}

// Update godoc
// @Summary Replace the alert thresholds
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.ThresholdRequest true "Thresholds"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /settings/thresholds [put]
func (h *ThresholdHandler) Update(c *gin.Context) {
	var req dto.ThresholdRequest
	if !bindJSON(c, &req) {
		return
	}
	set, warnings, err := h.thresholds.Update(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil, warningsMeta(warnings))
}

// Validate godoc
// @Summary Dry-run threshold validation
// @Description Always answers 200 with the validation result so forms can show field errors.
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.ThresholdRequest true "Thresholds"
// @Success 200 {object} response.Envelope
// @Router /settings/thresholds/validate [post]
func (h *ThresholdHandler) Validate(c *gin.Context) {
	var req dto.ThresholdRequest
	if !bindJSON(c, &req) {
		return
	}
	response.JSON(c, http.StatusOK, h.thresholds.Validate(req), nil)
}
