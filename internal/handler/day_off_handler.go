package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

// DayOffHandler exposes scheduled days off.
type DayOffHandler struct {
	daysOff *service.DayOffService
}

// NewDayOffHandler constructs DayOffHandler.
func NewDayOffHandler(daysOff *service.DayOffService) *DayOffHandler {
	return &DayOffHandler{daysOff: daysOff}
}

// List godoc
// @Summary List days off
// @Tags DaysOff
// @Produce json
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD)"
// @Param classId query string false "Include days off of this class"
// @Success 200 {object} response.Envelope
// @Router /days-off [get]
func (h *DayOffHandler) List(c *gin.Context) {
	days, err := h.daysOff.List(c.Request.Context(), models.DayOffFilter{
		From:    c.Query("from"),
		To:      c.Query("to"),
		ClassID: c.Query("classId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, nil)
}

// Create godoc
// @Summary Schedule a day off
// @Tags DaysOff
// @Accept json
// @Produce json
// @Param payload body dto.DayOffRequest true "Day off"
// @Success 201 {object} response.Envelope
// @Router /days-off [post]
func (h *DayOffHandler) Create(c *gin.Context) {
	var req dto.DayOffRequest
	if !bindJSON(c, &req) {
		return
	}
	day, warnings, err := h.daysOff.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, day, nil, warningsMeta(warnings))
}

// Delete godoc
// @Summary Delete a day off
// @Tags DaysOff
// @Param id path string true "Day off ID"
// @Success 204
// @Router /days-off/{id} [delete]
func (h *DayOffHandler) Delete(c *gin.Context) {
	if err := h.daysOff.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
