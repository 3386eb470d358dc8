package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

// AlertHandler exposes threshold alert evaluation.
type AlertHandler struct {
	alerts *service.AlertService
}

// NewAlertHandler constructs AlertHandler.
func NewAlertHandler(alerts *service.AlertService) *AlertHandler {
	return &AlertHandler{alerts: alerts}
}

// Student godoc
// @Summary Evaluate a student's attendance against the thresholds
// @Tags Alerts
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /alerts/students/{id} [get]
func (h *AlertHandler) Student(c *gin.Context) {
	result, err := h.alerts.StudentAlerts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Class godoc
// @Summary Evaluate every member of a class
// @Tags Alerts
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /alerts/classes/{id} [get]
func (h *AlertHandler) Class(c *gin.Context) {
	summary, err := h.alerts.ClassAlerts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Trend godoc
// @Summary Attendance trend of a student
// @Tags Alerts
// @Produce json
// @Param id path string true "Student ID"
// @Param days query int false "Trailing days (default 30, max 365)"
// @Success 200 {object} response.Envelope
// @Router /alerts/students/{id}/trend [get]
func (h *AlertHandler) Trend(c *gin.Context) {
	days, err := queryInt(c, "days")
	if err != nil {
		response.Error(c, err)
		return
	}
	trend, err := h.alerts.Trend(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, trend, nil)
}
