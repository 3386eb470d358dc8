package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type attendanceRecorder interface {
	SubmitBatch(ctx context.Context, req dto.AttendanceBatchRequest) (*models.AttendanceBatchResult, error)
	ForStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error)
}

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	attendance attendanceRecorder
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceRecorder) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Submit godoc
// @Summary Record attendance for one date
// @Description Unknown students fail individually. Existing records for the date fail the batch with 409 unless override is true.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.AttendanceBatchRequest true "Attendance batch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Submit(c *gin.Context) {
	var req dto.AttendanceBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.attendance.SubmitBatch(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ForStudent godoc
// @Summary List a student's attendance records
// @Tags Attendance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /attendance/students/{id} [get]
func (h *AttendanceHandler) ForStudent(c *gin.Context) {
	records, err := h.attendance.ForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
