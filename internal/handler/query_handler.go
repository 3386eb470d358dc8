package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/dto"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type questionAnswerer interface {
	Ask(ctx context.Context, req dto.QueryRequest) (*dto.QueryResponse, error)
}

// QueryHandler answers natural-language attendance questions.
type QueryHandler struct {
	queries questionAnswerer
}

// NewQueryHandler constructs QueryHandler.
func NewQueryHandler(queries questionAnswerer) *QueryHandler {
	return &QueryHandler{queries: queries}
}

// Ask godoc
// @Summary Ask a question about attendance
// @Description The question is translated into a report filter by a language model. Answers 503 when no model is configured.
// @Tags Query
// @Accept json
// @Produce json
// @Param payload body dto.QueryRequest true "Question"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /query [post]
func (h *QueryHandler) Ask(c *gin.Context) {
	var req dto.QueryRequest
	if !bindJSON(c, &req) {
		return
	}
	answer, err := h.queries.Ask(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, answer, nil)
}
