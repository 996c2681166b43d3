package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/response"
	"github.com/stemsi/exstem-ems/internal/service"
)

// ResultHandler handles teacher-facing result listings.
type ResultHandler struct {
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(resultService *service.ResultService, log zerolog.Logger) *ResultHandler {
	return &ResultHandler{
		resultService: resultService,
		log:           log.With().Str("component", "result_handler").Logger(),
	}
}

// ListResults godoc
// GET /api/v1/teacher/results?exam_id=&student=&page=&per_page=
func (h *ResultHandler) ListResults(c *gin.Context) {
	var f model.ResultFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	rows := h.resultService.Filter(c.Request.Context(), f)
	page, perPage := pageParams(c)
	items, pagination := response.Paginate(rows, page, perPage)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": items}, pagination)
}

// GetResult godoc
// GET /api/v1/teacher/results/:seq
// Reviews one result question by question, answer keys included.
func (h *ResultHandler) GetResult(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	ctx := c.Request.Context()
	row, err := h.resultService.Row(ctx, seq)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	detail, err := h.resultService.Detail(ctx, *row)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": detail})
}

// ExportResults godoc
// GET /api/v1/teacher/results/export?exam_id=&student=
// Streams the filtered results as a CSV attachment.
func (h *ResultHandler) ExportResults(c *gin.Context) {
	var f model.ResultFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	var buf bytes.Buffer
	if _, err := h.resultService.ExportCSV(c.Request.Context(), &buf, f); err != nil {
		fail(c, h.log, err)
		return
	}

	filename := fmt.Sprintf("results_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
