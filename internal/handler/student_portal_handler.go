package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/middleware"
	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/repository"
	"github.com/stemsi/exstem-ems/internal/response"
	"github.com/stemsi/exstem-ems/internal/service"
	"github.com/stemsi/exstem-ems/internal/validator"
)

// StudentPortalHandler handles the student-facing exam endpoints.
type StudentPortalHandler struct {
	examService    *service.ExamService
	sessionService *service.ExamSessionService
	resultService  *service.ResultService
	log            zerolog.Logger
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	examService *service.ExamService,
	sessionService *service.ExamSessionService,
	resultService *service.ResultService,
	log zerolog.Logger,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		examService:    examService,
		sessionService: sessionService,
		resultService:  resultService,
		log:            log.With().Str("component", "student_portal_handler").Logger(),
	}
}

// ListExams godoc
// GET /api/v1/student/exams?search=
func (h *StudentPortalHandler) ListExams(c *gin.Context) {
	exams := h.examService.List(c.Request.Context(), c.Query("search"))
	page, perPage := pageParams(c)
	items, pagination := response.Paginate(exams, page, perPage)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"exams": items}, pagination)
}

// GetExam godoc
// GET /api/v1/student/exams/:id
// Returns the exam summary. Questions are only sent once an attempt starts.
func (h *StudentPortalHandler) GetExam(c *gin.Context) {
	summary, err := h.examService.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"exam": summary})
}

// StartAttempt godoc
// POST /api/v1/student/exams/:id/attempt
// Starts an attempt, or returns the one already running.
func (h *StudentPortalHandler) StartAttempt(c *gin.Context) {
	view, err := h.sessionService.Start(c.Request.Context(), middleware.GetPrincipal(c), c.Param("id"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": view})
}

// GetAttempt godoc
// GET /api/v1/student/attempt
func (h *StudentPortalHandler) GetAttempt(c *gin.Context) {
	view, err := h.sessionService.Get(middleware.GetPrincipal(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": view})
}

// Answer godoc
// PUT /api/v1/student/attempt/answer
func (h *StudentPortalHandler) Answer(c *gin.Context) {
	var req model.AnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.Answer(middleware.GetPrincipal(c), req.Position, *req.Option)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": view})
}

// MoveCursor godoc
// PUT /api/v1/student/attempt/cursor
func (h *StudentPortalHandler) MoveCursor(c *gin.Context) {
	var req model.CursorRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	view, err := h.sessionService.GoTo(middleware.GetPrincipal(c), *req.Position)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempt": view})
}

// Submit godoc
// POST /api/v1/student/attempt/submit
// Grades and stores the running attempt.
func (h *StudentPortalHandler) Submit(c *gin.Context) {
	result, err := h.sessionService.Submit(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"result": result})
}

// MyResults godoc
// GET /api/v1/student/results
func (h *StudentPortalHandler) MyResults(c *gin.Context) {
	rows := h.resultService.ByStudent(c.Request.Context(), middleware.GetPrincipal(c).Username)
	page, perPage := pageParams(c)
	items, pagination := response.Paginate(rows, page, perPage)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": items}, pagination)
}

// MyResultDetail godoc
// GET /api/v1/student/results/:seq
// Reviews one of the student's own results question by question.
func (h *StudentPortalHandler) MyResultDetail(c *gin.Context) {
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	ctx := c.Request.Context()
	row, err := h.resultService.Row(ctx, seq)
	if err == nil && row.StudentUsername != middleware.GetPrincipal(c).Username {
		err = repository.ErrNotFound
	}
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
