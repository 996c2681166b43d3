package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ems/internal/model"
	"github.com/stemsi/exstem-ems/internal/response"
	"github.com/stemsi/exstem-ems/internal/service"
	"github.com/stemsi/exstem-ems/internal/validator"
)

// StudentManagementHandler handles teacher-facing student management.
type StudentManagementHandler struct {
	userService *service.UserService
	log         zerolog.Logger
}

// NewStudentManagementHandler creates a new StudentManagementHandler.
func NewStudentManagementHandler(userService *service.UserService, log zerolog.Logger) *StudentManagementHandler {
	return &StudentManagementHandler{
		userService: userService,
		log:         log.With().Str("component", "student_mgmt_handler").Logger(),
	}
}

// ListStudents godoc
// GET /api/v1/teacher/students?search=&page=&per_page=
// Lists students, optionally filtered by a username or name substring.
func (h *StudentManagementHandler) ListStudents(c *gin.Context) {
	students := h.userService.ListStudents(c.Request.Context(), c.Query("search"))
	page, perPage := pageParams(c)
	items, pagination := response.Paginate(students, page, perPage)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": items}, pagination)
}

// GetStudent godoc
// GET /api/v1/teacher/students/:username
func (h *StudentManagementHandler) GetStudent(c *gin.Context) {
	student, err := h.userService.GetStudent(c.Request.Context(), c.Param("username"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// CreateStudent godoc
// POST /api/v1/teacher/students
// Creates a new student.
func (h *StudentManagementHandler) CreateStudent(c *gin.Context) {
	var req model.CreateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.userService.CreateStudent(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"student": student})
}

// UpdateStudent godoc
// PUT /api/v1/teacher/students/:username
// Updates a student's full name, and optionally their password.
func (h *StudentManagementHandler) UpdateStudent(c *gin.Context) {
	var req model.UpdateStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	student, err := h.userService.UpdateStudent(c.Request.Context(), c.Param("username"), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"student": student})
}

// DeleteStudent godoc
// DELETE /api/v1/teacher/students/:username
// Deletes a student. Their results are kept.
func (h *StudentManagementHandler) DeleteStudent(c *gin.Context) {
	if err := h.userService.DeleteStudent(c.Request.Context(), c.Param("username")); err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "student deleted"})
}
