package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uec-api/internal/models"
	"github.com/noah-isme/uec-api/internal/service"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
	"github.com/noah-isme/uec-api/pkg/response"
)

// EnrollmentHandler exposes enrollment endpoints.
type EnrollmentHandler struct {
	enrollments *service.EnrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// Enroll godoc
// @Summary Enroll into a schedule
// @Description Enrolls the authenticated student into the schedule when the window is open, the section has room and the student holds no other enrollment this semester
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body object{schedule_id=string} true "Schedule to enroll into"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		ScheduleID string `json:"schedule_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "schedule_id required"))
		return
	}

	enrollment, err := h.enrollments.Enroll(c.Request.Context(), claims.UserID, payload.ScheduleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, enrollment)
}

// History godoc
// @Summary Enrollment history for the authenticated student
// @Tags Enrollments
// @Produce json
// @Param semester query string false "Filter by semester"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments/history [get]
func (h *EnrollmentHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := historyFilter(c)
	enrollments, pagination, err := h.enrollments.History(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param student query string false "Filter by student"
// @Param schedule query string false "Filter by schedule"
// @Param semester query string false "Filter by semester"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	filter := historyFilter(c)
	filter.StudentID = c.Query("student")
	filter.ScheduleID = c.Query("schedule")

	enrollments, pagination, err := h.enrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Unenroll godoc
// @Summary Drop an enrollment
// @Description Removes the student's own, not yet completed enrollment while the window is open
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Unenroll(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.enrollments.Unenroll(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SetAttendance godoc
// @Summary Record attendance
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body object{attended=bool} true "Attendance flag"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/attendance [patch]
func (h *EnrollmentHandler) SetAttendance(c *gin.Context) {
	var payload struct {
		Attended *bool `json:"attended" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "attended required"))
		return
	}
	enrollment, err := h.enrollments.SetAttendance(c.Request.Context(), c.Param("id"), *payload.Attended)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// SetCompleted godoc
// @Summary Mark an enrollment as completed
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body object{completed=bool} true "Completion flag"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/complete [patch]
func (h *EnrollmentHandler) SetCompleted(c *gin.Context) {
	var payload struct {
		Completed *bool `json:"completed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "completed required"))
		return
	}
	enrollment, err := h.enrollments.SetCompleted(c.Request.Context(), c.Param("id"), *payload.Completed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

func historyFilter(c *gin.Context) models.EnrollmentFilter {
	var filter models.EnrollmentFilter
	filter.SemesterID = c.Query("semester")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}
