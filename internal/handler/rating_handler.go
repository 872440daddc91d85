package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uec-api/internal/service"
	appErrors "github.com/noah-isme/uec-api/pkg/errors"
	"github.com/noah-isme/uec-api/pkg/response"
)

// RatingHandler exposes rating endpoints.
type RatingHandler struct {
	ratings *service.RatingService
}

// NewRatingHandler constructs RatingHandler.
func NewRatingHandler(ratings *service.RatingService) *RatingHandler {
	return &RatingHandler{ratings: ratings}
}

// Ratable godoc
// @Summary List completed enrollments awaiting a rating
// @Tags Ratings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ratings/ratable [get]
func (h *RatingHandler) Ratable(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollments, err := h.ratings.Ratable(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, nil)
}

// Submit godoc
// @Summary Submit a rating
// @Description Rates a completed enrollment once. A second submission returns 409
// @Tags Ratings
// @Accept json
// @Produce json
// @Param payload body service.RatingRequest true "Rating payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /ratings [post]
func (h *RatingHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	rating, err := h.ratings.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rating)
}

// ByStudent godoc
// @Summary List the student's submitted ratings
// @Tags Ratings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ratings [get]
func (h *RatingHandler) ByStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	ratings, err := h.ratings.ByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ratings, nil)
}
