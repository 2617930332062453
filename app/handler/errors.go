package handler

import (
	"errors"
	"net/http"

	"atelier/internal/model"
	"atelier/pkg/apperrors"
	"atelier/pkg/logger"

	"github.com/gin-gonic/gin"
)

// statusOf maps the error taxonomy onto HTTP status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrAlreadyAssigned),
		errors.Is(err, apperrors.ErrPaymentsAlreadyMade),
		errors.Is(err, apperrors.ErrPhaseMismatch),
		errors.Is(err, apperrors.ErrDuplicatePayment),
		errors.Is(err, apperrors.ErrConcurrentUpdate):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrNoCandidate),
		errors.Is(err, apperrors.ErrCapacityExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrNotProjectParty):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrInvalidArgument),
		errors.Is(err, apperrors.ErrAmountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrAssignmentExpired):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// respondError writes err with its mapped status. Internal errors are logged
// and their details withheld from the caller.
func respondError(c *gin.Context, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), "request failed: %v", err)
		c.JSON(code, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// respondWithProject writes err but still returns the committed resource, used when
// an operation recorded its outcome and reports a domain error at the same time
func respondWithProject(c *gin.Context, err error, body *model.Project) {
	code := statusOf(err)
	if code == http.StatusInternalServerError || body == nil {
		respondError(c, err)
		return
	}
	c.JSON(code, gin.H{"error": err.Error(), "data": body})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
