package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streamania/backend/internal/apperr"
)

// ErrorResponse sends a standardized error response and logs at caller if needed
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

var errorStatus = []struct {
	err    error
	status int
}{
	{apperr.ErrValidationFailed, http.StatusBadRequest},
	{apperr.ErrInvalidCredentials, http.StatusUnauthorized},
	{apperr.ErrNotAuthenticated, http.StatusUnauthorized},
	{apperr.ErrForbidden, http.StatusForbidden},
	{apperr.ErrBanned, http.StatusForbidden},
	{apperr.ErrMuted, http.StatusForbidden},
	{apperr.ErrNotFound, http.StatusNotFound},
	{apperr.ErrDuplicateUsername, http.StatusConflict},
	{apperr.ErrConflict, http.StatusConflict},
	{apperr.ErrQuizClosed, http.StatusConflict},
	{apperr.ErrInsufficientFunds, http.StatusPaymentRequired},
	{apperr.ErrSlowMode, http.StatusTooManyRequests},
	{apperr.ErrVideoLookupFailed, http.StatusBadGateway},
	{apperr.ErrRemoteWriteFailed, http.StatusInternalServerError},
}

// StatusFor maps an application error to its HTTP status
func StatusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// RespondError writes err with its mapped status. Server errors are logged
// and their details withheld from the client.
func RespondError(c *gin.Context, log *logrus.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
		ErrorResponse(c, status, http.StatusText(status))
		return
	}
	ErrorResponse(c, status, err.Error())
}

// paramID parses a uuid path parameter, answering 400 when it is malformed
func paramID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
