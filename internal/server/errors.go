package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crimson-sun/apsdiag/internal/model"
	"github.com/crimson-sun/apsdiag/internal/store"
)

var (
	errNoSession      = errors.New("missing session id (X-Session-ID header or session query)")
	errUnknownSession = errors.New("session not found")
	errNoStore        = errors.New("model store not configured")
	errUploadTooLarge = errors.New("upload exceeds size limit")
	errMissingUpload  = errors.New("multipart field \"file\" is required")
)

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrInsufficientFeatures):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrSchema), errors.Is(err, errNoSession),
		errors.Is(err, errMissingUpload), errors.Is(err, store.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrModelNotTrained):
		return http.StatusConflict
	case errors.Is(err, errUnknownSession), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errUploadTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errNoStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
	} else {
		s.logger.Debug("request rejected", "path", c.FullPath(), "status", code, "error", err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
