package api

import (
	"errors"
	"net/http"

	"github.com/Aleph-Alpha/gravity/internal/reconciler"
	"github.com/Aleph-Alpha/gravity/internal/store"
	"github.com/Aleph-Alpha/gravity/v1/breaker"
	"github.com/Aleph-Alpha/gravity/v1/embedding"
	"github.com/Aleph-Alpha/gravity/v1/minio"
	"github.com/Aleph-Alpha/gravity/v1/postgres"
	"github.com/gin-gonic/gin"
)

// APIError is the body of every error response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

func abort(c *gin.Context, status int, code string, err error) {
	respondError(c, status, code, err)
	c.Abort()
}

// fail maps domain errors to a status and code. Unknown errors are logged
// and hidden behind a 500.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reconciler.ErrNotFound), errors.Is(err, postgres.ErrRecordNotFound),
		errors.Is(err, minio.ErrObjectNotFound):
		respondError(c, http.StatusNotFound, "not_found", err)
	case errors.Is(err, store.ErrClusterNameTaken):
		respondError(c, http.StatusConflict, "name_taken", err)
	case errors.Is(err, minio.ErrObjectTooLarge):
		respondError(c, http.StatusRequestEntityTooLarge, "too_large", err)
	case errors.Is(err, postgres.ErrInvalidData), embedding.IsPermanent(err):
		respondError(c, http.StatusUnprocessableEntity, "invalid", err)
	case errors.Is(err, breaker.ErrOpen), embedding.IsTransient(err):
		respondError(c, http.StatusServiceUnavailable, "unavailable", err)
	default:
		s.logger.ErrorWithContext(c.Request.Context(), "Request failed", err, map[string]interface{}{
			"path": c.FullPath(),
		})
		respondError(c, http.StatusInternalServerError, "internal", errors.New("internal error"))
	}
}
