package httpadapter

import (
	"net/http"
	"strings"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNoRelevantContent):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage keeps internal details out of 5xx bodies.
func errorMessage(status int, err error) string {
	switch status {
	case http.StatusBadRequest:
		msg := err.Error()
		if i := strings.LastIndex(msg, ": "); i >= 0 {
			msg = msg[i+2:]
		}
		return msg
	case http.StatusNotFound:
		return "No relevant articles found."
	case http.StatusServiceUnavailable:
		return "Service temporarily unavailable. Please retry shortly."
	default:
		return "Internal server error."
	}
}
