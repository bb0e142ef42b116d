package httpadapter

import (
	"net/http"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrMeetingNotFound),
		domain.IsKind(err, domain.ErrChunkNotFound),
		domain.IsKind(err, domain.ErrMinutesNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
