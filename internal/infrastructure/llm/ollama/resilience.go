package ollama

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
	"github.com/kirillkom/meeting-minutes/internal/infrastructure/resilience"
)

// HTTPStatusError is a non-2xx answer from the Ollama server or a proxy in front of it.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "ollama status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("ollama %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("ollama %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// rateLimited reports a 429, which Ollama itself never sends but gateways do.
func (e *HTTPStatusError) rateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// classifyChatError retries server-side hiccups such as a model still loading.
// Rate limits, missing models and bad requests go straight back to the caller.
func classifyChatError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.rateLimited() {
			return resilience.ErrorClassification{}
		}
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
				RetryAfter:    statusErr.RetryAfter,
			}
		}
		return resilience.ErrorClassification{}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// wrapChatError maps a failed chat call onto the domain error kinds.
func wrapChatError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.rateLimited():
			return domain.WrapError(domain.ErrQuotaExceeded, operation, err)
		case statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden:
			return domain.WrapError(domain.ErrUnauthorized, operation, err)
		}
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyChatError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
