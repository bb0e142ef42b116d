package whisper

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

type HTTPStatusError struct {
	StatusCode int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "asr status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("asr status: %s", e.Status)
	}
	return fmt.Sprintf("asr status: %s: %s", e.Status, strings.TrimSpace(e.Body))
}

func (e *HTTPStatusError) isQuota() bool {
	return e.StatusCode == http.StatusTooManyRequests || strings.Contains(e.Body, "insufficient_quota")
}

// classifyASRError never retries quota refusals: the chunk is skipped instead.
func classifyASRError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		if statusErr.isQuota() {
			return resilience.ErrorClassification{
				Retryable:     false,
				RecordFailure: false,
			}
		}
		switch statusErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return resilience.ErrorClassification{
				Retryable:     true,
				RecordFailure: true,
				RetryAfter:    statusErr.RetryAfter,
			}
		default:
			return resilience.ErrorClassification{
				Retryable:     false,
				RecordFailure: false,
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}

	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}

func wrapProviderError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) && statusErr.isQuota() {
		return domain.WrapError(domain.ErrQuotaExceeded, operation, err)
	}
	class := classifyASRError(err)
	if class.Retryable || resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
