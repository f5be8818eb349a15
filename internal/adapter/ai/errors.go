package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/sony/gobreaker/v2"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

var (
	quotaPatterns     = []string{"429", "resource_exhausted", "rate limit", "rate-limit", "quota"}
	safetyPatterns    = []string{"safety", "blocked", "prohibited_content"}
	transientPatterns = []string{"500", "502", "503", "504", "unavailable", "overloaded", "deadline", "timeout", "connection reset"}
)

// IsQuotaError reports whether err is an upstream quota or rate limit failure.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, domain.ErrUpstreamRateLimit) || containsAny(err.Error(), quotaPatterns)
}

// IsSafetyBlock reports whether the upstream refused on content grounds.
func IsSafetyBlock(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, domain.ErrSafetyBlocked) || containsAny(err.Error(), safetyPatterns)
}

// IsTransient reports whether retrying against the same or another model may
// succeed. Quota errors are not transient in this sense.
func IsTransient(err error) bool {
	if err == nil || IsQuotaError(err) {
		return false
	}
	switch {
	case errors.Is(err, domain.ErrUpstreamTransient),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return containsAny(err.Error(), transientPatterns)
}

// outcome labels an attempt result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "breaker_open"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case IsQuotaError(err):
		return "rate_limited"
	case IsSafetyBlock(err):
		return "safety"
	case IsTransient(err):
		return "transient"
	}
	return "error"
}

func containsAny(s string, patterns []string) bool {
	lower := strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
