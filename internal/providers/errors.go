package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studyrag/internal/util"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, util.ErrQuotaExhausted):
		return ErrorQuota
	case errors.Is(err, util.ErrRateLimited):
		return ErrorRate
	case errors.Is(err, util.ErrContextTooLong):
		return ErrorContext
	case errors.Is(err, util.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return ErrorTransient
	case errors.Is(err, util.ErrPermanent):
		return ErrorPermanent
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"), strings.Contains(e, "resource_exhausted"):
		return ErrorQuota
	case strings.Contains(e, "rate"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"), strings.Contains(e, " 50"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

// statusError maps an upstream HTTP status onto the shared provider sentinels.
func statusError(provider string, status int, body []byte) error {
	var kind error
	switch {
	case status == 429:
		kind = util.ErrRateLimited
	case status == 408 || status >= 500:
		kind = util.ErrTransient
	default:
		kind = util.ErrPermanent
	}
	return fmt.Errorf("%s error %d: %s: %w", provider, status, util.TruncateRunes(string(body), 300), kind)
}
