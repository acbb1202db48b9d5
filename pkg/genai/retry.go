package genai

import "strings"

// retryableIndicators is the fixed set of error-text fragments that mark a
// failure as transient. Anything else propagates immediately.
var retryableIndicators = []string{
	"rate limit",
	"quota",
	"timeout",
	"429",
	"500",
	"503",
	"server error",
	"unavailable",
	"bad request",
	"internal",
}

// IsRetryable reports whether the error text matches the transient set.
// Rotation and retry are only worth attempting for these; a schema error or
// auth misconfiguration will fail on every credential in the pool.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range retryableIndicators {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
