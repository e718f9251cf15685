package kafka

import "strings"

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
	"network is unreachable",
	"broker not available",
	"leader not available",
	"connection closed",
	"dial tcp",
}

var transientPatterns = []string{
	"temporary",
	"request timed out",
	"not enough replicas",
}

// IsConnectionError reports whether err looks like a broker connectivity
// failure.
func IsConnectionError(err error) bool {
	return err != nil && containsAny(err.Error(), connectionPatterns)
}

// IsRetryableError reports whether a failed write is worth another attempt.
// Oversized messages and unknown topics fail the same way every time.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return IsConnectionError(err) || containsAny(err.Error(), transientPatterns)
}

func containsAny(s string, patterns []string) bool {
	s = strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
