package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// BodySizeLimit caps request bodies at maxSize, a size string such as
// "50MB", "512KB" or "1048576". Inline audio blobs make the default large.
func BodySizeLimit(maxSize string) (Middleware, error) {
	limit, err := ParseSize(maxSize)
	if err != nil {
		return nil, err
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}, nil
}

// ParseSize parses a byte count with an optional KB, MB or GB suffix
// (powers of 1024).
func ParseSize(s string) (int64, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		factor int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(v, unit.suffix) {
			multiplier = unit.factor
			v = strings.TrimSpace(strings.TrimSuffix(v, unit.suffix))
			break
		}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * multiplier, nil
}
