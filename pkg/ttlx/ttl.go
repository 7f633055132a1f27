// Package ttlx parses document time-to-live values and periodically sweeps
// expired documents out of a set of collections.
package ttlx

import (
	"errors"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidTTL is returned when a TTL value is neither a number nor a
// recognized ⟨number⟩⟨unit⟩ string.
var ErrInvalidTTL = errors.New("ttlx: invalid TTL format")

var durationPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(ms|s|m|h|d)$`)

var unitMultiplier = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
}

// Parse converts a TTL value into a duration. Accepted forms are a plain
// number of milliseconds (int64, float64, or a numeric string) or a string
// matching ⟨number⟩⟨unit⟩ with unit in {ms, s, m, h, d}.
func Parse(v any) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case int:
		return time.Duration(val) * time.Millisecond, nil
	case int64:
		return time.Duration(val) * time.Millisecond, nil
	case float64:
		return time.Duration(val) * time.Millisecond, nil
	case string:
		return parseString(val)
	default:
		return 0, ErrInvalidTTL
	}
}

func parseString(s string) (time.Duration, error) {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n) * time.Millisecond, nil
	}
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, ErrInvalidTTL
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, ErrInvalidTTL
	}
	return time.Duration(n * float64(unitMultiplier[m[2]])), nil
}

// ExpiresAt returns the absolute expiration instant for a TTL applied at
// insertTime, plus the original string form for observability (mirroring
// the _ttl_duration metadata convention).
func ExpiresAt(v any, insertTime time.Time) (expiresAt time.Time, original string, err error) {
	d, err := Parse(v)
	if err != nil {
		return time.Time{}, "", err
	}
	original, _ = v.(string)
	if original == "" {
		original = d.String()
	}
	return insertTime.Add(d), original, nil
}
