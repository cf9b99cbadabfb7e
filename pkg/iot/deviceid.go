package iot

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CanonicalDeviceID normalizes a device id coming from a payload or a query
// string. Integer ids are rewritten in plain base 10 ("007" and 7.0 both
// become "7") and their value is returned as well; anything else is kept as
// the trimmed string with a nil number.
func CanonicalDeviceID(raw string) (string, *int64) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10), &n
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil &&
		!math.IsInf(f, 0) && !math.IsNaN(f) &&
		f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		n := int64(f)
		return strconv.FormatInt(n, 10), &n
	}

	return s, nil
}

// ParseDeviceIDRange parses "min-max" into inclusive integer bounds.
func ParseDeviceIDRange(s string) (int64, int64, error) {
	lo, hi, found := strings.Cut(strings.TrimSpace(s), "-")
	if !found {
		return 0, 0, fmt.Errorf("device id range %q is not in min-max form", s)
	}

	lower, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("device id range %q: invalid min: %w", s, err)
	}

	upper, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("device id range %q: invalid max: %w", s, err)
	}

	if lower > upper {
		return 0, 0, fmt.Errorf("device id range %q: min greater than max", s)
	}

	return lower, upper, nil
}
