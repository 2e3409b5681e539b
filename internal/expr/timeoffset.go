package expr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var timeOffsetPattern = regexp.MustCompile(`^([+-]?)(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseTimeOffset parses a time offset string like "+1h30m", "-45m", "+5s",
// or "0" into a signed number of seconds. Mirrors the bounds checking of the
// reference time-offset parser: each component is range-checked individually
// before the combined total is checked against the ±24h ceiling.
func ParseTimeOffset(offsetStr string) (int, error) {
	offsetStr = strings.TrimSpace(offsetStr)
	if offsetStr == "0" || offsetStr == "" {
		return 0, nil
	}

	m := timeOffsetPattern.FindStringSubmatch(offsetStr)
	if m == nil {
		return 0, fmt.Errorf("invalid time offset format: %q; expected format like '+1h30m', '-45m', '+5s', or '0'", offsetStr)
	}

	sign := 1
	if m[1] == "-" {
		sign = -1
	}

	hours := atoiOr0(m[2])
	minutes := atoiOr0(m[3])
	seconds := atoiOr0(m[4])

	if hours > 23 {
		return 0, fmt.Errorf("hour offset too large: %dh; maximum allowed is 23h", hours)
	}
	if minutes > 59 {
		return 0, fmt.Errorf("minute offset too large: %dm; maximum allowed is 59m", minutes)
	}
	if seconds > 59 {
		return 0, fmt.Errorf("second offset too large: %ds; maximum allowed is 59s", seconds)
	}

	total := hours*3600 + minutes*60 + seconds
	if total > 86400 {
		return 0, fmt.Errorf("total time offset too large: %ds; maximum allowed is ±24 hours", total)
	}

	return sign * total, nil
}

func atoiOr0(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// ApplyTimeOffset shifts t by offsetSeconds, which may be negative.
func ApplyTimeOffset(t time.Time, offsetSeconds int) time.Time {
	if offsetSeconds == 0 {
		return t
	}
	return t.Add(time.Duration(offsetSeconds) * time.Second)
}
