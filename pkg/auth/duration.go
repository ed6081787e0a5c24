package auth

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Day is the unit a bare integer session duration is expressed in
const Day = 24 * time.Hour

var durationUnits = map[string]time.Duration{
	"ms":      time.Millisecond,
	"msec":    time.Millisecond,
	"s":       time.Second,
	"sec":     time.Second,
	"secs":    time.Second,
	"second":  time.Second,
	"seconds": time.Second,
	"m":       time.Minute,
	"min":     time.Minute,
	"mins":    time.Minute,
	"minute":  time.Minute,
	"minutes": time.Minute,
	"h":       time.Hour,
	"hr":      time.Hour,
	"hrs":     time.Hour,
	"hour":    time.Hour,
	"hours":   time.Hour,
	"d":       Day,
	"day":     Day,
	"days":    Day,
	"w":       7 * Day,
	"week":    7 * Day,
	"weeks":   7 * Day,
	"y":       365 * Day,
	"year":    365 * Day,
	"years":   365 * Day,
}

// ParseSessionDuration normalizes a session lifetime setting.
//
// A bare integer means days ("30" is thirty days). Otherwise the value is a
// number followed by a unit ("30d", "12h", "90m", "2 weeks", "1.5h"), or any
// string accepted by time.ParseDuration ("1h30m").
func ParseSessionDuration(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty session duration")
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("session duration must be positive, got %q", raw)
		}
		if n > math.MaxInt64/int64(Day) {
			return 0, fmt.Errorf("session duration %q is out of range", raw)
		}
		return time.Duration(n) * Day, nil
	}

	if d, ok, err := parseUnitDuration(s); ok {
		if err != nil {
			return 0, fmt.Errorf("session duration %q is out of range", raw)
		}
		if d <= 0 {
			return 0, fmt.Errorf("session duration must be positive, got %q", raw)
		}
		return d, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid session duration %q", raw)
	}
	if d <= 0 {
		return 0, fmt.Errorf("session duration must be positive, got %q", raw)
	}
	return d, nil
}

// parseUnitDuration handles "<number><unit>" with an optional space. ok
// reports whether s has that shape; err is set when the value overflows.
func parseUnitDuration(s string) (d time.Duration, ok bool, err error) {
	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.' || (i == 0 && s[i] == '-')) {
		i++
	}
	if i == 0 || i == len(s) {
		return 0, false, nil
	}

	value, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, false, nil
	}
	unit, ok := durationUnits[strings.ToLower(strings.TrimSpace(s[i:]))]
	if !ok {
		return 0, false, nil
	}
	// float64(MaxInt64) rounds up to 2^63, so equality already overflows
	total := value * float64(unit)
	if math.IsInf(total, 0) || math.IsNaN(total) || math.Abs(total) >= math.MaxInt64 {
		return 0, true, fmt.Errorf("duration overflows")
	}
	return time.Duration(total), true, nil
}
