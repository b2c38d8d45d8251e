package config

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoDurationPattern = regexp.MustCompile(
	`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`,
)

// ISODuration decodes ISO-8601 durations such as PT10S or P1DT2H30M.
// Plain Go duration strings ("90s") are accepted as well.
type ISODuration time.Duration

func (d ISODuration) Duration() time.Duration {
	return time.Duration(d)
}

func (d ISODuration) String() string {
	return time.Duration(d).String()
}

// EnvDecode implements envconfig.Decoder.
func (d *ISODuration) EnvDecode(val string) error {
	parsed, err := ParseISODuration(val)
	if err != nil {
		return err
	}
	*d = ISODuration(parsed)
	return nil
}

func ParseISODuration(val string) (time.Duration, error) {
	val = strings.ToUpper(strings.TrimSpace(val))
	if val == "" {
		return 0, fmt.Errorf("empty duration")
	}

	if !strings.HasPrefix(val, "P") {
		d, err := time.ParseDuration(strings.ToLower(val))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", val, err)
		}
		return d, nil
	}

	m := isoDurationPattern.FindStringSubmatch(val)
	if m == nil || val == "P" || strings.HasSuffix(val, "T") {
		return 0, fmt.Errorf("invalid ISO-8601 duration %q", val)
	}

	var total time.Duration
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute}
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", val, err)
		}
		if n > math.MaxInt64/int64(unit) {
			return 0, fmt.Errorf("ISO-8601 duration %q is out of range", val)
		}
		if total, err = addDuration(total, time.Duration(n)*unit); err != nil {
			return 0, fmt.Errorf("ISO-8601 duration %q is out of range", val)
		}
	}
	if m[4] != "" {
		secs, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", val, err)
		}
		ns := secs * float64(time.Second)
		if ns >= math.MaxInt64 {
			return 0, fmt.Errorf("ISO-8601 duration %q is out of range", val)
		}
		if total, err = addDuration(total, time.Duration(ns)); err != nil {
			return 0, fmt.Errorf("ISO-8601 duration %q is out of range", val)
		}
	}

	return total, nil
}

var errDurationOverflow = errors.New("duration overflow")

func addDuration(a, b time.Duration) (time.Duration, error) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, errDurationOverflow
	}
	return a + b, nil
}
