// Package report renders a compsize.Stat as the summary line and usage table
// printed by the command.
package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

const units = "KMGTPE"

const (
	levelBytes = -1
	levelHuman = 0
)

// Scale formats byte counts: human readable (the default), as raw bytes, or
// in one fixed unit. Metric selects powers of 1000 instead of 1024.
type Scale struct {
	Metric bool
	level  int
}

// NewScale builds the scale for the --bytes, --metric and --unit options.
// unit is one of K M G T P E, or empty.
func NewScale(bytes, metric bool, unit string) (Scale, error) {
	s := Scale{Metric: metric}
	switch {
	case bytes && unit != "":
		return s, fmt.Errorf("bytes and unit %q are mutually exclusive", unit)
	case bytes:
		s.level = levelBytes
	case unit != "":
		i := strings.Index(units, strings.ToUpper(unit))
		if len(unit) != 1 || i < 0 {
			return s, fmt.Errorf("invalid unit %q, want one of K M G T P E", unit)
		}
		s.level = i + 1
	}
	return s, nil
}

func (s Scale) base() float64 {
	if s.Metric {
		return 1000
	}
	return 1024
}

func (s Scale) Format(n uint64) string {
	switch s.level {
	case levelBytes:
		return fmt.Sprintf("%dB", n)
	case levelHuman:
		if s.Metric {
			return humanize.Bytes(n)
		}
		return humanize.IBytes(n)
	}
	v := float64(n)
	for i := 0; i < s.level; i++ {
		v /= s.base()
	}
	suffix := "iB"
	if s.Metric {
		suffix = "B"
	}
	return fmt.Sprintf("%.1f %c%s", v, units[s.level-1], suffix)
}
