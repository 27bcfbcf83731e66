package progress

import (
	"fmt"
	"strconv"
	"strings"
)

var binaryUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes formats b with binary (IEC) units, e.g. "1.5 KiB" or "256 MiB".
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}

	v := float64(b)
	unit := 0
	for v >= 1024 && unit < len(binaryUnits)-1 {
		v /= 1024
		unit++
	}

	if v < 10 {
		return fmt.Sprintf("%.1f %s", v, binaryUnits[unit])
	}
	return fmt.Sprintf("%.0f %s", v, binaryUnits[unit])
}

// byteSuffixes is ordered so longer suffixes match first.
var byteSuffixes = []struct {
	suffix     string
	multiplier int64
}{
	{"TiB", 1 << 40},
	{"GiB", 1 << 30},
	{"MiB", 1 << 20},
	{"KiB", 1 << 10},
	{"TB", 1e12},
	{"GB", 1e9},
	{"MB", 1e6},
	{"KB", 1e3},
	{"B", 1},
}

// ParseBytes parses a human-readable byte string. IEC suffixes (KiB, MiB,
// GiB, TiB) are binary, SI suffixes (KB, MB, GB, TB) are decimal, and a bare
// number or "B" means bytes.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	multiplier := int64(1)

	for _, u := range byteSuffixes {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			s = strings.TrimSpace(num)
			multiplier = u.multiplier
			break
		}
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte string: %q", s)
	}

	return int64(value * float64(multiplier)), nil
}
