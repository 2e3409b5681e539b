// Package humanize formats byte counts and durations for logs and the
// CLI status subcommand, grounded on the original implementation's
// human_format module.
package humanize

import (
	"fmt"
	"math"
	"time"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// Bytes formats n bytes with binary (1024-based) units, e.g. "512B",
// "3.20MB", "1.50GB": whole bytes below 1KB, two decimals below 10 of a
// unit, one decimal above that.
func Bytes(n int64) string {
	if n == 0 {
		return "0B"
	}

	sign := ""
	size := float64(n)
	if size < 0 {
		sign = "-"
		size = -size
	}

	unit := 0
	for size >= 1024 && unit < len(byteUnits)-1 {
		size /= 1024
		unit++
	}

	if unit == 0 {
		return fmt.Sprintf("%s%.0f%s", sign, size, byteUnits[unit])
	}
	if size >= 100 {
		return fmt.Sprintf("%s%.1f%s", sign, size, byteUnits[unit])
	}
	if size >= 10 {
		return fmt.Sprintf("%s%.1f%s", sign, size, byteUnits[unit])
	}
	return fmt.Sprintf("%s%.2f%s", sign, size, byteUnits[unit])
}

// Duration formats d in tiers: whole microseconds below a millisecond,
// milliseconds (up to three decimals) below a second, tenths of a second
// below a minute, minutes and whole seconds below an hour, and hours and
// minutes above that (e.g. "500μs", "5ms", "1.5s", "2m5s", "1h30m").
func Duration(d time.Duration) string {
	micros := d.Microseconds()
	if micros == 0 {
		return "0μs"
	}
	if micros < 0 {
		return "-" + Duration(-d)
	}

	if micros < 1000 {
		return fmt.Sprintf("%dμs", micros)
	}
	if micros < 1_000_000 {
		if micros%1000 == 0 {
			return fmt.Sprintf("%dms", micros/1000)
		}
		return fmt.Sprintf("%.3fms", float64(micros)/1000)
	}

	secs := d.Seconds()
	switch {
	case secs < 60:
		return fmt.Sprintf("%.1fs", secs)
	case secs < 3600:
		m := int(secs) / 60
		s := math.Mod(secs, 60)
		return fmt.Sprintf("%dm%.0fs", m, s)
	default:
		h := int(secs) / 3600
		m := (int(secs) % 3600) / 60
		return fmt.Sprintf("%dh%dm", h, m)
	}
}
