// Package utils holds small formatting helpers shared by CLI output.
package utils

import "fmt"

// FormatRoundedUnit renders a duration in seconds as a single rounded
// unit ("45s", "12m", "3h"), the way durations read in status output.
func FormatRoundedUnit(seconds int64) string {
	if seconds < 0 {
		seconds = -seconds
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		return fmt.Sprintf("%dh", seconds/3600)
	}
}
