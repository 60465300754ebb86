package card

import "fmt"

// formatCountdown renders remaining seconds as MM:SS, or HH:MM:SS when
// seconds precision is enabled.
func formatCountdown(remaining int, showSeconds bool) string {
	if remaining < 0 {
		remaining = 0
	}
	if showSeconds {
		return fmt.Sprintf("%02d:%02d:%02d", remaining/3600, (remaining%3600)/60, remaining%60)
	}
	return fmt.Sprintf("%02d:%02d", remaining/60, remaining%60)
}

// zeroCountdown is the idle display matching the configured precision.
func zeroCountdown(showSeconds bool) string {
	if showSeconds {
		return "00:00:00"
	}
	return "00:00"
}

// formatUsage renders accumulated runtime seconds as HH:MM, or HH:MM:SS
// when seconds precision is enabled. Minutes are floored so the display
// never runs ahead of actual elapsed time.
func formatUsage(seconds float64, showSeconds bool) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	if showSeconds {
		return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
	totalMinutes := total / 60
	return fmt.Sprintf("%02d:%02d", totalMinutes/60, totalMinutes%60)
}
