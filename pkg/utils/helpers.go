package utils

import (
	"time"
)

// parseDuration safely parses duration string like "5m"
func ParseDuration(d string) time.Duration {
	if d == "" {
		return 30 * time.Minute
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return 30 * time.Minute
	}
	return duration
}
