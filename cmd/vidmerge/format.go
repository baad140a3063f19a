package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

func formatBytes(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	return fmt.Sprintf("%dd", days)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
