package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/charliek/logdog/internal/domain"
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// formatWindow renders the active window size
func formatWindow(w domain.Window) string {
	if w.UseTime {
		return fmt.Sprintf("last %d minutes", w.Minutes)
	}
	return fmt.Sprintf("last %d values", w.Count)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
