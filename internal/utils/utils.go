package utils

import (
	"fmt"
	"time"
)

// FormatBitrate formats a bits-per-second rate for display
func FormatBitrate(bitsPerSecond float64) string {
	const (
		Kbps = 1000.0
		Mbps = Kbps * 1000
	)

	switch {
	case bitsPerSecond >= Mbps:
		return fmt.Sprintf("%.2f Mbps", bitsPerSecond/Mbps)
	case bitsPerSecond >= Kbps:
		return fmt.Sprintf("%.1f kbps", bitsPerSecond/Kbps)
	default:
		return fmt.Sprintf("%.0f bps", bitsPerSecond)
	}
}

// FormatSize formats bytes to human readable string
func FormatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatTimeDuration formats a call duration as "1h 2m 3s", "2m 3s" or "3s"
func FormatTimeDuration(d time.Duration) string {
	seconds := int(d.Seconds()) % 60
	minutes := int(d.Minutes()) % 60
	hours := int(d.Hours())

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
