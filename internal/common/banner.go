package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner to stderr: collection/database
// targets and the resolved in-progress-retry-after window, so an operator
// tailing logs can see at a glance which Mongo instance a process is
// wired to.
func PrintBanner(config *Config, logger *Logger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	width := 60
	hr := lineColor + strings.Repeat("═", width) + banner.ColorReset

	fmt.Fprintf(os.Stderr, "\n%s\n", hr)
	fmt.Fprintf(os.Stderr, "%s  hmrc-mongo — work-item queue & lock registry%s\n", textColor, banner.ColorReset)
	fmt.Fprintf(os.Stderr, "%s\n\n", hr)

	kvPad := 22
	kvLines := [][2]string{
		{"Mongo database", config.Mongo.Database},
		{"Queue collection", config.Queue.CollectionName},
		{"Lock collection", config.Lock.CollectionName},
		{"In-progress retry after", fmt.Sprintf("%dms", config.Queue.InProgressRetryAfterMS)},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(os.Stderr, "%s  %-*s %s%s\n", textColor, kvPad, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(os.Stderr, "\n%s\n\n", hr)

	logger.Info().
		Str("database", config.Mongo.Database).
		Str("queue_collection", config.Queue.CollectionName).
		Str("lock_collection", config.Lock.CollectionName).
		Msg("hmrc-mongo demo starting")
}
