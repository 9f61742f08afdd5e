// Package device renders User-Agent strings into short human-readable
// summaries for the event feed.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Summarize parses a raw User-Agent header into a "<browser> on <os>"
// display string. It never fails; unparseable input degrades to a
// generic label so the event feed always has something to show.
func Summarize(rawUserAgent string) string {
	if rawUserAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.New(rawUserAgent)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}

	return strings.TrimSpace(browser + " on " + os)
}
