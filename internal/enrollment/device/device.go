// Package device summarises the capture device that opened an enrollment
// session. The summary is stored on the committed record for field audits.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// DisplayName renders a user agent as "<browser> on <platform/os>".
func DisplayName(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	platform := ua.OS()
	if p := ua.Platform(); p == "iPhone" || p == "iPad" {
		platform = p
	}
	if platform == "" {
		platform = "Unknown OS"
	}

	name := strings.Join(strings.Fields(browser+" on "+platform), " ")
	if ua.Mobile() {
		name += " (mobile)"
	}
	return name
}
