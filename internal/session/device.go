package session

import "strings"

// DeviceInfo derives a compact device summary from a raw user-agent string.
// It is deliberately coarse: enough to recognize "same device" in a session
// list, nothing that requires a parser dependency.
func DeviceInfo(userAgent string) string {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		return "unknown"
	}

	platform := "desktop"
	switch {
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		platform = "ios"
	case strings.Contains(ua, "android"):
		platform = "android"
	case strings.Contains(ua, "mobile"):
		platform = "mobile"
	case strings.Contains(ua, "bot") || strings.Contains(ua, "curl") || strings.Contains(ua, "python"):
		platform = "bot"
	}

	browser := "other"
	switch {
	case strings.Contains(ua, "edg/"):
		browser = "edge"
	case strings.Contains(ua, "chrome/"):
		browser = "chrome"
	case strings.Contains(ua, "firefox/"):
		browser = "firefox"
	case strings.Contains(ua, "safari/"):
		browser = "safari"
	}

	return platform + "/" + browser
}
