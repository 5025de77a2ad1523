package focus

import "os"

// Backend names accepted in configuration.
const (
	BackendAuto     = "auto"
	BackendHyprland = "hyprland"
	BackendX11      = "x11"
)

// DetectDisplayServer reports "wayland", "x11" or "unknown" from the
// session environment.
func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
