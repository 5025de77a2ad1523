// Package version carries the build identity reported to wakatime-cli
// and printed by the version command.
package version

// Version is overridden via -ldflags at release build time.
var Version = "0.1.0"

// Plugin returns the plugin identifier sent with every heartbeat.
func Plugin() string {
	return "focusbeat/" + Version
}
