package focus

import "testing"

func TestSplitEventLine(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		wantName    string
		wantPayload string
		wantOK      bool
	}{
		{
			name:        "simple event",
			line:        "activewindow>>kitty,shell",
			wantName:    "activewindow",
			wantPayload: "kitty,shell",
			wantOK:      true,
		},
		{
			name:        "payload keeps later separators",
			line:        "activewindow>>chromium,a >> b >> c",
			wantName:    "activewindow",
			wantPayload: "chromium,a >> b >> c",
			wantOK:      true,
		},
		{
			name:        "empty payload",
			line:        "activewindowv2>>",
			wantName:    "activewindowv2",
			wantPayload: "",
			wantOK:      true,
		},
		{
			name:   "no separator",
			line:   "not a protocol line",
			wantOK: false,
		},
		{
			name:   "empty event name",
			line:   ">>payload",
			wantOK: false,
		},
		{
			name:   "empty line",
			line:   "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, payload, ok := SplitEventLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("SplitEventLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOK)
			}
			if name != tt.wantName || payload != tt.wantPayload {
				t.Errorf("SplitEventLine(%q) = %q, %q, want %q, %q",
					tt.line, name, payload, tt.wantName, tt.wantPayload)
			}
		})
	}
}

func TestDetectDisplayServer(t *testing.T) {
	tests := []struct {
		name    string
		session string
		wayland string
		x11     string
		want    string
	}{
		{"wayland session type", "wayland", "", "", "wayland"},
		{"wayland display only", "", "wayland-1", "", "wayland"},
		{"x11 session type", "x11", "", "", "x11"},
		{"x11 display only", "", "", ":0", "x11"},
		{"wayland wins over DISPLAY", "wayland", "wayland-1", ":0", "wayland"},
		{"nothing set", "", "", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_SESSION_TYPE", tt.session)
			t.Setenv("WAYLAND_DISPLAY", tt.wayland)
			t.Setenv("DISPLAY", tt.x11)

			if got := DetectDisplayServer(); got != tt.want {
				t.Errorf("DetectDisplayServer() = %q, want %q", got, tt.want)
			}
		})
	}
}
