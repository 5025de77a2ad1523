package x11

import (
	"testing"

	"focusbeat/pkg/focus"
)

func TestClassFromProperty(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{
			name: "instance and class",
			data: []byte("Navigator\x00firefox\x00"),
			want: "firefox",
		},
		{
			name: "instance only",
			data: []byte("kitty\x00"),
			want: "kitty",
		},
		{
			name: "empty class falls back to instance",
			data: []byte("xterm\x00\x00"),
			want: "xterm",
		},
		{
			name: "no terminator",
			data: []byte("mpv"),
			want: "mpv",
		},
		{
			name: "empty property",
			data: nil,
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classFromProperty(tt.data); got != tt.want {
				t.Errorf("classFromProperty(%q) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}

func TestAvailable(t *testing.T) {
	t.Setenv("DISPLAY", ":0")
	if !Available() {
		t.Error("Available() = false with DISPLAY set")
	}

	t.Setenv("DISPLAY", "")
	if Available() {
		t.Error("Available() = true without DISPLAY")
	}
}

func TestSourceInterface(t *testing.T) {
	var _ focus.Source = (*Source)(nil)
}
