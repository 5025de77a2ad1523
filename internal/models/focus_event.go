package models

import "time"

// FocusEvent is one normalized window-focus notification. It lives for a
// single pipeline pass and is never persisted.
type FocusEvent struct {
	WindowClass string
	Title       string
	WindowID    string // compositor window address, when the backend reports one
	ObservedAt  time.Time
}

// Empty reports whether the event carries no focused window, e.g. after the
// last window on a workspace closes.
func (e FocusEvent) Empty() bool {
	return e.WindowClass == ""
}
