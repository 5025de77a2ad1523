package models

import "time"

// Entity is the tracked identity a heartbeat reports time against. It is
// the raw window class, optionally joined with the window title. Two
// entities are the same activity exactly when their strings are equal.
type Entity string

func (e Entity) String() string {
	return string(e)
}

// Heartbeat is a single activity sample handed to the dispatcher and then
// discarded. There is no heartbeat history.
type Heartbeat struct {
	Entity   Entity
	Category Category
	Project  string
	Time     time.Time
}
