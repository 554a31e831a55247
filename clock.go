package main

import "time"

// Timer is a handle to a scheduled callback
type Timer interface {
	Stop() bool
}

// Clock schedules deferred work. Tests substitute a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
