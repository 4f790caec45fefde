package service

import (
	"time"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Clock returns the current time. Services use UTC throughout.
type Clock func() time.Time

// SystemClock is the wall clock in UTC
func SystemClock() time.Time {
	return time.Now().UTC()
}

func nowOr(clock Clock) Clock {
	if clock == nil {
		return SystemClock
	}
	return clock
}

func int64Ref(v int64) *int64 {
	return &v
}
