package core

import "time"

// MetricsRecorder records the outcome of a service operation.
type MetricsRecorder interface {
	Observe(operation string, success bool, duration time.Duration)
}

// NopRecorder discards all observations.
type NopRecorder struct{}

func (NopRecorder) Observe(string, bool, time.Duration) {}
