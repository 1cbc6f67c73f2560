package scheduler

import "errors"

var (
	// ErrTriggerNotRunning is returned when stopping a trigger that never started
	ErrTriggerNotRunning = errors.New("sync trigger is not running")

	// ErrRunInProgress is returned when a run is requested while another is active
	ErrRunInProgress = errors.New("a sync run is already in progress")
)
