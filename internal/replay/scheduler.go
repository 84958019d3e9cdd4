package replay

import "time"

// Scheduler abstracts delayed execution so playback is testable without
// wall-clock waits. Schedule returns a cancel func; cancelling after the
// task ran is a harmless no-op.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

type timerScheduler struct{}

// NewTimerScheduler returns the wall-clock scheduler used in production.
func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
