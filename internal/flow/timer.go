package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SimpleTimer implements the Timer interface using Go's standard time package.
type SimpleTimer struct {
	timers map[string]*time.Timer
	mu     sync.Mutex
	nextID int64
}

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	slog.Debug("Creating SimpleTimer")
	return &SimpleTimer{timers: make(map[string]*time.Timer)}
}

// ScheduleAfter schedules a function to run after a delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("nil function")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)

	t.timers[id] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
		fn()
	})
	slog.Debug("SimpleTimer ScheduleAfter", "id", id, "delay", delay)
	return id, nil
}

// Cancel cancels a scheduled function by ID. Unknown ids are ignored.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if tm, ok := t.timers[id]; ok {
		tm.Stop()
		delete(t.timers, id)
		slog.Debug("SimpleTimer Cancel succeeded", "id", id)
	}
	return nil
}

// Pending returns the number of timers that have not fired yet.
func (t *SimpleTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Stop cancels all scheduled timers.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, tm := range t.timers {
		tm.Stop()
		delete(t.timers, id)
	}
	slog.Info("SimpleTimer stopped all timers")
}
