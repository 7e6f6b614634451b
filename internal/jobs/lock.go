package jobs

import (
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned when a job is triggered while a run is in progress.
var ErrAlreadyRunning = errors.New("job is already running")

type jobLock struct {
	mu      sync.Mutex
	running bool
}

func (l *jobLock) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return false
	}
	l.running = true
	return true
}

func (l *jobLock) release() {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
}

// exclusive runs fn unless the named job is already running.
func (r *Runner) exclusive(name string, fn func() error) error {
	l := r.running[name]
	if !l.tryAcquire() {
		return ErrAlreadyRunning
	}
	defer l.release()
	return fn()
}
