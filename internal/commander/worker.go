package commander

import "sync"

// Worker offloads long operations (calibration, parameter save/load) from
// the Commander tick: the operation runs on its own
// goroutine, and the loop polls TakeResult non-blocking each tick. At most
// one operation runs at a time; the calibration command gate in mavcmd uses
// Busy to reject overlapping requests.
type Worker struct {
	mu        sync.Mutex
	busy      bool
	name      string
	result    error
	hasResult bool
}

// NewWorker returns an idle worker.
func NewWorker() *Worker {
	return &Worker{}
}

// Start launches op under the given name. It reports false, without
// launching anything, while a previous operation is still running.
func (w *Worker) Start(name string, op func() error) bool {
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return false
	}
	w.busy = true
	w.name = name
	w.hasResult = false
	w.mu.Unlock()

	go func() {
		err := op()
		w.mu.Lock()
		w.busy = false
		w.result = err
		w.hasResult = true
		w.mu.Unlock()
	}()
	return true
}

// Busy reports whether an operation is currently running.
func (w *Worker) Busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// HasResult reports whether a finished operation's result is waiting to be
// taken.
func (w *Worker) HasResult() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasResult
}

// TakeResult returns and clears the pending result. ok is false when no
// result is waiting.
func (w *Worker) TakeResult() (name string, err error, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.hasResult {
		return "", nil, false
	}
	w.hasResult = false
	return w.name, w.result, true
}
