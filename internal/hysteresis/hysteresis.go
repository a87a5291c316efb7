// Package hysteresis implements a parameterised debouncer: a condition
// must hold continuously for a configured interval
// before SetStateAndUpdate reports true. Used for auto-disarm-on-land,
// kill-switch-confirmed-disarm, offboard-available, and
// battery-action-delay.
package hysteresis

import "time"

// Hysteresis debounces a boolean condition against a fixed duration.
type Hysteresis struct {
	interval time.Duration

	state        bool // last reported (debounced) state
	lastCondTrue bool // raw condition on the previous update
	changedAt    time.Time
	haveSample   bool
}

// New creates a Hysteresis with the given confirmation interval. A zero
// interval makes every update immediate, matching PX4's convention that a
// disabled hysteresis parameter means "no debounce".
func New(interval time.Duration) *Hysteresis {
	return &Hysteresis{interval: interval}
}

// SetInterval changes the confirmation interval without resetting state.
func (h *Hysteresis) SetInterval(interval time.Duration) {
	h.interval = interval
}

// SetStateAndUpdate feeds the current raw condition and returns the
// debounced state. The debounced state only flips to true once condition
// has held continuously (no intervening false sample) for at least
// interval; it drops back to the raw value instantly on any false sample,
// so a single falsey tick resets the clock entirely.
func (h *Hysteresis) SetStateAndUpdate(condition bool, now time.Time) bool {
	if !h.haveSample {
		h.haveSample = true
		h.lastCondTrue = condition
		h.changedAt = now
		h.state = condition && h.interval <= 0
		return h.state
	}

	if condition != h.lastCondTrue {
		h.lastCondTrue = condition
		h.changedAt = now
	}

	if !condition {
		h.state = false
		return h.state
	}

	if now.Sub(h.changedAt) >= h.interval {
		h.state = true
	}
	return h.state
}

// State returns the last debounced state without feeding a new sample.
func (h *Hysteresis) State() bool {
	return h.state
}

// Reset clears all history, so the next SetStateAndUpdate call starts the
// confirmation window from scratch.
func (h *Hysteresis) Reset() {
	h.state = false
	h.haveSample = false
	h.lastCondTrue = false
}
