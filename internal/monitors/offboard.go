package monitors

import (
	"time"

	"github.com/flightpath-dev/commander-core/internal/hysteresis"
)

// Offboard debounces the offboard control stream's availability: setpoints
// must stream continuously for the hold interval before OFFBOARD counts as
// available, while a single missed tick drops availability immediately.
type Offboard struct {
	avail *hysteresis.Hysteresis
}

// NewOffboard creates an Offboard monitor with the given hold interval.
func NewOffboard(hold time.Duration) *Offboard {
	return &Offboard{avail: hysteresis.New(hold)}
}

// Update feeds one tick's raw signal-recent flag and returns the debounced
// availability.
func (o *Offboard) Update(signalRecent bool, now time.Time) bool {
	return o.avail.SetStateAndUpdate(signalRecent, now)
}

// Available returns the last debounced state without feeding a sample.
func (o *Offboard) Available() bool {
	return o.avail.State()
}
