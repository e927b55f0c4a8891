// internal/poller/types.go
package poller

import (
	"time"

	"github.com/tamzrod/tenma-bridge/internal/state"
	"github.com/tamzrod/tenma-bridge/internal/status"
)

// Client abstracts the driver operations the cycle needs.
// Each read updates the mirror field it owns before returning.
type Client interface {
	ReadCurrentSetting(ch int) (string, error)
	ReadVoltageSetting(ch int) (string, error)
	ReadOutputCurrent(ch int) (string, error)
	ReadOutputVoltage(ch int) (string, error)
	ReadStatus() (status.Flags, error)

	Snapshot() state.DeviceState
	Identity() string
}

// PollResult is a snapshot produced by one maintenance cycle.
type PollResult struct {
	At   time.Time
	Took time.Duration

	// Captures is the number of requests the cycle issued.
	Captures int

	Identity     string
	State        state.DeviceState
	OnDurationMs int64

	// Errs holds one entry per skipped step; Err joins them.
	// A skipped step leaves its mirror field at the previous value.
	Errs []error
	Err  error
}

// OutputEnabled reports the output flag; unset counts as off.
func (r PollResult) OutputEnabled() bool {
	on, ok := r.State.OutputEnabled.Get()
	return ok && on
}
