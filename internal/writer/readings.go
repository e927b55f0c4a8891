// internal/writer/readings.go
package writer

import (
	"github.com/tamzrod/tenma-bridge/internal/poller"
	"github.com/tamzrod/tenma-bridge/internal/state"
	"github.com/tamzrod/tenma-bridge/internal/status"
)

// ReadingsFrom scales a cycle result into export registers.
func ReadingsFrom(res poller.PollResult) status.Readings {
	s := res.State
	r := status.Readings{
		OnDurationMs: res.OnDurationMs,
		Identity:     res.Identity,
	}

	// The status byte sets every flag field at once.
	if out, ok := s.OutputEnabled.Get(); ok {
		r.FlagsValid = true
		r.Flags = status.Flags{
			Channel1Mode: s.Channel1Mode.Value,
			Channel2Mode: s.Channel2Mode.Value,
			Tracking:     s.Tracking.Value,
			Beep:         s.BeepEnabled.Value,
			Lock:         s.LockEnabled.Value,
			Output:       out,
		}
	}

	for ch := 1; ch <= state.Channels; ch++ {
		base := (ch - 1) * status.ValuesPerChannel
		r.Values[base+0] = status.EncodeCurrent(s.CurrentSetting.Channel(ch).Get())
		r.Values[base+1] = status.EncodeVoltage(s.VoltageSetting.Channel(ch).Get())
		r.Values[base+2] = status.EncodeCurrent(s.CurrentOutput.Channel(ch).Get())
		r.Values[base+3] = status.EncodeVoltage(s.VoltageOutput.Channel(ch).Get())
	}
	return r
}
