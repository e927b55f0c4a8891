// Package state holds the local mirror of the supply's state.
//
// Each field is written only by the refresh operation that reads it from
// the device; there is no wholesale overwrite. Consumers get copies.
package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tamzrod/tenma-bridge/internal/status"
)

// Channels is the number of output channels a supply can expose.
const Channels = 2

// Optional is a value that may not have been observed yet.
// It renders as JSON null while unset.
type Optional[T any] struct {
	Value T
	Set   bool
}

// Some returns a set Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// Get returns the value and whether it is set.
func (o Optional[T]) Get() (T, bool) { return o.Value, o.Set }

// MarshalJSON encodes an unset value as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON treats null as unset.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Optional[T]{}
		return nil
	}
	if err := json.Unmarshal(b, &o.Value); err != nil {
		return err
	}
	o.Set = true
	return nil
}

// String renders the value, or "null" when unset.
func (o Optional[T]) String() string {
	if !o.Set {
		return "null"
	}
	return fmt.Sprint(o.Value)
}

// PerChannel holds one decimal-string reading per channel, as echoed by the
// device. JSON keys are the channel numbers.
type PerChannel [Channels]Optional[string]

// Channel returns the reading for channel 1 or 2.
func (p PerChannel) Channel(ch int) Optional[string] {
	if ch < 1 || ch > Channels {
		return Optional[string]{}
	}
	return p[ch-1]
}

// MarshalJSON encodes the channels as an object keyed "1" and "2".
func (p PerChannel) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]Optional[string]{
		"1": p[0],
		"2": p[1],
	})
}

func (p *PerChannel) UnmarshalJSON(b []byte) error {
	var m map[string]Optional[string]
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	p[0] = m["1"]
	p[1] = m["2"]
	return nil
}

// DeviceState is a point-in-time copy of the mirror.
type DeviceState struct {
	CurrentSetting PerChannel `json:"currentSetting"`
	VoltageSetting PerChannel `json:"voltageSetting"`
	CurrentOutput  PerChannel `json:"currentOutput"`
	VoltageOutput  PerChannel `json:"voltageOutput"`

	OutputEnabled Optional[bool]            `json:"outputEnabled"`
	Tracking      Optional[status.Tracking] `json:"tracking"`
	Channel1Mode  Optional[status.Mode]     `json:"channel1Mode"`
	Channel2Mode  Optional[status.Mode]     `json:"channel2Mode"`
	BeepEnabled   Optional[bool]            `json:"beepEnabled"`
	LockEnabled   Optional[bool]            `json:"lockEnabled"`
}

// Mirror is the live state. Writers are the refresh operations run on the
// serializer worker; readers take snapshots from any goroutine.
type Mirror struct {
	mu sync.RWMutex
	s  DeviceState
}

// New returns a mirror with every field unset.
func New() *Mirror {
	return &Mirror{}
}

// Snapshot returns a copy of the current state.
func (m *Mirror) Snapshot() DeviceState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.s
}

func validChannel(ch int) error {
	if ch < 1 || ch > Channels {
		return fmt.Errorf("state: channel %d out of range", ch)
	}
	return nil
}

// SetCurrentSetting is written by the ISETn? refresh.
func (m *Mirror) SetCurrentSetting(ch int, v string) error {
	return m.setChannel(&m.s.CurrentSetting, ch, v)
}

// SetVoltageSetting is written by the VSETn? refresh.
func (m *Mirror) SetVoltageSetting(ch int, v string) error {
	return m.setChannel(&m.s.VoltageSetting, ch, v)
}

// SetCurrentOutput is written by the IOUTn? refresh.
func (m *Mirror) SetCurrentOutput(ch int, v string) error {
	return m.setChannel(&m.s.CurrentOutput, ch, v)
}

// SetVoltageOutput is written by the VOUTn? refresh.
func (m *Mirror) SetVoltageOutput(ch int, v string) error {
	return m.setChannel(&m.s.VoltageOutput, ch, v)
}

func (m *Mirror) setChannel(field *PerChannel, ch int, v string) error {
	if err := validChannel(ch); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	field[ch-1] = Some(v)
	return nil
}

// ApplyStatus is written by the STATUS? refresh. It sets exactly the
// fields the status byte carries.
func (m *Mirror) ApplyStatus(f status.Flags) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.s.Tracking = Some(f.Tracking)
	m.s.Channel1Mode = Some(f.Channel1Mode)
	m.s.Channel2Mode = Some(f.Channel2Mode)
	m.s.BeepEnabled = Some(f.Beep)
	m.s.LockEnabled = Some(f.Lock)
	m.s.OutputEnabled = Some(f.Output)
}
