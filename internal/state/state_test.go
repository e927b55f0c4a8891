package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/tenma-bridge/internal/status"
)

func TestMirror_StartsUnset(t *testing.T) {
	s := New().Snapshot()

	_, ok := s.OutputEnabled.Get()
	assert.False(t, ok)
	assert.False(t, s.VoltageSetting.Channel(1).Set)
	assert.False(t, s.Tracking.Set)
}

func TestMirror_FieldLevelUpdates(t *testing.T) {
	m := New()

	require.NoError(t, m.SetVoltageSetting(1, "05.00"))
	require.NoError(t, m.SetCurrentOutput(2, "0.120"))

	s := m.Snapshot()
	assert.Equal(t, Some("05.00"), s.VoltageSetting.Channel(1))
	assert.Equal(t, Some("0.120"), s.CurrentOutput.Channel(2))

	// Other fields are untouched.
	assert.False(t, s.VoltageSetting.Channel(2).Set)
	assert.False(t, s.CurrentSetting.Channel(1).Set)
	assert.False(t, s.OutputEnabled.Set)
}

func TestMirror_StatusDoesNotTouchReadings(t *testing.T) {
	m := New()
	require.NoError(t, m.SetCurrentSetting(1, "1.000"))

	m.ApplyStatus(status.Decode(0x41))

	s := m.Snapshot()
	assert.Equal(t, Some("1.000"), s.CurrentSetting.Channel(1))
	assert.Equal(t, Some(true), s.OutputEnabled)
	assert.Equal(t, Some(status.ModeCV), s.Channel1Mode)
	assert.Equal(t, Some(status.TrackingIndependent), s.Tracking)
}

func TestMirror_RejectsBadChannel(t *testing.T) {
	m := New()
	assert.Error(t, m.SetVoltageSetting(0, "1"))
	assert.Error(t, m.SetVoltageSetting(3, "1"))
}

func TestMirror_SnapshotIsACopy(t *testing.T) {
	m := New()
	require.NoError(t, m.SetVoltageOutput(1, "04.99"))

	snap := m.Snapshot()
	require.NoError(t, m.SetVoltageOutput(1, "05.01"))

	assert.Equal(t, "04.99", snap.VoltageOutput.Channel(1).Value)
}

func TestDeviceState_JSON(t *testing.T) {
	m := New()
	require.NoError(t, m.SetVoltageSetting(1, "05.00"))
	m.ApplyStatus(status.Decode(0x41))

	b, err := json.Marshal(m.Snapshot())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))

	assert.Equal(t, map[string]any{"1": "05.00", "2": nil}, raw["voltageSetting"])
	assert.Equal(t, true, raw["outputEnabled"])
	assert.Equal(t, "C.V.", raw["channel1Mode"])
	assert.Equal(t, "Independent", raw["tracking"])

	var back DeviceState
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, m.Snapshot(), back)
}
