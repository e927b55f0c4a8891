// internal/status/snapshot.go
package status

// Snapshot is the device health the exporters are allowed to deliver.
// It contains no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
}

// Readings is the supply state carried in the export block,
// already scaled to registers.
type Readings struct {
	FlagsValid   bool
	Flags        Flags
	OnDurationMs int64

	// Values in slot order: ch1 Iset, Vset, Iout, Vout, ch2 Iset, Vset, Iout, Vout.
	Values [2 * ValuesPerChannel]uint16

	Identity string
}
