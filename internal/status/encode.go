// internal/status/encode.go
package status

import (
	"math"
	"strconv"
	"strings"
)

// Encode converts a snapshot and readings into a full export block.
// Layout is locked. No IO. No side effects.
func Encode(s Snapshot, r Readings) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	copy(regs, EncodeDynamic(s, r))

	// Slots 14-15 are RESERVED and left as zero.

	name := EncodeIdentity(r.Identity)
	copy(regs[SlotIdentityStart:], name)

	return regs
}

// EncodeDynamic returns slots 0..SlotDynamicEnd, the part that changes per cycle.
func EncodeDynamic(s Snapshot, r Readings) []uint16 {
	regs := make([]uint16, SlotDynamicEnd+1)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError

	if r.FlagsValid {
		regs[SlotFlags] = FlagsValidBit | uint16(r.Flags.Byte())
	}

	ms := r.OnDurationMs
	if ms < 0 {
		ms = 0
	}
	if ms > math.MaxUint32 {
		ms = math.MaxUint32
	}
	regs[SlotOnDurationHi] = uint16(uint32(ms) >> 16)
	regs[SlotOnDurationLo] = uint16(uint32(ms))

	copy(regs[SlotValuesStart:], r.Values[:])
	return regs
}

// EncodeCurrent converts a current reading ("1.234", amps) to mA.
func EncodeCurrent(v string, ok bool) uint16 {
	return scaled(v, ok, 1000)
}

// EncodeVoltage converts a voltage reading ("05.00", volts) to 10 mV units.
func EncodeVoltage(v string, ok bool) uint16 {
	return scaled(v, ok, 100)
}

func scaled(v string, ok bool, factor float64) uint16 {
	if !ok {
		return RegUnset
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 || math.IsNaN(f) {
		return RegUnset
	}
	n := math.Round(f * factor)
	if n > float64(RegMax) {
		return RegMax
	}
	return uint16(n)
}

// EncodeIdentity packs up to IdentityMaxChars ASCII characters into
// SlotIdentitySlots registers, two bytes per register, big-endian.
func EncodeIdentity(name string) []uint16 {
	out := make([]uint16, SlotIdentitySlots)

	b := []byte(strings.TrimSpace(name))
	if len(b) > IdentityMaxChars {
		b = b[:IdentityMaxChars]
	}

	// sanitize to printable ASCII
	for i := 0; i < len(b); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}

	for i := 0; i < IdentityMaxChars; i += 2 {
		var hi, lo byte
		if i < len(b) {
			hi = b[i]
		}
		if i+1 < len(b) {
			lo = b[i+1]
		}
		out[i/2] = uint16(hi)<<8 | uint16(lo)
	}

	return out
}
