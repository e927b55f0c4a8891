// internal/status/constants.go
package status

// ---- STATUS BYTE (STATUS? reply) ----
// Bit positions are fixed by the device protocol.

const (
	BitChannel1CV byte = 0x01 // bit 0: 1=C.V. 0=C.C.
	BitChannel2CV byte = 0x02 // bit 1: 1=C.V. 0=C.C.
	MaskTracking  byte = 0x0C // bits 2-3
	BitBeep       byte = 0x10 // bit 4
	BitLock       byte = 0x20 // bit 5, see Decode
	BitOutput     byte = 0x40 // bit 6

	shiftTracking = 2
)

// ---- EXPORT BLOCK GEOMETRY ----
// Layout of the register block written by the exporters.
// These values define the block and MUST NOT be configurable.

// SlotsPerDevice is the fixed number of registers per device.
const SlotsPerDevice = 32

// SlotHealthCode holds the device health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the last error code.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the device has been in error.
const SlotSecondsInError = 2

// SlotFlags holds the re-packed status byte; FlagsValidBit marks it as read.
const SlotFlags = 3

// FlagsValidBit is set in SlotFlags once a status byte has been decoded.
const FlagsValidBit uint16 = 0x8000

// SlotOnDurationHi and SlotOnDurationLo hold on-duration in ms (uint32, hi word first).
const (
	SlotOnDurationHi = 4
	SlotOnDurationLo = 5
)

// SlotValuesStart is the first of 8 measurement slots:
// ch1 Iset, Vset, Iout, Vout, then ch2 in the same order.
// Currents are in mA, voltages in 10 mV.
const SlotValuesStart = 6

// ValuesPerChannel is the number of measurement slots per channel.
const ValuesPerChannel = 4

// SlotValuesEnd is the last measurement slot (inclusive).
const SlotValuesEnd = SlotValuesStart + 2*ValuesPerChannel - 1

// SlotDynamicEnd is the last slot rewritten on incremental updates (inclusive).
const SlotDynamicEnd = SlotValuesEnd

// Slots 14-15 are reserved.
const (
	SlotReservedStart = 14
	SlotReservedEnd   = 15
)

// SlotIdentityStart is the first slot used for the identity string.
// Identity is always placed at the END of the block.
const SlotIdentityStart = 16

// SlotIdentitySlots is the number of slots reserved for the identity.
const SlotIdentitySlots = 16

// IdentityMaxChars is the maximum number of ASCII characters stored for identity.
const IdentityMaxChars = 2 * SlotIdentitySlots

// RegUnset marks a measurement that was never read or could not be parsed.
const RegUnset uint16 = 0xFFFF

// RegMax is the largest measurement value stored; larger values saturate.
const RegMax uint16 = 0xFFFE

// ---- HEALTH CODES ----

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy device.
const HealthOK uint16 = 1

// HealthError represents a device error state.
const HealthError uint16 = 2
