package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecode_0x41(t *testing.T) {
	f := Decode(0x41)

	assert.Equal(t, ModeCV, f.Channel1Mode)
	assert.Equal(t, ModeCC, f.Channel2Mode)
	assert.Equal(t, TrackingIndependent, f.Tracking)
	assert.True(t, f.Output)
	assert.False(t, f.Beep)
	assert.False(t, f.Lock)
}

func TestDecode_TotalAndDeterministic(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		first := Decode(b)
		assert.Equal(t, first, Decode(b), "byte 0x%02x", b)

		assert.NotEmpty(t, first.Tracking, "byte 0x%02x", b)
		assert.NotEmpty(t, first.Channel1Mode, "byte 0x%02x", b)
		assert.NotEmpty(t, first.Channel2Mode, "byte 0x%02x", b)
	}
}

func TestDecode_OutputFollowsBit6Only(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		assert.Equal(t, b&0x40 != 0, Decode(b).Output, "byte 0x%02x", b)
	}
}

func TestDecode_Tracking(t *testing.T) {
	cases := map[byte]Tracking{
		0x00: TrackingIndependent,
		0x04: TrackingSeries,
		0x08: TrackingUnknown,
		0x0C: TrackingParallel,
	}
	for b, want := range cases {
		assert.Equal(t, want, Decode(b).Tracking, "byte 0x%02x", b)
	}
}

func TestDecode_LockIsLiteralBit(t *testing.T) {
	assert.True(t, Decode(0x20).Lock)
	assert.False(t, Decode(0xDF).Lock)
}

func TestFlagsByte_RepacksDecodedBits(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		assert.Equal(t, b&0x7F, Decode(b).Byte(), "byte 0x%02x", b)
	}
}
