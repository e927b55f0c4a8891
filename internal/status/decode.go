package status

// Mode is the regulation mode of one output channel.
type Mode string

const (
	ModeCV Mode = "C.V."
	ModeCC Mode = "C.C."
)

// Tracking is the channel coupling mode.
type Tracking string

const (
	TrackingIndependent Tracking = "Independent"
	TrackingSeries      Tracking = "Tracking Series"
	TrackingParallel    Tracking = "Tracking Parallel"
	TrackingUnknown     Tracking = "Unknown"
)

// Flags is one decoded status byte.
type Flags struct {
	Channel1Mode Mode
	Channel2Mode Mode
	Tracking     Tracking
	Beep         bool
	Lock         bool
	Output       bool
}

// Decode maps a status byte to flags. Every byte value decodes.
//
// Bit 5 is documented as 0=Locked/1=Unlocked but is reported literally
// (Lock = bit set), matching how the value has always been consumed.
func Decode(b byte) Flags {
	f := Flags{
		Channel1Mode: ModeCC,
		Channel2Mode: ModeCC,
		Beep:         b&BitBeep != 0,
		Lock:         b&BitLock != 0,
		Output:       b&BitOutput != 0,
	}
	if b&BitChannel1CV != 0 {
		f.Channel1Mode = ModeCV
	}
	if b&BitChannel2CV != 0 {
		f.Channel2Mode = ModeCV
	}

	switch (b & MaskTracking) >> shiftTracking {
	case 0:
		f.Tracking = TrackingIndependent
	case 1:
		f.Tracking = TrackingSeries
	case 3:
		f.Tracking = TrackingParallel
	default:
		f.Tracking = TrackingUnknown
	}
	return f
}

// Byte re-packs flags into the device bit layout. Unknown tracking packs
// as 2, the only undefined tracking value.
func (f Flags) Byte() byte {
	var b byte
	if f.Channel1Mode == ModeCV {
		b |= BitChannel1CV
	}
	if f.Channel2Mode == ModeCV {
		b |= BitChannel2CV
	}

	var tr byte
	switch f.Tracking {
	case TrackingIndependent:
		tr = 0
	case TrackingSeries:
		tr = 1
	case TrackingParallel:
		tr = 3
	default:
		tr = 2
	}
	b |= tr << shiftTracking

	if f.Beep {
		b |= BitBeep
	}
	if f.Lock {
		b |= BitLock
	}
	if f.Output {
		b |= BitOutput
	}
	return b
}
