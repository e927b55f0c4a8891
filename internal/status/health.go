package status

import "errors"

// Observe folds one cycle outcome into the snapshot and reports whether
// anything changed. SecondsInError only moves on Tick.
func (s *Snapshot) Observe(err error) bool {
	if err == nil {
		changed := s.Health != HealthOK || s.LastErrorCode != 0 || s.SecondsInError != 0
		s.Health = HealthOK
		s.LastErrorCode = 0
		s.SecondsInError = 0
		return changed
	}

	code := ErrorCode(err)
	changed := s.Health != HealthError || s.LastErrorCode != code
	s.Health = HealthError
	s.LastErrorCode = code
	return changed
}

// Tick advances SecondsInError by one while not healthy. It never wraps.
func (s *Snapshot) Tick() bool {
	if s.Health == HealthOK || s.SecondsInError == 0xFFFF {
		return false
	}
	s.SecondsInError++
	return true
}

// ErrorCode extracts a best-effort code from an error without assuming
// concrete types. Errors that do not expose one map to 1 (generic error).
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return 1
}
