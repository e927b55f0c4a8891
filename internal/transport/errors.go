package transport

import "errors"

// CodeTransport is the numeric code reported for transport failures.
const CodeTransport uint16 = 10

// ErrBusy is returned when a capture is started while another one is still
// collecting. Callers must route captures through a single worker.
var ErrBusy = errors.New("capture already in flight")

// Error is a failure of the byte stream itself (open, write, read, close).
// It fails the request that hit it and nothing else.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return "transport: " + e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns CodeTransport.
func (e *Error) Code() uint16 { return CodeTransport }
