package psu

// Error codes reported through status.ErrorCode.
const (
	CodeMalformedResponse      uint16 = 20
	CodeIdentificationMismatch uint16 = 30
	CodeInvalidArgument        uint16 = 50
	CodeUnknownCommand         uint16 = 51
)

// Error is a driver-level failure with a stable code.
type Error struct {
	code uint16
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Code returns the numeric error code.
func (e *Error) Code() uint16 { return e.code }

var (
	// ErrMalformedResponse means a capture returned a reply of the wrong
	// shape (empty text, status not exactly one byte). The refresh is skipped.
	ErrMalformedResponse = &Error{code: CodeMalformedResponse, msg: "psu: malformed response"}

	// ErrIdentificationMismatch means *IDN? returned nothing or an
	// unrecognised vendor prefix. Fatal at startup.
	ErrIdentificationMismatch = &Error{code: CodeIdentificationMismatch, msg: "psu: identification mismatch"}

	// ErrInvalidArgument covers channel and memory numbers the protocol
	// has no command for.
	ErrInvalidArgument = &Error{code: CodeInvalidArgument, msg: "psu: invalid argument"}

	// ErrUnknownCommand is returned by Execute for unrecognised command names.
	ErrUnknownCommand = &Error{code: CodeUnknownCommand, msg: "psu: unknown command"}
)
