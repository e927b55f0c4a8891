package transport

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Port is the raw byte stream. Read must return periodically (read timeout)
// or fail once the port is closed.
type Port interface {
	io.ReadWriteCloser
}

// Response is everything received during one dwell window.
type Response struct {
	Raw    []byte
	Text   string
	Binary bool
}

// Stream attributes incoming bytes to the capture currently attached to it.
//
// The device protocol has no length prefix, delimiter or checksum, so a
// response is whatever arrives in a fixed window after the write completes.
// Bytes arriving while no capture is attached are discarded.
type Stream struct {
	port Port
	log  logrus.FieldLogger

	mu      sync.Mutex
	sink    *accumulator
	readErr error

	busy      atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

type accumulator struct {
	buf []byte
}

// NewStream takes ownership of port and starts reading from it.
func NewStream(port Port, log logrus.FieldLogger) *Stream {
	s := &Stream{
		port: port,
		log:  log,
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

func (s *Stream) pump() {
	defer close(s.done)

	buf := make([]byte, 256)
	for {
		n, err := s.port.Read(buf)
		if n > 0 {
			s.deliver(buf[:n])
		}
		if err == nil || isTimeout(err) {
			continue
		}

		s.mu.Lock()
		s.readErr = err
		s.mu.Unlock()
		return
	}
}

func (s *Stream) deliver(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sink == nil {
		s.log.WithField("bytes", len(b)).Debug("discarding unsolicited bytes")
		return
	}
	s.sink.buf = append(s.sink.buf, b...)
}

// Capture writes payload and returns every byte received during the dwell
// window that starts when the write returns. The window is fixed: it is not
// extended by late bytes nor cut short by early ones.
//
// A write failure returns *Error and no capture takes place.
func (s *Stream) Capture(payload []byte, binary bool, dwell time.Duration) (Response, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return Response{}, &Error{Op: "capture", Err: ErrBusy}
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	readErr := s.readErr
	s.mu.Unlock()
	if readErr != nil {
		return Response{}, &Error{Op: "read", Err: readErr}
	}

	n, err := s.port.Write(payload)
	if err != nil {
		return Response{}, &Error{Op: "write", Err: err}
	}
	if n != len(payload) {
		return Response{}, &Error{Op: "write", Err: io.ErrShortWrite}
	}

	acc := &accumulator{}
	s.mu.Lock()
	s.sink = acc
	s.mu.Unlock()

	time.Sleep(dwell)

	s.mu.Lock()
	s.sink = nil
	raw := acc.buf
	s.mu.Unlock()

	return newResponse(raw, binary), nil
}

func newResponse(raw []byte, binary bool) Response {
	if binary {
		return Response{Raw: raw, Binary: true}
	}
	return Response{
		Raw:  raw,
		Text: strings.ToValidUTF8(string(raw), "\uFFFD"),
	}
}

// Close closes the port and waits for the reader to exit.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		if err := s.port.Close(); err != nil {
			s.closeErr = &Error{Op: "close", Err: err}
		}
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			s.log.Warn("serial reader did not stop after close")
		}
	})
	return s.closeErr
}
