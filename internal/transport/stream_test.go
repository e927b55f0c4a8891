package transport

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/goburrow/serial"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fake port ----

type reply struct {
	delay time.Duration
	data  []byte
}

type fakePort struct {
	mu       sync.Mutex
	writes   []string
	writeErr error
	replies  map[string][]reply

	rx        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakePort() *fakePort {
	return &fakePort{
		replies: map[string][]reply{},
		rx:      make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (f *fakePort) Read(b []byte) (int, error) {
	select {
	case chunk := <-f.rx:
		return copy(b, chunk), nil
	case <-f.closed:
		return 0, io.EOF
	case <-time.After(5 * time.Millisecond):
		return 0, serial.ErrTimeout
	}
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes = append(f.writes, string(p))
	for _, r := range f.replies[string(p)] {
		go func(r reply) {
			time.Sleep(r.delay)
			f.push(r.data)
		}(r)
	}
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakePort) push(b []byte) {
	select {
	case f.rx <- b:
	case <-f.closed:
	}
}

func (f *fakePort) on(cmd string, r ...reply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[cmd] = r
}

func (f *fakePort) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ---- tests ----

func TestCapture_CollectsWholeWindow(t *testing.T) {
	port := newFakePort()
	port.on("VSET1?",
		reply{delay: 2 * time.Millisecond, data: []byte("05.")},
		reply{delay: 20 * time.Millisecond, data: []byte("00")},
	)
	s := NewStream(port, quietLogger())
	defer s.Close()

	resp, err := s.Capture([]byte("VSET1?"), false, 60*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "05.00", resp.Text)
	assert.False(t, resp.Binary)
}

func TestCapture_WindowIsFixed(t *testing.T) {
	port := newFakePort()
	port.on("IOUT1?", reply{delay: 150 * time.Millisecond, data: []byte("late")})
	s := NewStream(port, quietLogger())
	defer s.Close()

	start := time.Now()
	resp, err := s.Capture([]byte("IOUT1?"), false, 40*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Empty(t, resp.Raw)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestCapture_Binary(t *testing.T) {
	port := newFakePort()
	port.on("STATUS?", reply{delay: time.Millisecond, data: []byte{0x41}})
	s := NewStream(port, quietLogger())
	defer s.Close()

	resp, err := s.Capture([]byte("STATUS?"), true, 30*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, resp.Binary)
	assert.Equal(t, []byte{0x41}, resp.Raw)
	assert.Empty(t, resp.Text)
}

func TestCapture_WriteFailure(t *testing.T) {
	port := newFakePort()
	port.failWrites(errors.New("device gone"))
	s := NewStream(port, quietLogger())
	defer s.Close()

	_, err := s.Capture([]byte("OUT1"), false, 10*time.Millisecond)
	require.Error(t, err)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "write", te.Op)
	assert.Equal(t, CodeTransport, te.Code())
}

func TestCapture_NoStaleBytesAfterFailedWrite(t *testing.T) {
	port := newFakePort()
	port.on("VSET1?", reply{delay: 2 * time.Millisecond, data: []byte("12.00")})
	s := NewStream(port, quietLogger())
	defer s.Close()

	port.failWrites(errors.New("write failed"))
	_, err := s.Capture([]byte("ISET1?"), false, 20*time.Millisecond)
	require.Error(t, err)

	// Bytes that show up with no capture attached belong to nobody.
	port.push([]byte("0.500"))
	time.Sleep(20 * time.Millisecond)

	port.failWrites(nil)
	resp, err := s.Capture([]byte("VSET1?"), false, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "12.00", resp.Text)
}

func TestCapture_LateBytesAreNotCarriedOver(t *testing.T) {
	port := newFakePort()
	port.on("ISET1?", reply{delay: 60 * time.Millisecond, data: []byte("1.000")})
	port.on("VSET1?", reply{delay: 2 * time.Millisecond, data: []byte("05.00")})
	s := NewStream(port, quietLogger())
	defer s.Close()

	resp, err := s.Capture([]byte("ISET1?"), false, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, resp.Text)

	time.Sleep(80 * time.Millisecond)

	resp, err = s.Capture([]byte("VSET1?"), false, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "05.00", resp.Text)
}

func TestCapture_RejectsOverlap(t *testing.T) {
	port := newFakePort()
	s := NewStream(port, quietLogger())
	defer s.Close()

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := s.Capture([]byte("STATUS?"), true, 80*time.Millisecond)
		done <- err
	}()
	<-started
	time.Sleep(20 * time.Millisecond)

	_, err := s.Capture([]byte("VSET1?"), false, 10*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBusy))
	require.NoError(t, <-done)
}

func TestCapture_AfterCloseFails(t *testing.T) {
	port := newFakePort()
	s := NewStream(port, quietLogger())
	require.NoError(t, s.Close())

	_, err := s.Capture([]byte("VSET1?"), false, 10*time.Millisecond)
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "read", te.Op)
}
