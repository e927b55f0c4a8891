// Package psutest provides a simulated supply for tests. It answers the
// ASCII command set at the capture level, with no timing.
package psutest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tamzrod/tenma-bridge/internal/transport"
)

// DefaultIdentity is what *IDN? answers unless overridden.
const DefaultIdentity = "TENMA 72-2540 V2.1"

// Device is a simulated two-channel supply. It implements serializer.Capturer.
type Device struct {
	mu sync.Mutex

	identity string
	status   byte
	iset     [2]string
	vset     [2]string
	memories map[int][2][2]string

	calls []string

	fail        map[string]error
	statusReply []byte
	silent      map[string]bool
	latency     time.Duration
}

// New returns a device in C.V. mode with output off.
func New() *Device {
	return &Device{
		identity: DefaultIdentity,
		status:   0x03,
		iset:     [2]string{"1.000", "1.000"},
		vset:     [2]string{"00.00", "00.00"},
		memories: map[int][2][2]string{},
		fail:     map[string]error{},
		silent:   map[string]bool{},
	}
}

// SetIdentity changes the *IDN? answer.
func (d *Device) SetIdentity(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identity = id
}

// SetStatus sets the raw status byte.
func (d *Device) SetStatus(b byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = b
}

// SetStatusReply overrides the STATUS? reply bytes (nil restores normal replies).
func (d *Device) SetStatusReply(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statusReply = b
}

// Fail makes every capture of cmd fail with a transport write error.
func (d *Device) Fail(cmd string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, cmd)
		return
	}
	d.fail[cmd] = err
}

// Silence makes the device not answer cmd.
func (d *Device) Silence(cmd string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silent[cmd] = true
}

// SetLatency makes every capture take at least the given time.
func (d *Device) SetLatency(l time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latency = l
}

// Calls returns every command received, in order.
func (d *Device) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Output reports the simulated output state.
func (d *Device) Output() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status&0x40 != 0
}

// Capture answers one command.
func (d *Device) Capture(payload []byte, binary bool, dwell time.Duration) (transport.Response, error) {
	d.mu.Lock()
	cmd := string(payload)
	d.calls = append(d.calls, cmd)
	latency := d.latency

	if err := d.fail[cmd]; err != nil {
		d.mu.Unlock()
		return transport.Response{}, &transport.Error{Op: "write", Err: err}
	}

	var raw []byte
	if !d.silent[cmd] {
		raw = d.answerLocked(cmd)
	}
	d.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}

	if binary {
		return transport.Response{Raw: raw, Binary: true}, nil
	}
	return transport.Response{Raw: raw, Text: string(raw)}, nil
}

func (d *Device) answerLocked(cmd string) []byte {
	switch {
	case cmd == "*IDN?":
		return []byte(d.identity)
	case cmd == "STATUS?":
		if d.statusReply != nil {
			return d.statusReply
		}
		return []byte{d.status}
	}

	if ch, ok := query(cmd, "ISET"); ok {
		return []byte(d.iset[ch])
	}
	if ch, ok := query(cmd, "VSET"); ok {
		return []byte(d.vset[ch])
	}
	if ch, ok := query(cmd, "IOUT"); ok {
		if d.status&0x40 == 0 {
			return []byte("0.000")
		}
		return []byte(d.iset[ch])
	}
	if ch, ok := query(cmd, "VOUT"); ok {
		if d.status&0x40 == 0 {
			return []byte("00.00")
		}
		return []byte(d.vset[ch])
	}

	if ch, v, ok := assign(cmd, "ISET"); ok {
		d.iset[ch] = v
		return nil
	}
	if ch, v, ok := assign(cmd, "VSET"); ok {
		d.vset[ch] = v
		return nil
	}

	switch cmd {
	case "OUT1":
		d.status |= 0x40
	case "OUT0":
		d.status &^= 0x40
	case "BEEP1":
		d.status |= 0x10
	case "BEEP0":
		d.status &^= 0x10
	}

	if n, ok := memory(cmd, "SAV"); ok {
		d.memories[n] = [2][2]string{d.iset, d.vset}
	}
	if n, ok := memory(cmd, "RCL"); ok {
		if m, found := d.memories[n]; found {
			d.iset, d.vset = m[0], m[1]
		}
	}
	return nil
}

// query matches "<prefix><n>?".
func query(cmd, prefix string) (int, bool) {
	if !strings.HasPrefix(cmd, prefix) || !strings.HasSuffix(cmd, "?") {
		return 0, false
	}
	return channel(strings.TrimSuffix(strings.TrimPrefix(cmd, prefix), "?"))
}

// assign matches "<prefix><n>:<value>".
func assign(cmd, prefix string) (int, string, bool) {
	if !strings.HasPrefix(cmd, prefix) {
		return 0, "", false
	}
	chStr, v, found := strings.Cut(strings.TrimPrefix(cmd, prefix), ":")
	if !found {
		return 0, "", false
	}
	ch, ok := channel(chStr)
	return ch, v, ok
}

func memory(cmd, prefix string) (int, bool) {
	if !strings.HasPrefix(cmd, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(cmd, prefix))
	return n, err == nil
}

func channel(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 2 {
		return 0, false
	}
	return n - 1, true
}

// ErrUnplugged is a convenient failure for Fail.
var ErrUnplugged = errors.New("device unplugged")

// String describes the simulated device.
func (d *Device) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("psutest.Device(%s, status=0x%02x)", d.identity, d.status)
}
