// Package psu speaks the supply's ASCII command set.
//
// Every operation is one request through the serializer. Reads that own a
// mirror field write it from inside the request, so the mirror is only ever
// written by the worker.
package psu

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/tenma-bridge/internal/serializer"
	"github.com/tamzrod/tenma-bridge/internal/state"
	"github.com/tamzrod/tenma-bridge/internal/status"
	"github.com/tamzrod/tenma-bridge/internal/transport"
)

// Memories is the number of setting memories (RCLn / SAVn).
const Memories = 5

// Queue is the single-flight request path to the device.
type Queue interface {
	Do(req serializer.Request) (transport.Response, error)
}

// Config carries per-command dwell windows.
type Config struct {
	Dwell         time.Duration
	IdentifyDwell time.Duration
	StatusDwell   time.Duration
	TwoChannel    bool
}

// Driver is the protocol driver for one supply.
type Driver struct {
	q      Queue
	mirror *state.Mirror
	cfg    Config
	log    logrus.FieldLogger

	mu       sync.RWMutex
	identity string
}

// New builds a driver. Zero dwell values fall back to the serializer default.
func New(q Queue, mirror *state.Mirror, cfg Config, log logrus.FieldLogger) *Driver {
	return &Driver{
		q:      q,
		mirror: mirror,
		cfg:    cfg,
		log:    log,
	}
}

// TwoChannel reports whether channel 2 is refreshed.
func (d *Driver) TwoChannel() bool { return d.cfg.TwoChannel }

// Snapshot returns a copy of the mirrored device state.
func (d *Driver) Snapshot() state.DeviceState { return d.mirror.Snapshot() }

// Identity returns the identification string, or "" before Identify.
func (d *Driver) Identity() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.identity
}

// ---- identification ----

// Identify issues *IDN? once and caches the reply text as captured. Later
// calls return the cached identity without touching the device.
func (d *Driver) Identify() (string, error) {
	if id := d.Identity(); id != "" {
		return id, nil
	}

	resp, err := d.q.Do(serializer.Request{
		Command: "*IDN?",
		Dwell:   d.cfg.IdentifyDwell,
	})
	if err != nil {
		return "", fmt.Errorf("psu: identify: %w", err)
	}

	id := resp.Text
	d.mu.Lock()
	d.identity = id
	d.mu.Unlock()

	d.log.WithField("identity", id).Debug("identification received")
	return id, nil
}

// CheckIdentity verifies the identity carries the vendor prefix.
// Surrounding whitespace in the reply is ignored.
func CheckIdentity(identity, prefix string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return fmt.Errorf("%w: no reply to *IDN?", ErrIdentificationMismatch)
	}
	if !strings.HasPrefix(identity, prefix) {
		return fmt.Errorf("%w: %q does not start with %q", ErrIdentificationMismatch, identity, prefix)
	}
	return nil
}

// ---- refresh reads ----

// ReadCurrentSetting issues ISETn? and updates the current setting.
func (d *Driver) ReadCurrentSetting(ch int) (string, error) {
	return d.readText(fmt.Sprintf("ISET%d?", ch), ch, d.mirror.SetCurrentSetting)
}

// ReadVoltageSetting issues VSETn? and updates the voltage setting.
func (d *Driver) ReadVoltageSetting(ch int) (string, error) {
	return d.readText(fmt.Sprintf("VSET%d?", ch), ch, d.mirror.SetVoltageSetting)
}

// ReadOutputCurrent issues IOUTn? and updates the output current.
func (d *Driver) ReadOutputCurrent(ch int) (string, error) {
	return d.readText(fmt.Sprintf("IOUT%d?", ch), ch, d.mirror.SetCurrentOutput)
}

// ReadOutputVoltage issues VOUTn? and updates the output voltage.
func (d *Driver) ReadOutputVoltage(ch int) (string, error) {
	return d.readText(fmt.Sprintf("VOUT%d?", ch), ch, d.mirror.SetVoltageOutput)
}

func (d *Driver) readText(cmd string, ch int, set func(ch int, v string) error) (string, error) {
	if err := checkChannel(ch); err != nil {
		return "", err
	}

	resp, err := d.q.Do(serializer.Request{
		Command: cmd,
		Dwell:   d.cfg.Dwell,
		Apply: func(r transport.Response) error {
			if r.Text == "" {
				return fmt.Errorf("%w: %s: empty reply", ErrMalformedResponse, cmd)
			}
			return set(ch, r.Text)
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// ReadStatus issues STATUS? (one binary byte) and updates mode, tracking,
// beep, lock and output flags.
func (d *Driver) ReadStatus() (status.Flags, error) {
	var flags status.Flags

	_, err := d.q.Do(serializer.Request{
		Command: "STATUS?",
		Binary:  true,
		Dwell:   d.cfg.StatusDwell,
		Apply: func(r transport.Response) error {
			if len(r.Raw) != 1 {
				return fmt.Errorf("%w: STATUS? returned %d bytes", ErrMalformedResponse, len(r.Raw))
			}
			flags = status.Decode(r.Raw[0])
			d.mirror.ApplyStatus(flags)
			return nil
		},
	})
	if err != nil {
		return status.Flags{}, err
	}
	return flags, nil
}

// ---- settings ----
// Values are forwarded verbatim; the device expects e.g. "05.00" and "0.123".

// SetVoltage issues VSETn:<value>.
func (d *Driver) SetVoltage(ch int, value string) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	return d.send(fmt.Sprintf("VSET%d:%s", ch, value))
}

// SetCurrent issues ISETn:<value>.
func (d *Driver) SetCurrent(ch int, value string) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	return d.send(fmt.Sprintf("ISET%d:%s", ch, value))
}

// SetOutput issues OUT1 or OUT0.
func (d *Driver) SetOutput(on bool) error {
	return d.send("OUT" + onOff(on))
}

// SetBeep issues BEEP1 or BEEP0.
func (d *Driver) SetBeep(on bool) error {
	return d.send("BEEP" + onOff(on))
}

// SetOCP issues OCP1 or OCP0. The device has no way to read it back.
func (d *Driver) SetOCP(on bool) error {
	return d.send("OCP" + onOff(on))
}

// SetOVP issues OVP1 or OVP0. The device has no way to read it back.
func (d *Driver) SetOVP(on bool) error {
	return d.send("OVP" + onOff(on))
}

// Recall issues RCLn.
func (d *Driver) Recall(memory int) error {
	if err := checkMemory(memory); err != nil {
		return err
	}
	return d.send(fmt.Sprintf("RCL%d", memory))
}

// Save issues SAVn.
func (d *Driver) Save(memory int) error {
	if err := checkMemory(memory); err != nil {
		return err
	}
	return d.send(fmt.Sprintf("SAV%d", memory))
}

func (d *Driver) send(cmd string) error {
	_, err := d.q.Do(serializer.Request{
		Command: cmd,
		Dwell:   d.cfg.Dwell,
	})
	if err != nil {
		return fmt.Errorf("psu: %s: %w", cmd, err)
	}
	return nil
}

func onOff(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

func checkChannel(ch int) error {
	if ch < 1 || ch > state.Channels {
		return fmt.Errorf("%w: channel %d", ErrInvalidArgument, ch)
	}
	return nil
}

func checkMemory(m int) error {
	if m < 1 || m > Memories {
		return fmt.Errorf("%w: memory %d", ErrInvalidArgument, m)
	}
	return nil
}
