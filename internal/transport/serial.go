package transport

import (
	"errors"
	"time"

	"github.com/goburrow/serial"
	"github.com/sirupsen/logrus"
)

// Config describes the serial line to the supply.
type Config struct {
	Address  string
	BaudRate int
	DataBits int
	StopBits int
	Parity   string

	// ReadTimeout bounds a single port read inside the pump.
	// It is not the dwell window.
	ReadTimeout time.Duration
}

// OpenSerial opens the serial device and starts a Stream on it.
// One attempt, no retries.
func OpenSerial(cfg Config, log logrus.FieldLogger) (*Stream, error) {
	if cfg.Address == "" {
		return nil, errors.New("transport: serial address required")
	}

	port, err := serial.Open(&serial.Config{
		Address:  cfg.Address,
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		StopBits: cfg.StopBits,
		Parity:   cfg.Parity,
		Timeout:  cfg.ReadTimeout,
	})
	if err != nil {
		return nil, &Error{Op: "open " + cfg.Address, Err: err}
	}

	log.WithFields(logrus.Fields{
		"port": cfg.Address,
		"baud": cfg.BaudRate,
	}).Info("serial port opened")

	return NewStream(port, log), nil
}

// isTimeout reports whether a read error only means "nothing arrived yet".
func isTimeout(err error) bool {
	if errors.Is(err, serial.ErrTimeout) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
