// internal/poller/builder.go
package poller

import (
	"time"

	"github.com/sirupsen/logrus"

	cfg "github.com/tamzrod/tenma-bridge/internal/config"
	"github.com/tamzrod/tenma-bridge/internal/psu"
	"github.com/tamzrod/tenma-bridge/internal/serializer"
	"github.com/tamzrod/tenma-bridge/internal/state"
	"github.com/tamzrod/tenma-bridge/internal/transport"
)

// Build opens the serial line and wires transport, serializer, driver and
// poller. The port is opened once; failure is fatal at startup.
// The returned closer stops the serializer, then closes the port.
func Build(c *cfg.Config, obs serializer.Observer, log logrus.FieldLogger) (*Poller, *psu.Driver, func() error, error) {
	stream, err := transport.OpenSerial(transport.Config{
		Address:     c.PSU.Port,
		BaudRate:    c.PSU.BaudRate,
		DataBits:    c.PSU.DataBits,
		StopBits:    c.PSU.StopBits,
		Parity:      c.PSU.Parity,
		ReadTimeout: ms(c.PSU.ReadTimeoutMs),
	}, log)
	if err != nil {
		return nil, nil, nil, err
	}

	q := serializer.New(stream, serializer.Config{
		DefaultDwell: ms(c.PSU.DwellMs),
		Observer:     obs,
	}, log)

	drv := psu.New(q, state.New(), psu.Config{
		Dwell:         ms(c.PSU.DwellMs),
		IdentifyDwell: ms(c.PSU.IdentifyDwellMs),
		StatusDwell:   ms(c.PSU.StatusDwellMs),
		TwoChannel:    c.PSU.TwoChannel,
	}, log)

	p, err := New(Config{
		TwoChannel:     c.PSU.TwoChannel,
		Interval:       ms(c.Poll.IntervalMs),
		GuardFirstTick: c.Poll.GuardFirstTick,
	}, drv, log)
	if err != nil {
		q.Close()
		_ = stream.Close()
		return nil, nil, nil, err
	}

	closeFn := func() error {
		q.Close()
		return stream.Close()
	}
	return p, drv, closeFn, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
