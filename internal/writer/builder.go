// internal/writer/builder.go
package writer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	cfg "github.com/tamzrod/tenma-bridge/internal/config"
	wingest "github.com/tamzrod/tenma-bridge/internal/writer/ingest"
	wmodbus "github.com/tamzrod/tenma-bridge/internal/writer/modbus"
	wredis "github.com/tamzrod/tenma-bridge/internal/writer/redis"
)

// ModeIngest selects the Raw Ingest v1 client instead of Modbus TCP.
const ModeIngest = "ingest"

// buildBlockClient creates the register client for the configured mode.
func buildBlockClient(m cfg.ModbusExportConfig) (endpointClient, func() error, error) {
	timeout := time.Duration(m.TimeoutMs) * time.Millisecond

	if m.Mode == ModeIngest {
		c, err := wingest.NewEndpointClient(wingest.Config{
			Endpoint: m.Endpoint,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	}

	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: m.Endpoint,
		Timeout:  timeout,
		Lazy:     m.LazyConnect,
	})
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

// Build creates every configured exporter and fans them into one Writer.
// It returns a nil Writer when nothing is configured.
func Build(ctx context.Context, e cfg.ExportConfig, log logrus.FieldLogger) (Writer, func() error, error) {
	var writers []Writer
	var closers []func() error

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	if m := e.Modbus; m != nil {
		cli, closeFn, err := buildBlockClient(*m)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, closeFn)

		bw, err := NewBlockWriter(BlockPlan{
			Endpoint: m.Endpoint,
			UnitID:   m.UnitID,
			BaseSlot: m.BaseSlot,
		}, cli)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		writers = append(writers, bw)
		log.WithFields(logrus.Fields{
			"mode":      m.Mode,
			"endpoint":  m.Endpoint,
			"base_slot": m.BaseSlot,
		}).Info("register export enabled")
	}

	if r := e.Redis; r != nil {
		pub, err := wredis.NewPublisher(ctx, wredis.Config{
			Addr:     r.Addr,
			Password: r.Password,
			DB:       r.DB,
			Channel:  r.Channel,
			History:  r.History,
		}, log)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append(closers, pub.Close)
		writers = append(writers, NewPublishWriter(pub))
	}

	if len(writers) == 0 {
		return nil, closeAll, nil
	}

	w, err := New(writers...)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	return w, closeAll, nil
}
