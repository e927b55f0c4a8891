// internal/config/validate.go
package config

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/tenma-bridge/internal/status"
)

// Validate checks configuration correctness.
// It performs declarative validation only; zero values mean "default".
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil")
	}

	// ------------------------------------------------------------
	// SUPPLY
	// ------------------------------------------------------------

	p := cfg.PSU
	if p.Port == "" {
		return errors.New("psu.port is required (or set COMPORT)")
	}
	if p.BaudRate < 0 {
		return fmt.Errorf("psu.baud_rate must be > 0, got %d", p.BaudRate)
	}
	switch p.DataBits {
	case 0, 5, 6, 7, 8:
	default:
		return fmt.Errorf("psu.data_bits must be 5..8, got %d", p.DataBits)
	}
	switch p.StopBits {
	case 0, 1, 2:
	default:
		return fmt.Errorf("psu.stop_bits must be 1 or 2, got %d", p.StopBits)
	}
	switch p.Parity {
	case "", "N", "E", "O":
	default:
		return fmt.Errorf("psu.parity must be N, E or O, got %q", p.Parity)
	}

	for name, v := range map[string]int{
		"psu.read_timeout_ms":        p.ReadTimeoutMs,
		"psu.dwell_ms":               p.DwellMs,
		"psu.identify_dwell_ms":      p.IdentifyDwellMs,
		"psu.status_dwell_ms":        p.StatusDwellMs,
		"poll.interval_ms":           cfg.Poll.IntervalMs,
		"http.broadcast_interval_ms": cfg.HTTP.BroadcastIntervalMs,
		"datalog.max_entries":        cfg.DataLog.MaxEntries,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be >= 0, got %d", name, v)
		}
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	if cfg.Log.Level != "" {
		if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}

	// ------------------------------------------------------------
	// EXPORT (OPT-IN)
	// ------------------------------------------------------------

	if m := cfg.Export.Modbus; m != nil {
		switch m.Mode {
		case "", "modbus", "ingest":
		default:
			return fmt.Errorf("export.modbus.mode must be modbus or ingest, got %q", m.Mode)
		}
		if m.Endpoint == "" {
			return errors.New("export.modbus.endpoint is required")
		}
		if m.TimeoutMs < 0 {
			return fmt.Errorf("export.modbus.timeout_ms must be >= 0, got %d", m.TimeoutMs)
		}

		// The whole block must fit in the 16-bit register space.
		end := (int(m.BaseSlot)+1)*status.SlotsPerDevice - 1
		if end > 0xFFFF {
			return fmt.Errorf(
				"export.modbus.base_slot %d: block ends at register %d, beyond 65535",
				m.BaseSlot,
				end,
			)
		}
	}

	if r := cfg.Export.Redis; r != nil {
		if r.Addr == "" {
			return errors.New("export.redis.addr is required")
		}
		if r.History < 0 {
			return fmt.Errorf("export.redis.history must be >= 0, got %d", r.History)
		}
	}

	return nil
}
