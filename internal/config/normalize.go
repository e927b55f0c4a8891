// internal/config/normalize.go
package config

// Defaults.
const (
	DefaultBaudRate            = 9600
	DefaultDataBits            = 8
	DefaultStopBits            = 1
	DefaultParity              = "N"
	DefaultReadTimeoutMs       = 10
	DefaultDwellMs             = 50
	DefaultIdentityPrefix      = "TENMA"
	DefaultIntervalMs          = 50
	DefaultListen              = ":6060"
	DefaultAllowOrigin         = "http://127.0.0.1:8044"
	DefaultBroadcastIntervalMs = 100
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultExportTimeoutMs     = 2000
	DefaultRedisChannel        = "tenma"
)

// Normalize fills defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	p := &cfg.PSU
	setInt(&p.BaudRate, DefaultBaudRate)
	setInt(&p.DataBits, DefaultDataBits)
	setInt(&p.StopBits, DefaultStopBits)
	setString(&p.Parity, DefaultParity)
	setInt(&p.ReadTimeoutMs, DefaultReadTimeoutMs)
	setInt(&p.DwellMs, DefaultDwellMs)
	setString(&p.IdentityPrefix, DefaultIdentityPrefix)

	// Identification and status fall back to the general dwell.
	setInt(&p.IdentifyDwellMs, p.DwellMs)
	setInt(&p.StatusDwellMs, p.DwellMs)

	setInt(&cfg.Poll.IntervalMs, DefaultIntervalMs)

	setString(&cfg.HTTP.Listen, DefaultListen)
	setString(&cfg.HTTP.AllowOrigin, DefaultAllowOrigin)
	setInt(&cfg.HTTP.BroadcastIntervalMs, DefaultBroadcastIntervalMs)

	setString(&cfg.Log.Level, DefaultLogLevel)
	setString(&cfg.Log.Format, DefaultLogFormat)

	if m := cfg.Export.Modbus; m != nil {
		setString(&m.Mode, "modbus")
		setInt(&m.TimeoutMs, DefaultExportTimeoutMs)
	}
	if r := cfg.Export.Redis; r != nil {
		setString(&r.Channel, DefaultRedisChannel)
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func setString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}
