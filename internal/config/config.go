// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	PSU     PSUConfig     `yaml:"psu"`
	Poll    PollConfig    `yaml:"poll"`
	HTTP    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	DataLog DataLogConfig `yaml:"datalog"`
	Export  ExportConfig  `yaml:"export"`
}

// ---- SUPPLY ----

type PSUConfig struct {
	Port          string `yaml:"port"`
	BaudRate      int    `yaml:"baud_rate"`
	DataBits      int    `yaml:"data_bits"`
	StopBits      int    `yaml:"stop_bits"`
	Parity        string `yaml:"parity"` // N, E or O
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`

	// Channel 2 is refreshed only when set. Static.
	TwoChannel bool `yaml:"two_channel"`

	// *IDN? must start with this.
	IdentityPrefix string `yaml:"identity_prefix"`

	// Dwell windows (ms) after each write.
	DwellMs         int `yaml:"dwell_ms"`
	IdentifyDwellMs int `yaml:"identify_dwell_ms"`
	StatusDwellMs   int `yaml:"status_dwell_ms"`
}

// ---- CYCLE ----

type PollConfig struct {
	// Pause between the end of one cycle and the start of the next.
	IntervalMs     int  `yaml:"interval_ms"`
	GuardFirstTick bool `yaml:"guard_first_tick"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Listen              string `yaml:"listen"`
	StaticDir           string `yaml:"static_dir"`
	AllowOrigin         string `yaml:"allow_origin"`
	BroadcastIntervalMs int    `yaml:"broadcast_interval_ms"`
}

// ---- LOGGING ----

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`
}

type DataLogConfig struct {
	// 0 keeps every entry.
	MaxEntries int `yaml:"max_entries"`
}

// ---- EXPORT (optional, opt-in) ----

type ExportConfig struct {
	Modbus *ModbusExportConfig `yaml:"modbus"`
	Redis  *RedisExportConfig  `yaml:"redis"`
}

type ModbusExportConfig struct {
	Mode      string `yaml:"mode"` // modbus or ingest
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	BaseSlot  uint16 `yaml:"base_slot"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// Start without the register server; connect on first write.
	LazyConnect bool `yaml:"lazy_connect"`
}

type RedisExportConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	History  int    `yaml:"history"`
}

// Load reads and parses a YAML config file. It does not validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyEnv applies the COMPORT and PORT overrides.
// PORT is a bare TCP port number for the HTTP listener.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if cfg == nil {
		return
	}
	if v := getenv("COMPORT"); v != "" {
		cfg.PSU.Port = v
	}
	if v := getenv("PORT"); v != "" {
		cfg.HTTP.Listen = ":" + v
	}
}
