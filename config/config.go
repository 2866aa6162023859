// Package config loads the daemon configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hanwen/go-mtpd/log"
)

// Config is the mtpd.yaml file. Values left out keep their defaults;
// command line flags override both.
type Config struct {
	Device      DeviceConfig    `yaml:"device"`
	Transport   TransportConfig `yaml:"transport"`
	Database    DatabaseConfig  `yaml:"database"`
	Storages    []StorageConfig `yaml:"storages"`
	Permissions PermConfig      `yaml:"permissions"`
	Monitor     MonitorConfig   `yaml:"monitor"`
	Log         LogConfig       `yaml:"log"`
}

// DeviceConfig is what DeviceInfo and the device properties report.
type DeviceConfig struct {
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	Version      string `yaml:"version"`
	Serial       string `yaml:"serial"`
	FriendlyName string `yaml:"friendly_name"`
	SyncPartner  string `yaml:"sync_partner"`
	// PTP hides the MTP vendor extension.
	PTP                 bool   `yaml:"ptp"`
	BatteryPath         string `yaml:"battery_path"`
	PerceivedDeviceType uint32 `yaml:"perceived_device_type"`
}

type TransportConfig struct {
	// Bulk character device of the gadget function.
	Device string `yaml:"device"`
	// Interrupt device for events. Optional.
	Events     string `yaml:"events"`
	PacketSize int    `yaml:"packet_size"`
}

type DatabaseConfig struct {
	// Empty keeps the object table in memory.
	Path string `yaml:"path"`
}

type StorageConfig struct {
	ID          uint32 `yaml:"id"`
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
	// Bytes kept free.
	Reserve     uint64 `yaml:"reserve"`
	Removable   bool   `yaml:"removable"`
	MaxFileSize uint64 `yaml:"max_file_size"`
}

type PermConfig struct {
	File FileMode `yaml:"file"`
	Dir  FileMode `yaml:"dir"`
}

type MonitorConfig struct {
	// Listen address of the HTTP status server. Empty disables it.
	Listen        string   `yaml:"listen"`
	StatsInterval Duration `yaml:"stats_interval"`
}

type LogConfig struct {
	Level      string   `yaml:"level"`
	File       string   `yaml:"file"`
	MaxSizeMB  int      `yaml:"max_size_mb"`
	MaxBackups int      `yaml:"max_backups"`
	MaxAgeDays int      `yaml:"max_age_days"`
	Compress   bool     `yaml:"compress"`
	Debug      []string `yaml:"debug"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// FileMode is an octal permission string such as "0644".
type FileMode os.FileMode

func (m *FileMode) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0o"), 8, 32)
	if err != nil {
		return fmt.Errorf("invalid file mode %q: %w", s, err)
	}
	if v&^0o777 != 0 {
		return fmt.Errorf("file mode %q has bits beyond 0777", s)
	}
	*m = FileMode(v)
	return nil
}

// Default returns a configuration for a single storage serving
// $HOME/mtp. The serial number is random.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Device: DeviceConfig{
			Manufacturer: "go-mtpd",
			Model:        "Linux MTP device",
			Version:      "1.0",
			Serial:       strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
			FriendlyName: "Linux MTP device",
		},
		Transport: TransportConfig{
			Device:     "/dev/mtp_usb",
			PacketSize: 512,
		},
		Storages: []StorageConfig{{
			ID:          0x00010001,
			Path:        home + "/mtp",
			Description: "Internal storage",
		}},
		Permissions: PermConfig{
			File: 0o644,
			Dir:  0o755,
		},
		Monitor: MonitorConfig{
			StatsInterval: Duration{time.Second},
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Validate checks what the server relies on.
func (c *Config) Validate() error {
	if len(c.Storages) == 0 {
		return fmt.Errorf("no storages configured")
	}
	seen := map[uint32]bool{}
	for _, st := range c.Storages {
		// The low half numbers the partition; 0 is invalid.
		if st.ID&0xFFFF == 0 {
			return fmt.Errorf("storage %q: invalid id 0x%08x", st.Path, st.ID)
		}
		if seen[st.ID] {
			return fmt.Errorf("storage id 0x%08x used twice", st.ID)
		}
		seen[st.ID] = true
		if st.Path == "" {
			return fmt.Errorf("storage 0x%08x has no path", st.ID)
		}
	}
	if c.Device.Serial == "" {
		return fmt.Errorf("device serial is empty")
	}
	return nil
}

// DebugFlags turns the log.debug list into per subsystem switches.
// "all" enables every subsystem.
func (c *Config) DebugFlags() (log.DebugFlags, error) {
	var f log.DebugFlags
	for _, name := range c.Log.Debug {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "mtp":
			f.MTP = true
		case "data":
			f.Data = true
		case "transport":
			f.Transport = true
		case "db":
			f.DB = true
		case "monitor":
			f.Monitor = true
		case "all":
			f = log.DebugFlags{MTP: true, Data: true, Transport: true, DB: true, Monitor: true}
		default:
			return f, fmt.Errorf("unknown debug subsystem %q", name)
		}
	}
	return f, nil
}

func (c *Config) LogFile() log.FileOptions {
	return log.FileOptions{
		Path:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}
