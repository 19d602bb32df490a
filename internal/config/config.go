// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Swarm   SwarmConfig    `yaml:"swarm"`
	Network NetworkConfig  `yaml:"network"`
	Timing  TimingConfig   `yaml:"timing"`
	GPIO    GPIOConfig     `yaml:"gpio"`
	Mirror  *MirrorConfig  `yaml:"mirror"`  // optional, opt-in
	Display *DisplayConfig `yaml:"display"` // optional, opt-in
	Log     LogConfig      `yaml:"log"`
}

// ---- SWARM ----

type SwarmConfig struct {
	Size    int   `yaml:"size"`
	SwarmID uint8 `yaml:"swarm_id"` // id the monitor announces with
	Version uint8 `yaml:"version"`
}

// ---- NETWORK ----

type NetworkConfig struct {
	Port            int    `yaml:"port"`
	Broadcast       string `yaml:"broadcast"`
	Interface       string `yaml:"interface"`
	AnnounceAddress string `yaml:"announce_address"` // overrides the interface address
	IdlePollMs      int    `yaml:"idle_poll_ms"`
}

// ---- TIMING ----

type TimingConfig struct {
	TimeoutMs            int `yaml:"timeout_ms"`
	HousekeepingPeriodMs int `yaml:"housekeeping_period_ms"`
	AnnouncePeriodMs     int `yaml:"announce_period_ms"`
	ResetCooldownMs      int `yaml:"reset_cooldown_ms"`
	ResetRepeat          int `yaml:"reset_repeat"`
	StartupReannounceMs  int `yaml:"startup_reannounce_ms"` // -1 disables
	DebounceMs           int `yaml:"debounce_ms"`
}

// ---- GPIO ----

type GPIOConfig struct {
	Enabled     bool     `yaml:"enabled"`
	LEDs        []string `yaml:"leds"` // one per slot, in slot order
	StatusLED   string   `yaml:"status_led"`
	ResetButton string   `yaml:"reset_button"`
}

// ---- MIRROR ----

type MirrorConfig struct {
	Endpoint    string `yaml:"endpoint"`
	UnitID      uint8  `yaml:"unit_id"`
	BaseAddress uint16 `yaml:"base_address"`
	IntervalMs  int    `yaml:"interval_ms"`
	TimeoutMs   int    `yaml:"timeout_ms"`
}

// ---- DISPLAY ----

type DisplayConfig struct {
	Port          string `yaml:"port"`
	Baud          int    `yaml:"baud"`
	AddressPrefix string `yaml:"address_prefix"`
	RefreshMs     int    `yaml:"refresh_ms"`
}

// ---- LOG ----

type LogConfig struct {
	Level   string `yaml:"level"`
	Console bool   `yaml:"console"`
}

// Load reads a YAML config file. Unknown keys are rejected.
// An empty file yields a zero Config that Normalize fills with defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses YAML config from r.
func Decode(r io.Reader) (*Config, error) {
	var cfg Config

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func (t TimingConfig) Timeout() time.Duration { return ms(t.TimeoutMs) }
func (t TimingConfig) HousekeepingPeriod() time.Duration { return ms(t.HousekeepingPeriodMs) }
func (t TimingConfig) AnnouncePeriod() time.Duration { return ms(t.AnnouncePeriodMs) }
func (t TimingConfig) ResetCooldown() time.Duration { return ms(t.ResetCooldownMs) }

// StartupReannounce is 0 when the second startup announce is disabled.
func (t TimingConfig) StartupReannounce() time.Duration {
	if t.StartupReannounceMs < 0 {
		return 0
	}
	return ms(t.StartupReannounceMs)
}

func (t TimingConfig) Debounce() time.Duration { return ms(t.DebounceMs) }

func (n NetworkConfig) IdlePoll() time.Duration { return ms(n.IdlePollMs) }

func (m MirrorConfig) Interval() time.Duration { return ms(m.IntervalMs) }
func (m MirrorConfig) Timeout() time.Duration { return ms(m.TimeoutMs) }
func (d DisplayConfig) Refresh() time.Duration { return ms(d.RefreshMs) }
