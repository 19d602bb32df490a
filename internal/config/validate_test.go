// internal/config/validate_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// helper to build a gpio-enabled config quickly
func gpioConfig(size int, leds ...string) *Config {
	return &Config{
		Swarm: SwarmConfig{Size: size},
		GPIO: GPIOConfig{
			Enabled: true,
			LEDs:    leds,
		},
	}
}

// ---- tests ----

func TestValidate_EmptyConfigIsValid(t *testing.T) {
	if err := Validate(&Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_SwarmSizeRange(t *testing.T) {
	for _, size := range []int{-1, 33, 1000} {
		cfg := &Config{Swarm: SwarmConfig{Size: size}}
		if err := Validate(cfg); err == nil {
			t.Fatalf("expected error for size %d", size)
		}
	}
	for _, size := range []int{1, 3, 32} {
		cfg := &Config{Swarm: SwarmConfig{Size: size}}
		if err := Validate(cfg); err != nil {
			t.Fatalf("size %d: unexpected error: %v", size, err)
		}
	}
}

func TestValidate_LEDCountMustMatchSize(t *testing.T) {
	if err := Validate(gpioConfig(3)); err != nil {
		t.Fatalf("default LEDs must cover default size: %v", err)
	}

	err := Validate(gpioConfig(4))
	if err == nil {
		t.Fatalf("expected LED count error")
	}
	if !strings.Contains(err.Error(), "gpio.leds") {
		t.Fatalf("error should name gpio.leds, got: %v", err)
	}

	if err := Validate(gpioConfig(2, "GPIO5", "GPIO6")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_GPIOPinCollision(t *testing.T) {
	cfg := gpioConfig(2, "GPIO5", "GPIO6")
	cfg.GPIO.ResetButton = "GPIO5"

	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected collision error")
	}
	if !strings.Contains(err.Error(), "GPIO5") {
		t.Fatalf("error should name the pin, got: %v", err)
	}
}

func TestValidate_GPIODisabledIgnoresLEDs(t *testing.T) {
	cfg := &Config{
		Swarm: SwarmConfig{Size: 5},
		GPIO:  GPIOConfig{LEDs: []string{"GPIO5"}},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NegativeTiming(t *testing.T) {
	cfg := &Config{Timing: TimingConfig{ResetCooldownMs: -1}}
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "reset_cooldown_ms") {
		t.Fatalf("expected reset_cooldown_ms error, got: %v", err)
	}
}

func TestStartupReannounce_CanBeDisabled(t *testing.T) {
	cfg := &Config{Timing: TimingConfig{StartupReannounceMs: StartupReannounceOff}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	Normalize(cfg)

	if cfg.Timing.StartupReannounceMs != StartupReannounceOff {
		t.Fatalf("disable value overwritten: %d", cfg.Timing.StartupReannounceMs)
	}
	if d := cfg.Timing.StartupReannounce(); d != 0 {
		t.Fatalf("expected 0 duration when disabled, got %v", d)
	}

	cfg.Timing.StartupReannounceMs = -2
	if err := Validate(cfg); err == nil || !strings.Contains(err.Error(), "startup_reannounce_ms") {
		t.Fatalf("expected startup_reannounce_ms error, got: %v", err)
	}
}

func TestValidate_Network(t *testing.T) {
	cases := []NetworkConfig{
		{Port: 70000},
		{Broadcast: "not-an-ip"},
		{AnnounceAddress: "::1"},
		{IdlePollMs: 500},
	}
	for i, n := range cases {
		if err := Validate(&Config{Network: n}); err == nil {
			t.Fatalf("case %d: expected error for %+v", i, n)
		}
	}
}

func TestValidate_MirrorRequiresEndpointAndFits(t *testing.T) {
	if err := Validate(&Config{Mirror: &MirrorConfig{}}); err == nil {
		t.Fatalf("expected endpoint error")
	}

	cfg := &Config{
		Swarm:  SwarmConfig{Size: 32},
		Mirror: &MirrorConfig{Endpoint: "127.0.0.1:502", BaseAddress: 65400},
	}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected block fit error")
	}

	cfg.Mirror.BaseAddress = 1000
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_DisplayAndLog(t *testing.T) {
	if err := Validate(&Config{Display: &DisplayConfig{}}); err == nil {
		t.Fatalf("expected display port error")
	}
	if err := Validate(&Config{Display: &DisplayConfig{Port: "/dev/ttyUSB0", AddressPrefix: "10.0.0.é"}}); err == nil {
		t.Fatalf("expected ASCII error")
	}
	if err := Validate(&Config{Log: LogConfig{Level: "loud"}}); err == nil {
		t.Fatalf("expected log level error")
	}
}

func TestNormalize_Defaults(t *testing.T) {
	cfg := &Config{GPIO: GPIOConfig{Enabled: true}, Mirror: &MirrorConfig{Endpoint: "x:502"}, Display: &DisplayConfig{Port: "/dev/ttyS0"}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
	Normalize(cfg)

	if cfg.Swarm.Size != 3 || cfg.Swarm.SwarmID != 0xFF || cfg.Swarm.Version != 7 {
		t.Fatalf("swarm defaults: %+v", cfg.Swarm)
	}
	if cfg.Network.Port != 2901 || cfg.Network.Broadcast != "255.255.255.255" || cfg.Network.IdlePollMs != 20 {
		t.Fatalf("network defaults: %+v", cfg.Network)
	}
	want := TimingConfig{
		TimeoutMs:            30_000,
		HousekeepingPeriodMs: 120_000,
		AnnouncePeriodMs:     300_000,
		ResetCooldownMs:      3_000,
		ResetRepeat:          1,
		StartupReannounceMs:  3_000,
		DebounceMs:           100,
	}
	if cfg.Timing != want {
		t.Fatalf("timing defaults: got %+v want %+v", cfg.Timing, want)
	}
	if strings.Join(cfg.GPIO.LEDs, ",") != "GPIO17,GPIO27,GPIO22" || cfg.GPIO.StatusLED != "GPIO23" || cfg.GPIO.ResetButton != "GPIO15" {
		t.Fatalf("gpio defaults: %+v", cfg.GPIO)
	}
	if cfg.Mirror.IntervalMs != 1000 || cfg.Display.RefreshMs != 500 || cfg.Display.Baud != 9600 {
		t.Fatalf("opt-in defaults: %+v %+v", cfg.Mirror, cfg.Display)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level default: %q", cfg.Log.Level)
	}

	// defaults must not alias the package slice
	cfg.GPIO.LEDs[0] = "GPIO99"
	if DefaultLEDs[0] != "GPIO17" {
		t.Fatalf("DefaultLEDs mutated through normalized config")
	}
}

func TestNormalize_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Swarm:  SwarmConfig{Size: 5, SwarmID: 9, Version: 3},
		Timing: TimingConfig{TimeoutMs: 1500},
	}
	Normalize(cfg)

	if cfg.Swarm.Size != 5 || cfg.Swarm.SwarmID != 9 || cfg.Swarm.Version != 3 {
		t.Fatalf("explicit swarm values overwritten: %+v", cfg.Swarm)
	}
	if cfg.Timing.Timeout().Milliseconds() != 1500 {
		t.Fatalf("explicit timeout overwritten: %v", cfg.Timing.Timeout())
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "swarm.yaml")

	doc := `
swarm:
  size: 4
network:
  interface: eth0
timing:
  reset_cooldown_ms: 5000
gpio:
  enabled: true
  leds: [GPIO5, GPIO6, GPIO13, GPIO19]
mirror:
  endpoint: 127.0.0.1:502
  unit_id: 2
log:
  level: debug
  console: true
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Swarm.Size != 4 || cfg.Network.Interface != "eth0" || cfg.Timing.ResetCooldownMs != 5000 {
		t.Fatalf("decoded values mismatch: %+v", cfg)
	}
	if len(cfg.GPIO.LEDs) != 4 || cfg.Mirror == nil || cfg.Mirror.UnitID != 2 || !cfg.Log.Console {
		t.Fatalf("decoded sections mismatch: %+v", cfg)
	}
	if cfg.Display != nil {
		t.Fatalf("display must stay nil when absent")
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("swarm:\n  sise: 3\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if cfg.Swarm.Size != 0 {
		t.Fatalf("expected zero config")
	}
}
