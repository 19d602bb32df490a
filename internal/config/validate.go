// internal/config/validate.go
package config

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"github.com/tamzrod/swarm-monitor/internal/mirror"
)

// MaxSwarmSize bounds the slot table.
const MaxSwarmSize = 32

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
// Zero values are accepted wherever Normalize supplies a default.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// SWARM
	// ------------------------------------------------------------

	size := cfg.Swarm.Size
	if size == 0 {
		size = DefaultSize
	}
	if size < 1 || size > MaxSwarmSize {
		return fmt.Errorf("swarm.size %d out of range 1..%d", cfg.Swarm.Size, MaxSwarmSize)
	}

	// ------------------------------------------------------------
	// NETWORK
	// ------------------------------------------------------------

	n := cfg.Network
	if n.Port < 0 || n.Port > 65535 {
		return fmt.Errorf("network.port %d out of range", n.Port)
	}
	if n.Broadcast != "" && !isIPv4(n.Broadcast) {
		return fmt.Errorf("network.broadcast %q is not an IPv4 address", n.Broadcast)
	}
	if n.AnnounceAddress != "" && !isIPv4(n.AnnounceAddress) {
		return fmt.Errorf("network.announce_address %q is not an IPv4 address", n.AnnounceAddress)
	}
	if n.IdlePollMs < 0 || n.IdlePollMs > 50 {
		return fmt.Errorf("network.idle_poll_ms %d out of range 0..50", n.IdlePollMs)
	}

	// ------------------------------------------------------------
	// TIMING
	// ------------------------------------------------------------

	t := cfg.Timing
	for _, f := range []struct {
		name string
		v    int
	}{
		{"timing.timeout_ms", t.TimeoutMs},
		{"timing.housekeeping_period_ms", t.HousekeepingPeriodMs},
		{"timing.announce_period_ms", t.AnnouncePeriodMs},
		{"timing.reset_cooldown_ms", t.ResetCooldownMs},
		{"timing.reset_repeat", t.ResetRepeat},
		{"timing.debounce_ms", t.DebounceMs},
	} {
		if f.v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", f.name, f.v)
		}
	}
	if t.StartupReannounceMs < StartupReannounceOff {
		return fmt.Errorf("timing.startup_reannounce_ms must be >= %d, got %d", StartupReannounceOff, t.StartupReannounceMs)
	}

	// ------------------------------------------------------------
	// GPIO (OPT-IN)
	// ------------------------------------------------------------

	if g := cfg.GPIO; g.Enabled {
		leds := len(g.LEDs)
		if leds == 0 {
			leds = len(DefaultLEDs)
		}
		if leds != size {
			return fmt.Errorf("gpio.leds: %d LEDs for swarm size %d", leds, size)
		}

		seen := make(map[string]string)
		claim := func(pin, use string) error {
			if pin == "" {
				return nil
			}
			if prev, ok := seen[pin]; ok {
				return fmt.Errorf("gpio: pin %s used as %s and %s", pin, prev, use)
			}
			seen[pin] = use
			return nil
		}
		for i, p := range g.LEDs {
			if p == "" {
				return fmt.Errorf("gpio.leds[%d] is empty", i)
			}
			if err := claim(p, fmt.Sprintf("led %d", i)); err != nil {
				return err
			}
		}
		if err := claim(g.StatusLED, "status_led"); err != nil {
			return err
		}
		if err := claim(g.ResetButton, "reset_button"); err != nil {
			return err
		}
	}

	// ------------------------------------------------------------
	// MIRROR (OPT-IN)
	// ------------------------------------------------------------

	if m := cfg.Mirror; m != nil {
		if m.Endpoint == "" {
			return fmt.Errorf("mirror.endpoint is required when mirror is set")
		}
		if m.IntervalMs < 0 || m.TimeoutMs < 0 {
			return fmt.Errorf("mirror: interval_ms and timeout_ms must not be negative")
		}
		blockLen := mirror.BlockLen(size)
		if int(m.BaseAddress)+blockLen > 65536 {
			return fmt.Errorf("mirror.base_address %d: block of %d registers does not fit", m.BaseAddress, blockLen)
		}
	}

	// ------------------------------------------------------------
	// DISPLAY (OPT-IN)
	// ------------------------------------------------------------

	if d := cfg.Display; d != nil {
		if d.Port == "" {
			return fmt.Errorf("display.port is required when display is set")
		}
		if d.Baud < 0 || d.RefreshMs < 0 {
			return fmt.Errorf("display: baud and refresh_ms must not be negative")
		}
		for i := 0; i < len(d.AddressPrefix); i++ {
			if d.AddressPrefix[i] > 0x7F {
				return fmt.Errorf("display.address_prefix must contain ASCII characters only")
			}
		}
	}

	// ------------------------------------------------------------
	// LOG
	// ------------------------------------------------------------

	if cfg.Log.Level != "" {
		if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
			return fmt.Errorf("log.level: %w", err)
		}
	}

	return nil
}

func isIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}
