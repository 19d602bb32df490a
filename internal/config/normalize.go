// internal/config/normalize.go
package config

// Defaults. Zero values in the file mean "use the default".
const (
	DefaultSize      = 3
	DefaultSwarmID   = 0xFF
	DefaultVersion   = 7
	DefaultPort      = 2901
	DefaultBroadcast = "255.255.255.255"
	DefaultIdlePoll  = 20 // ms

	DefaultTimeoutMs            = 30_000
	DefaultHousekeepingPeriodMs = 120_000
	DefaultAnnouncePeriodMs     = 300_000
	DefaultResetCooldownMs      = 3_000
	DefaultResetRepeat          = 1
	DefaultStartupReannounceMs  = 3_000
	DefaultDebounceMs           = 100

	// StartupReannounceOff in timing.startup_reannounce_ms skips the second
	// startup announce.
	StartupReannounceOff = -1

	DefaultStatusLED   = "GPIO23"
	DefaultResetButton = "GPIO15"

	DefaultMirrorIntervalMs = 1_000
	DefaultMirrorTimeoutMs  = 2_000

	DefaultDisplayBaud      = 9600
	DefaultDisplayRefreshMs = 500

	DefaultLogLevel = "info"
)

// DefaultLEDs drive slots 0..2.
var DefaultLEDs = []string{"GPIO17", "GPIO27", "GPIO22"}

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	// ---- swarm ----
	setInt(&cfg.Swarm.Size, DefaultSize)
	if cfg.Swarm.SwarmID == 0 {
		cfg.Swarm.SwarmID = DefaultSwarmID
	}
	if cfg.Swarm.Version == 0 {
		cfg.Swarm.Version = DefaultVersion
	}

	// ---- network ----
	setInt(&cfg.Network.Port, DefaultPort)
	setInt(&cfg.Network.IdlePollMs, DefaultIdlePoll)
	if cfg.Network.Broadcast == "" {
		cfg.Network.Broadcast = DefaultBroadcast
	}

	// ---- timing ----
	t := &cfg.Timing
	setInt(&t.TimeoutMs, DefaultTimeoutMs)
	setInt(&t.HousekeepingPeriodMs, DefaultHousekeepingPeriodMs)
	setInt(&t.AnnouncePeriodMs, DefaultAnnouncePeriodMs)
	setInt(&t.ResetCooldownMs, DefaultResetCooldownMs)
	setInt(&t.ResetRepeat, DefaultResetRepeat)
	setInt(&t.StartupReannounceMs, DefaultStartupReannounceMs)
	setInt(&t.DebounceMs, DefaultDebounceMs)

	// ---- gpio ----
	if cfg.GPIO.Enabled {
		if len(cfg.GPIO.LEDs) == 0 {
			cfg.GPIO.LEDs = append([]string(nil), DefaultLEDs...)
		}
		if cfg.GPIO.StatusLED == "" {
			cfg.GPIO.StatusLED = DefaultStatusLED
		}
		if cfg.GPIO.ResetButton == "" {
			cfg.GPIO.ResetButton = DefaultResetButton
		}
	}

	// ---- mirror ----
	if m := cfg.Mirror; m != nil {
		setInt(&m.IntervalMs, DefaultMirrorIntervalMs)
		setInt(&m.TimeoutMs, DefaultMirrorTimeoutMs)
	}

	// ---- display ----
	if d := cfg.Display; d != nil {
		setInt(&d.Baud, DefaultDisplayBaud)
		setInt(&d.RefreshMs, DefaultDisplayRefreshMs)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}
