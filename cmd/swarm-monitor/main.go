// cmd/swarm-monitor/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/tamzrod/swarm-monitor/internal/config"
	"github.com/tamzrod/swarm-monitor/internal/display"
	"github.com/tamzrod/swarm-monitor/internal/indicator"
	"github.com/tamzrod/swarm-monitor/internal/logging"
	"github.com/tamzrod/swarm-monitor/internal/mirror"
	mirrormodbus "github.com/tamzrod/swarm-monitor/internal/mirror/modbus"
	"github.com/tamzrod/swarm-monitor/internal/monitor"
	"github.com/tamzrod/swarm-monitor/internal/swarm"
	"github.com/tamzrod/swarm-monitor/internal/transport"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: swarm-monitor <config.yaml>")
		os.Exit(2)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config validation failed: %v\n", err)
		os.Exit(1)
	}
	config.Normalize(cfg)

	if err := logging.Setup(cfg.Log.Level, cfg.Log.Console); err != nil {
		fmt.Fprintf(os.Stderr, "logging setup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("swarm monitor stopped")
	}
	log.Info().Msg("swarm monitor stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	serverIP, err := announceAddress(cfg.Network)
	if err != nil {
		return err
	}

	// --------------------
	// Transport
	// --------------------

	conn, err := transport.Listen(ctx, transport.Config{
		Port:      cfg.Network.Port,
		Broadcast: cfg.Network.Broadcast,
	})
	if err != nil {
		return err
	}
	defer conn.Close()

	// --------------------
	// Indicators (optional)
	// --------------------

	var (
		bank       *indicator.Bank
		engineOpts []swarm.Option
		status     swarm.StatusIndicator
	)
	if cfg.GPIO.Enabled {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("gpio host init: %w", err)
		}
		bank, err = indicator.OpenBank(cfg.GPIO.LEDs, cfg.GPIO.StatusLED)
		if err != nil {
			return err
		}
		defer bank.Off()

		engineOpts = append(engineOpts, swarm.WithIndicators(bank))
		status = bank
	}

	// --------------------
	// Core
	// --------------------

	engine, err := swarm.NewEngine(cfg.Swarm.Size, engineOpts...)
	if err != nil {
		return err
	}

	coord, err := swarm.NewCoordinator(engine, conn, swarm.CoordinatorConfig{
		Cooldown: cfg.Timing.ResetCooldown(),
		Repeat:   cfg.Timing.ResetRepeat,
		Version:  cfg.Swarm.Version,
	}, status)
	if err != nil {
		return err
	}

	mon, err := monitor.New(monitor.Config{
		IdlePoll:           cfg.Network.IdlePoll(),
		MemberTimeout:      cfg.Timing.Timeout(),
		HousekeepingPeriod: cfg.Timing.HousekeepingPeriod(),
		AnnouncePeriod:     cfg.Timing.AnnouncePeriod(),
		StartupReannounce:  cfg.Timing.StartupReannounce(),
		ServerAddr:         serverIP,
		SwarmID:            cfg.Swarm.SwarmID,
		Version:            cfg.Swarm.Version,
	}, engine, conn, monitor.WithHousekeeping(func(slot int) {
		if v, err := engine.SlotView(slot); err == nil {
			log.Debug().
				Int("slot", slot).
				Uint8("device", v.DeviceID).
				Stringer("presence", v.Presence).
				Stringer("role", v.Role).
				Msg("slot check")
		}
	}))
	if err != nil {
		return err
	}

	log.Info().
		Int("size", engine.Size()).
		Int("port", cfg.Network.Port).
		Stringer("server", serverIP).
		Msg("swarm monitor starting")

	// --------------------
	// Activities
	// --------------------

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Error().Err(err).Str("activity", name).Msg("activity failed")
			errOnce.Do(func() {
				firstErr = fmt.Errorf("%s: %w", name, err)
				cancel()
			})
		}()
	}

	start("receive", mon.Run)

	if bank != nil {
		blinker, err := indicator.NewBlinker(engine, bank, cfg.Network.IdlePoll())
		if err != nil {
			return err
		}
		start("blink", blinker.Run)

		if cfg.GPIO.ResetButton != "" {
			pin := gpioreg.ByName(cfg.GPIO.ResetButton)
			if pin == nil {
				return fmt.Errorf("gpio: unknown reset button pin %q", cfg.GPIO.ResetButton)
			}
			btn, err := indicator.NewButton(pin, cfg.Timing.Debounce(), coord.Reset)
			if err != nil {
				return err
			}
			start("button", btn.Run)
		}
	}

	if m := cfg.Mirror; m != nil {
		cli, err := mirrormodbus.NewEndpointClient(mirrormodbus.Config{
			Endpoint: m.Endpoint,
			Timeout:  m.Timeout(),
		})
		if err != nil {
			return err
		}
		defer cli.Close()

		w, err := mirror.NewWriter(cli, m.UnitID, m.BaseAddress)
		if err != nil {
			return err
		}
		pub, err := mirror.NewPublisher(engine, w, m.Interval(), nil)
		if err != nil {
			return err
		}
		start("mirror", pub.Run)
	}

	if d := cfg.Display; d != nil {
		panel, err := display.Open(display.Config{
			Port:          d.Port,
			Baud:          d.Baud,
			AddressPrefix: d.AddressPrefix,
			Refresh:       d.Refresh(),
		}, engine)
		if err != nil {
			return err
		}
		start("display", panel.Run)
	}

	<-ctx.Done()
	// unblock the receive loop before waiting
	_ = conn.Close()
	wg.Wait()

	return firstErr
}

// announceAddress picks the IPv4 address members should log to.
func announceAddress(n config.NetworkConfig) (net.IP, error) {
	if n.AnnounceAddress != "" {
		ip := net.ParseIP(n.AnnounceAddress).To4()
		if ip == nil {
			return nil, fmt.Errorf("network.announce_address %q is not IPv4", n.AnnounceAddress)
		}
		return ip, nil
	}
	return transport.LocalIPv4(n.Interface)
}
