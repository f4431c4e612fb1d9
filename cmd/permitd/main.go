package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/visproj/permitsync/internal/config"
	"github.com/visproj/permitsync/internal/events"
	"github.com/visproj/permitsync/internal/gatt"
	"github.com/visproj/permitsync/internal/remote"
	"github.com/visproj/permitsync/internal/scheduler"
	"github.com/visproj/permitsync/internal/store"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/permitsync/config.yaml)")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetLogLoggerLevel(config.ParseLogLevel(cfg.LogLevel))

	printBanner(cfg)

	// Open the permit store
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open permit store: %v", err)
	}
	defer st.Close()

	// Config overrides persisted state where set
	if cfg.Remote.URL != "" {
		if err := st.SetRemoteURL(cfg.Remote.URL); err != nil {
			log.Fatalf("Failed to set remote URL: %v", err)
		}
	}
	if err := st.SetDisplayFlipped(cfg.Display.Flipped); err != nil {
		log.Fatalf("Failed to set display orientation: %v", err)
	}

	syncer := remote.NewSyncer(st)
	bus := events.NewBus()
	eventCh := bus.Subscribe()

	// Start the GATT server so the display can read the permit
	server := gatt.NewServer(st, gatt.NewBlueZTransport(), bus)
	if err := server.Start(cfg.BLE.DeviceName); err != nil {
		log.Fatalf("Failed to start GATT server: %v\n\nEnsure Bluetooth is powered on and the process may use it.", err)
	}
	defer server.Stop()
	log.Printf("GATT server advertising as %q", cfg.BLE.DeviceName)

	// One sync at startup so a stale cache does not linger until the
	// first scheduled tick.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, _, err := syncer.Sync(ctx); err != nil {
			log.Printf("Startup sync failed: %v", err)
		}
	}()

	// Periodic remote sync
	var sched *scheduler.Scheduler
	if cfg.Sync.Schedule != "" {
		sched = scheduler.New(cfg.Sync.Schedule, func(ctx context.Context) error {
			_, _, err := syncer.Sync(ctx)
			return err
		})
		if err := sched.Start(); err != nil {
			log.Fatalf("Failed to start sync scheduler: %v", err)
		}
	} else {
		log.Println("Sync schedule empty, periodic sync disabled")
	}

	// Signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Ready! Ctrl+C to quit.")

	// Main event loop
	for {
		select {
		case ev := <-eventCh:
			switch ev.Type {
			case events.DeviceConnected:
				log.Printf("Display connected (%s)", ev.Device)
			case events.DeviceDisconnected:
				log.Printf("Display disconnected (%s)", ev.Device)
			case events.PermitRead:
				if ev.IsNew {
					log.Printf("Display picked up a new permit (tx %s)", ev.TxID)
				} else {
					log.Printf("Display re-read the permit (tx %s)", ev.TxID)
				}
			}

		case sig := <-sigCh:
			log.Printf("Received %s, shutting down...", sig)
			if sched != nil {
				<-sched.Stop().Done()
			}
			if err := server.Stop(); err != nil {
				log.Printf("GATT server stop: %v", err)
			}
			st.Close()
			log.Println("Goodbye!")
			return
		}
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	fmt.Println("=== permitd ===")
	fmt.Printf("  Data:      %s\n", cfg.DataDir)
	fmt.Printf("  Device:    %s\n", cfg.BLE.DeviceName)
	if cfg.Remote.URL != "" {
		fmt.Printf("  Remote:    %s\n", cfg.Remote.URL)
	}
	fmt.Printf("  Schedule:  %s\n", cfg.Sync.Schedule)
	fmt.Printf("  Flipped:   %t\n", cfg.Display.Flipped)
	fmt.Printf("  Log:       %s\n", cfg.LogLevel)
	fmt.Println("===============")
}
