// Command blescreen runs the Bluetooth device screen with a text console
// as its renderer.
//
// Usage:
//
//	blescreen [-config path] [-init]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/blescreen/internal/ble"
	"github.com/chaz8081/blescreen/internal/config"
	"github.com/chaz8081/blescreen/internal/connection"
	"github.com/chaz8081/blescreen/internal/notify"
	"github.com/chaz8081/blescreen/internal/permission"
	"github.com/chaz8081/blescreen/internal/scan"
	"github.com/chaz8081/blescreen/internal/screen"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/blescreen/config.yaml)")
	initConfig := flag.Bool("init", false, "write a default config file and exit")
	flag.Parse()

	if *initConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			fmt.Printf("Config already exists at %s\n", config.DefaultConfigPath())
			return
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	})))

	printBanner(cfg)

	locale, err := notify.NewLocalizer(cfg.Locale)
	if err != nil {
		log.Fatalf("locale: %v", err)
	}

	scr := screen.New(ble.NewTinyGoStack(), newProvider(cfg), screen.Options{
		Enabled:   cfg.Bluetooth.Enabled,
		AutoScan:  cfg.Scan.AutoStart,
		FreshList: cfg.Scan.FreshList,
		Scan: scan.Options{
			ServiceUUIDs:    cfg.Scan.ServiceUUIDs,
			Duration:        cfg.ScanDuration(),
			AllowDuplicates: cfg.Scan.AllowDuplicates,
		},
		Connection: connection.Options{
			Timeout:          cfg.ConnectTimeout(),
			RetrieveServices: cfg.Connect.RetrieveServices,
		},
		Start:  ble.StartOptions{ShowAlert: cfg.Bluetooth.ShowAlert},
		Locale: locale,
	})

	// Signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scr.Run(ctx)
	})
	g.Go(func() error {
		defer scr.Close()
		return newConsole(scr, os.Stdin, os.Stdout).Run(ctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("blescreen: %v", err)
	}
	fmt.Println("Goodbye!")
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

func newProvider(cfg *config.Config) permission.Provider {
	if cfg.Permissions.Provider == "static" {
		return permission.StaticProvider{Granted: cfg.GrantedCapabilities()}
	}
	return permission.BlueZProvider{}
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	services := "any"
	if len(cfg.Scan.ServiceUUIDs) > 0 {
		services = strings.Join(cfg.Scan.ServiceUUIDs, ", ")
	}
	fmt.Println("=== blescreen ===")
	fmt.Printf("  Bluetooth:   %v\n", cfg.Bluetooth.Enabled)
	fmt.Printf("  Scan:        %s (auto: %v, services: %s)\n", cfg.ScanDuration(), cfg.Scan.AutoStart, services)
	fmt.Printf("  Connect:     timeout %s\n", cfg.ConnectTimeout())
	fmt.Printf("  Permissions: %s\n", cfg.Permissions.Provider)
	fmt.Printf("  Locale:      %s\n", cfg.Locale)
	fmt.Printf("  Log:         %s\n", cfg.LogLevel)
	fmt.Println("=================")
}
