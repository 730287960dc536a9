package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bsm/internal/app"
	"bsm/internal/clock"
	"bsm/internal/config"
)

// main starts the server monitor, or only validates config with --check-config.
// Params: CLI flags (--config-file or --config-dir, optional --check-config).
// Returns: process exit code by validation/startup/run result.
func main() {
	var (
		configFile  = flag.String("config-file", "", "path to one TOML config file")
		configDir   = flag.String("config-dir", "", "path to directory with TOML config fragments")
		checkConfig = flag.Bool("check-config", false, "validate configuration and exit")
	)
	flag.Parse()

	source, err := config.FromCLI(*configFile, *configDir)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	if *checkConfig {
		cfg, err := config.LoadSnapshot(source)
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, "config invalid:", err.Error())
			os.Exit(1)
		}
		fmt.Printf("config ok: platform=%s store=%s seed_rules=%d poll_interval=%ds\n",
			cfg.Chat.Platform, cfg.Store.Backend, len(cfg.Rule), cfg.Service.PollIntervalSec)
		return
	}

	service, err := app.NewService(source, clock.RealClock{})
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service init failed:", err.Error())
		os.Exit(1)
	}

	if err := service.Run(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "service run failed:", err.Error())
		os.Exit(1)
	}
}
