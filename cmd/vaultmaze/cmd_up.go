package main

// ---------------------------------------------------------------------------
// cmd_up.go — start the vaultmaze engine
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
	"github.com/vaultmaze-project/vaultmaze/internal/engine"
	"github.com/vaultmaze-project/vaultmaze/internal/maze"
)

func cmdUp(args []string) {
	fs := flag.NewFlagSet("up", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	logLevel := fs.String("log-level", "", "Log level override: debug, info, warn, error")
	dryRun := fs.Bool("dry-run", false, "Validate config and exit")
	quiet := fs.Bool("quiet", false, "Suppress banner and non-essential output")
	fs.BoolVar(quiet, "q", false, "Suppress banner and non-essential output")
	noColor := fs.Bool("no-color", false, "Disable color output")
	fs.Parse(args)

	*configPath = envConfig(*configPath)

	if *noColor {
		os.Setenv("NO_COLOR", "1")
	}

	if !*quiet {
		fmt.Fprint(os.Stderr, bannerText())
	}

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		errorf("loading config: %v", err)
	}

	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	if *dryRun {
		fmt.Fprintf(os.Stdout, "%s Config valid. %d maze layers, audit %s.\n",
			green("✓"), maze.LayerCount, onOff(cfg.Audit.Enabled))
		os.Exit(0)
	}

	eng, err := engine.New(cfg)
	if err != nil {
		errorf("creating engine: %v", err)
	}
	eng.SetConfigPath(*configPath)

	if !*quiet {
		fmt.Fprintf(os.Stderr, "%s Starting vaultmaze engine...\n", dim("▸"))
	}

	if err := eng.Run(); err != nil {
		errorf("engine: %v", err)
	}
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
