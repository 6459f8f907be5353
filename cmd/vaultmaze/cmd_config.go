package main

// ---------------------------------------------------------------------------
// cmd_config.go — show or initialize configuration
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

func cmdConfig(args []string) {
	if len(args) < 1 {
		errorf("usage: vaultmaze config <show|init> [flags]")
	}
	sub := args[0]
	rest := args[1:]

	fs := flag.NewFlagSet("config "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	force := fs.Bool("force", false, "Overwrite an existing file on init")
	fs.Parse(rest)

	path := envConfig(*configPath)

	switch sub {
	case "show":
		cfg, err := core.LoadConfig(path)
		if err != nil {
			errorf("loading config: %v", err)
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			errorf("encoding config: %v", err)
		}
		os.Stdout.Write(out)
	case "init":
		if _, err := os.Stat(path); err == nil && !*force {
			errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := core.SaveConfig(core.DefaultConfig(), path); err != nil {
			errorf("writing config: %v", err)
		}
		fmt.Fprintf(os.Stderr, "%s wrote %s\n", green("✓"), path)
	default:
		errorf("unknown config subcommand %q (want show or init)", sub)
	}
}
