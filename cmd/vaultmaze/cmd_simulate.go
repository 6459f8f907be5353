package main

// ---------------------------------------------------------------------------
// cmd_simulate.go — publish synthetic attacks onto the ingress stream
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

func cmdSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	attackType := fs.String("type", "unknown", "Attack type")
	source := fs.String("source", "203.0.113.1", "Source IP")
	target := fs.String("target", "/api/login", "Target path")
	payload := fs.String("payload", "", "Attack payload")
	agent := fs.String("agent", "vaultmaze-simulate/1.0", "User agent string")
	count := fs.Int("count", 1, "Repeat the attack n times")
	fs.Parse(args)

	cfg, err := core.LoadConfig(envConfig(*configPath))
	if err != nil {
		errorf("loading config: %v", err)
	}

	// Connect to the running instance's bus, never start our own.
	busCfg := cfg.Bus
	busCfg.Embedded = false
	if busCfg.URL == "" {
		busCfg.URL = fmt.Sprintf("nats://127.0.0.1:%d", cfg.Bus.Port)
	}
	bus, err := core.NewEventBus(&busCfg, zerolog.Nop())
	if err != nil {
		errorf("connecting to bus (is vaultmaze up?): %v", err)
	}
	defer bus.Close()

	for i := 0; i < *count; i++ {
		attack := core.NewAttackDescriptor(core.ParseAttackType(*attackType),
			*source, *agent, *target, *payload, nil)
		data, err := attack.Marshal()
		if err != nil {
			errorf("encoding attack: %v", err)
		}
		if err := bus.PublishIngress("attack", data); err != nil {
			errorf("publishing attack: %v", err)
		}
		fmt.Fprintf(os.Stderr, "%s attack %s published (%s from %s)\n",
			green("✓"), attack.ID, attack.Type, attack.SourceIP)
	}
}
