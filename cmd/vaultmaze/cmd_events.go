package main

// ---------------------------------------------------------------------------
// cmd_events.go — list recent security events from the audit trail
// ---------------------------------------------------------------------------

import (
	"flag"
	"os"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/audit"
	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

func cmdEvents(args []string) {
	fs := flag.NewFlagSet("events", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	limit := fs.Int("limit", 20, "Number of events to show")
	format := fs.String("format", "table", "Output format: table, json")
	fs.Parse(args)

	cfg, err := core.LoadConfig(envConfig(*configPath))
	if err != nil {
		errorf("loading config: %v", err)
	}
	if !cfg.Audit.Enabled {
		errorf("audit trail disabled in config; no events to list")
	}

	store, err := audit.Open(cfg.Audit.Path, zerolog.Nop())
	if err != nil {
		errorf("opening audit store: %v", err)
	}
	defer store.Close()

	events, err := store.RecentEvents(*limit)
	if err != nil {
		errorf("reading events: %v", err)
	}

	if parseFormat(*format) == FormatJSON {
		writeJSON(os.Stdout, events)
		return
	}

	tbl := NewTable(os.Stdout, "TIME", "COMPONENT", "TYPE", "SEVERITY", "LAYER", "SOURCE", "SUMMARY")
	for _, ev := range events {
		layer := "-"
		if ev.Layer >= 0 {
			layer = strconv.Itoa(ev.Layer)
		}
		tbl.AddRow(ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Component, ev.Type,
			ev.Severity.String(), layer, ev.SourceIP, ev.Summary)
	}
	tbl.Render()
}
