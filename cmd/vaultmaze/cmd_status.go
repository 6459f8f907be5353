package main

// ---------------------------------------------------------------------------
// cmd_status.go — audit-trail counters and configuration summary
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/audit"
	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

func cmdStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	format := fs.String("format", "table", "Output format: table, json")
	fs.Parse(args)

	cfg, err := core.LoadConfig(envConfig(*configPath))
	if err != nil {
		errorf("loading config: %v", err)
	}
	if !cfg.Audit.Enabled {
		errorf("audit trail disabled in config; nothing to report")
	}

	store, err := audit.Open(cfg.Audit.Path, zerolog.Nop())
	if err != nil {
		errorf("opening audit store: %v", err)
	}
	defer store.Close()

	eventCount, err := store.EventCount()
	if err != nil {
		errorf("counting events: %v", err)
	}
	recent, err := store.RecentEvents(5)
	if err != nil {
		errorf("reading events: %v", err)
	}

	if parseFormat(*format) == FormatJSON {
		writeJSON(os.Stdout, map[string]interface{}{
			"audit_path":    cfg.Audit.Path,
			"event_count":   eventCount,
			"recent_events": recent,
		})
		return
	}

	fmt.Printf("%s %s\n\n", bold("Audit trail:"), cfg.Audit.Path)
	fmt.Printf("  events recorded: %d\n\n", eventCount)
	if len(recent) > 0 {
		tbl := NewTable(os.Stdout, "TIME", "COMPONENT", "TYPE", "SEVERITY", "SUMMARY")
		for _, ev := range recent {
			tbl.AddRow(ev.Timestamp.Format("15:04:05"), ev.Component, ev.Type, ev.Severity.String(), ev.Summary)
		}
		tbl.Render()
	}
}
