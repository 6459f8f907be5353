package main

// ---------------------------------------------------------------------------
// cmd_exports.go — list export receipts for a user
// ---------------------------------------------------------------------------

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/vaultmaze-project/vaultmaze/internal/audit"
	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

func cmdExports(args []string) {
	fs := flag.NewFlagSet("exports", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Config file path")
	user := fs.String("user", "", "User ID (required)")
	format := fs.String("format", "table", "Output format: table, json")
	fs.Parse(args)

	if *user == "" {
		errorf("--user is required")
	}

	cfg, err := core.LoadConfig(envConfig(*configPath))
	if err != nil {
		errorf("loading config: %v", err)
	}
	if !cfg.Audit.Enabled {
		errorf("audit trail disabled in config; no receipts to list")
	}

	store, err := audit.Open(cfg.Audit.Path, zerolog.Nop())
	if err != nil {
		errorf("opening audit store: %v", err)
	}
	defer store.Close()

	recs, err := store.ExportsForUser(*user)
	if err != nil {
		errorf("reading export receipts: %v", err)
	}

	if parseFormat(*format) == FormatJSON {
		writeJSON(os.Stdout, recs)
		return
	}
	if len(recs) == 0 {
		fmt.Printf("No export receipts for user %s.\n", *user)
		return
	}

	tbl := NewTable(os.Stdout, "TIME", "EXPORT ID", "EXIT ID", "DATA TYPE", "DATA ID")
	for _, rec := range recs {
		tbl.AddRow(rec.Timestamp.Format("2006-01-02 15:04:05"), rec.ID, rec.ExitID, rec.DataType, rec.DataID)
	}
	tbl.Render()
}
