package main

// ---------------------------------------------------------------------------
// banner.go — ASCII art banner and version/usage printing
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	"os"
	goruntime "runtime"
	"runtime/debug"
)

func bannerText() string {
	art := `
    ╔══════════════════════════════════════════════════════════╗
    ║                                                          ║
    ║   ██╗   ██╗ █████╗ ██╗   ██╗██╗  ████████╗               ║
    ║   ██║   ██║██╔══██╗██║   ██║██║  ╚══██╔══╝               ║
    ║   ██║   ██║███████║██║   ██║██║     ██║                  ║
    ║   ╚██╗ ██╔╝██╔══██║██║   ██║██║     ██║                  ║
    ║    ╚████╔╝ ██║  ██║╚██████╔╝███████╗██║                  ║
    ║     ╚═══╝  ╚═╝  ╚═╝ ╚═════╝ ╚══════╝╚═╝ M A Z E          ║
    ║                                                          ║
    ║        DECEPTION LAYER FOR CREDENTIAL VAULTS             ║
    ║                                                          ║
    ╚══════════════════════════════════════════════════════════╝
`
	if !colorEnabled() {
		return art
	}
	return "\033[36m" + art + "\033[0m"
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "vaultmaze v%s", version)
	if commit != "dev" {
		fmt.Fprintf(w, " (%s)", commit[:min(7, len(commit))])
	}
	if buildDate != "unknown" {
		fmt.Fprintf(w, " built %s", buildDate)
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, " %s", bi.GoVersion)
	}
	fmt.Fprintf(w, " %s/%s", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintln(w)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, bannerText())
	fmt.Fprintf(w, "  %s\n\n", dim("v"+version))
	fmt.Fprintf(w, "%s\n\n", bold("USAGE"))
	fmt.Fprintf(w, "  vaultmaze <command> [flags]\n\n")
	fmt.Fprintf(w, "%s\n\n", bold("COMMANDS"))
	fmt.Fprintf(w, "  %-10s  %s\n", bold("up"), "Start the maze engine in front of the vault")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("status"), "Show audit-trail counters and configuration")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("events"), "List recent security events from the audit trail")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("exports"), "List export receipts for a user")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("simulate"), "Publish a synthetic attack onto the ingress stream")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("config"), "Show or initialize configuration")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("version"), "Print version and build info")
	fmt.Fprintf(w, "  %-10s  %s\n", bold("help"), "Show help for a command")
	fmt.Fprintf(w, "\n%s\n\n", bold("GLOBAL FLAGS"))
	fmt.Fprintf(w, "  %-20s  %s\n", "--config <path>", "Config file path (default: configs/default.yaml, env: VAULTMAZE_CONFIG)")
	fmt.Fprintf(w, "  %-20s  %s\n", "--format <fmt>", "Output format: table, json (default: table)")
	fmt.Fprintf(w, "  %-20s  %s\n", "--version, -V", "Print version and exit")
	fmt.Fprintf(w, "  %-20s  %s\n", "--help, -h", "Show help")
	fmt.Fprintf(w, "\n%s\n\n", bold("EXAMPLES"))
	fmt.Fprintf(w, "  %s\n", dim("# Start with defaults"))
	fmt.Fprintf(w, "  vaultmaze up\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Inspect recent events as JSON"))
	fmt.Fprintf(w, "  vaultmaze events --limit 50 --format json\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Throw a synthetic SQL injection at a running maze"))
	fmt.Fprintf(w, "  vaultmaze simulate --type sql_injection --source 203.0.113.7 --payload \"' OR 1=1 --\"\n\n")
	fmt.Fprintf(w, "Run %s for detailed help on any command.\n\n", bold("vaultmaze help <command>"))
}

func cmdHelp(cmd string) {
	switch cmd {
	case "up":
		fmt.Println("Usage: vaultmaze up [flags]")
		fmt.Println()
		fmt.Println("Starts the full deception stack: maze layers, the shift scheduler,")
		fmt.Println("the threat scorer, the one-way boundary, and the embedded event bus.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --config <path>     Config file path")
		fmt.Println("  --log-level <lvl>   Log level override: debug, info, warn, error")
		fmt.Println("  --dry-run           Validate config and exit")
		fmt.Println("  --quiet, -q         Suppress banner")
		fmt.Println("  --no-color          Disable color output")
	case "status":
		fmt.Println("Usage: vaultmaze status [flags]")
		fmt.Println()
		fmt.Println("Reads the audit database and prints event and export counters.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --config <path>   Config file path")
		fmt.Println("  --format <fmt>    Output format: table, json")
	case "events":
		fmt.Println("Usage: vaultmaze events [flags]")
		fmt.Println()
		fmt.Println("Lists recent security events from the audit trail, newest first.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --config <path>   Config file path")
		fmt.Println("  --limit <n>       Number of events (default 20)")
		fmt.Println("  --format <fmt>    Output format: table, json")
	case "exports":
		fmt.Println("Usage: vaultmaze exports --user <id> [flags]")
		fmt.Println()
		fmt.Println("Lists export receipts recorded for a user, newest first.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --config <path>   Config file path")
		fmt.Println("  --user <id>       User ID (required)")
		fmt.Println("  --format <fmt>    Output format: table, json")
	case "simulate":
		fmt.Println("Usage: vaultmaze simulate [flags]")
		fmt.Println()
		fmt.Println("Publishes a synthetic attack onto the ingress stream of a running")
		fmt.Println("instance. The maze routes it like any hostile request.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --config <path>     Config file path")
		fmt.Println("  --type <type>       Attack type (default unknown)")
		fmt.Println("  --source <ip>       Source IP (default 203.0.113.1)")
		fmt.Println("  --target <path>     Target path (default /api/login)")
		fmt.Println("  --payload <data>    Attack payload")
		fmt.Println("  --agent <ua>        User agent string")
		fmt.Println("  --count <n>         Repeat the attack n times (default 1)")
	case "config":
		fmt.Println("Usage: vaultmaze config <show|init> [flags]")
		fmt.Println()
		fmt.Println("show   Print the effective configuration")
		fmt.Println("init   Write a starter config file")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --config <path>   Config file path")
		fmt.Println("  --force           Overwrite an existing file on init")
	default:
		printUsage(os.Stdout)
	}
}
