// Command deskthing-log is a tool for viewing and analyzing protocol event
// files recorded by deskthing-client -protocol-log.
//
// Usage:
//
//	deskthing-log <command> [flags] <file.dtlog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSONL or CSV format
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	deskthing-log view session.dtlog
//
//	# View only inbound heartbeat traffic
//	deskthing-log view -direction in -category control session.dtlog
//
//	# View messages from one app
//	deskthing-log view -app spotify session.dtlog
//
//	# Show statistics
//	deskthing-log stats session.dtlog
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/zanderp25/DeskThing-Client/cmd/deskthing-log/commands"
	"github.com/zanderp25/DeskThing-Client/pkg/protolog"
)

const usage = `deskthing-log - DeskThing Protocol Log Analyzer

Usage:
  deskthing-log <command> [flags] <file.dtlog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSONL or CSV format
  stats    Show statistics about the log file

Use "deskthing-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `deskthing-log view - View log file in human-readable format

Usage:
  deskthing-log view [flags] <file.dtlog>

Flags:
`)
		fs.PrintDefaults()
	}

	layer := fs.String("layer", "", "Filter by layer (transport, wire, client)")
	direction := fs.String("direction", "", "Filter by direction (in, out)")
	category := fs.String("category", "", "Filter by category (message, control, state, error)")
	connID := fs.String("conn-id", "", "Filter by connection ID")
	app := fs.String("app", "", "Filter messages by app")
	since := fs.String("since", "", "Only events at or after this time (RFC3339)")
	until := fs.String("until", "", "Only events before this time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	// Build filter
	filter := protolog.Filter{ConnectionID: *connID, App: *app}

	if *layer != "" {
		l, err := commands.ParseLayerFlag(*layer)
		exitOnError(err)
		filter.Layer = &l
	}

	if *direction != "" {
		d, err := commands.ParseDirectionFlag(*direction)
		exitOnError(err)
		filter.Direction = &d
	}

	if *category != "" {
		c, err := commands.ParseCategoryFlag(*category)
		exitOnError(err)
		filter.Category = &c
	}

	if *since != "" {
		ts, err := time.Parse(time.RFC3339, *since)
		exitOnError(err)
		filter.TimeStart = &ts
	}

	if *until != "" {
		ts, err := time.Parse(time.RFC3339, *until)
		exitOnError(err)
		filter.TimeEnd = &ts
	}

	exitOnError(commands.RunView(path, filter, os.Stdout))
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `deskthing-log export - Export log file to JSONL or CSV format

Usage:
  deskthing-log export [flags] <file.dtlog>

Flags:
`)
		fs.PrintDefaults()
	}

	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	exitOnError(commands.RunExport(fs.Arg(0), *format, *output))
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `deskthing-log stats - Show statistics about the log file

Usage:
  deskthing-log stats <file.dtlog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}

	exitOnError(commands.RunStats(fs.Arg(0), os.Stdout))
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
