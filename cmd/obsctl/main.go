// Command obsctl inspects observer exports and trace files, and runs an
// interactive shell over a live observer tree.
//
// Usage:
//
//	obsctl <command> [flags] <file>
//
// Commands:
//
//	dump     Print the observer tree stored in an export
//	convert  Rewrite an export in another format or format version
//	trace    View a trace file in human-readable form
//	stats    Show statistics about a trace file
//	shell    Start an interactive shell
//
// Examples:
//
//	# Show a binary export with context IDs
//	obsctl dump -ids project.qbin
//
//	# Downgrade an export for an older reader
//	obsctl convert -to tree -version 1.0 -o project.yaml project.qbin
//
//	# Show only rejected attaches
//	obsctl trace -category attach -outcome rejected session.olog
//
//	# Start a shell that traces to a file and serves metrics
//	obsctl shell -config obsctl.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/qtilities/qtilities-go/cmd/obsctl/commands"
)

const usage = `obsctl - Observer Export and Trace Tool

Usage:
  obsctl <command> [flags] <file>

Commands:
  dump     Print the observer tree stored in an export
  convert  Rewrite an export in another format or format version
  trace    View a trace file in human-readable form
  stats    Show statistics about a trace file
  shell    Start an interactive shell

Use "obsctl <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "dump":
		runDump(args)
	case "convert":
		runConvert(args)
	case "trace":
		runTrace(args)
	case "stats":
		runStats(args)
	case "shell":
		runShell(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func requirePath(fs *flag.FlagSet, what string) string {
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: %s path required\n", what)
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func runDump(args []string) {
	fs := flag.NewFlagSet("dump", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `obsctl dump - Print the observer tree stored in an export

Usage:
  obsctl dump [flags] <export>

Flags:
`)
		fs.PrintDefaults()
	}

	ids := fs.Bool("ids", false, "Show context IDs and all subject contexts")
	reserved := fs.Bool("reserved", false, "Show reserved qti.* properties")
	noProps := fs.Bool("no-props", false, "Hide properties")
	stats := fs.Bool("stats", false, "Append tree statistics")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs, "export")

	opts := commands.DumpOptions{
		ShowIDs:        *ids,
		ShowReserved:   *reserved,
		HideProperties: *noProps,
		Stats:          *stats,
	}
	if err := commands.RunDump(path, opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runConvert(args []string) {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `obsctl convert - Rewrite an export in another format or format version

Usage:
  obsctl convert [flags] <export>

Flags:
`)
		fs.PrintDefaults()
	}

	to := fs.String("to", "", "Output format (binary, tree); default keeps the input format")
	ver := fs.String("version", "", "Output format version (1.0, 1.1, 1.2)")
	output := fs.String("o", "", "Output file (default: stdout)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs, "export")

	opts := commands.ConvertOptions{To: *to, Version: *ver, Output: *output}
	if err := commands.RunConvert(path, opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runTrace(args []string) {
	fs := flag.NewFlagSet("trace", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `obsctl trace - View a trace file in human-readable form

Usage:
  obsctl trace [flags] <trace>

Flags:
`)
		fs.PrintDefaults()
	}

	var opts commands.TraceOptions
	fs.StringVar(&opts.Category, "category", "", "Filter by category (attach, detach, ownership, filter, codec, lifecycle, error)")
	fs.StringVar(&opts.Outcome, "outcome", "", "Filter by outcome (success, rejected, failed)")
	fs.StringVar(&opts.Session, "session", "", "Filter by session ID")
	fs.IntVar(&opts.ObserverID, "observer", 0, "Filter by observer context ID")
	fs.StringVar(&opts.Subject, "subject", "", "Filter by subject name")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs, "trace file")

	filter, err := opts.Filter()
	if err != nil {
		fail(err)
	}
	if err := commands.RunTrace(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `obsctl stats - Show statistics about a trace file

Usage:
  obsctl stats <trace>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	path := requirePath(fs, "trace file")

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}

func runShell(args []string) {
	fs := flag.NewFlagSet("shell", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `obsctl shell - Start an interactive shell

Usage:
  obsctl shell [flags]

Flags:
`)
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "YAML config file")
	traceFile := fs.String("trace", "", "Trace file (overrides trace_file)")
	metricsAddr := fs.String("metrics", "", "Metrics listen address (overrides metrics_addr)")
	snapshotDir := fs.String("snapshots", "", "Snapshot directory (overrides snapshot_dir)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := commands.DefaultShellConfig()
	if *configPath != "" {
		var err error
		if cfg, err = commands.LoadShellConfig(*configPath); err != nil {
			fail(err)
		}
	}
	if *traceFile != "" {
		cfg.TraceFile = *traceFile
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *snapshotDir != "" {
		cfg.SnapshotDir = *snapshotDir
	}

	sh, err := commands.NewShell(cfg, os.Stdout)
	if err != nil {
		fail(err)
	}
	if err := sh.ServeMetrics(); err != nil {
		_ = sh.Close()
		fail(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	runErr := sh.Run(ctx)
	if err := sh.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	if runErr != nil {
		fail(runErr)
	}
}
