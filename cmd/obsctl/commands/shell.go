package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/qtilities/qtilities-go/pkg/codec"
	"github.com/qtilities/qtilities-go/pkg/factory"
	"github.com/qtilities/qtilities-go/pkg/filters"
	"github.com/qtilities/qtilities-go/pkg/inspect"
	"github.com/qtilities/qtilities-go/pkg/log"
	"github.com/qtilities/qtilities-go/pkg/metrics"
	"github.com/qtilities/qtilities-go/pkg/observer"
	"github.com/qtilities/qtilities-go/pkg/persistence"
	"github.com/qtilities/qtilities-go/pkg/property"
	"github.com/qtilities/qtilities-go/pkg/subject"
)

// ErrUsage is returned for malformed shell commands.
var ErrUsage = errors.New("usage")

// ErrNoSnapshots is returned by snapshot commands when no snapshot_dir is set.
var ErrNoSnapshots = errors.New("snapshots disabled (set snapshot_dir)")

// Shell is an interactive session over a live observer tree.
type Shell struct {
	cfg       ShellConfig
	manager   *observer.Manager
	root      *observer.Observer
	registry  *factory.Registry
	inspector *inspect.Inspector
	formatter *inspect.Formatter
	snapshots *persistence.SnapshotStore
	policy    observer.Policy
	out       io.Writer

	trace     *log.FileLogger
	collector *metrics.Collector
	gatherer  *prometheus.Registry
	server    *http.Server
}

// NewShell creates a shell with an empty root observer. Output goes to out.
func NewShell(cfg ShellConfig, out io.Writer) (*Shell, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, _ := inspect.ResolvePolicyName(cfg.DefaultPolicy)
	level, _ := cfg.Level()

	registry := factory.NewRegistry()
	if err := factory.RegisterCore(registry); err != nil {
		return nil, err
	}
	if err := observer.RegisterFactories(registry); err != nil {
		return nil, err
	}

	s := &Shell{
		cfg:       cfg,
		registry:  registry,
		formatter: inspect.NewFormatter(),
		policy:    policy,
		out:       out,
		gatherer:  prometheus.NewRegistry(),
	}
	s.collector = metrics.NewCollector(s.gatherer)

	traceLoggers := []log.Logger{s.collector}
	if cfg.TraceFile != "" {
		fl, err := log.NewFileLogger(cfg.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace file: %w", err)
		}
		s.trace = fl
		traceLoggers = append(traceLoggers, fl)
	}

	s.manager = observer.NewManager(observer.Config{
		MaxWalkDepth: cfg.MaxWalkDepth,
		Logger:       slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
		TraceLogger:  log.NewMultiLogger(traceLoggers...),
	})
	s.root = s.manager.NewObserver(cfg.RootName)
	s.inspector = inspect.NewInspector(s.root)

	if cfg.SnapshotDir != "" {
		s.snapshots = persistence.NewSnapshotStore(cfg.SnapshotDir)
	}
	return s, nil
}

// Root returns the root observer.
func (s *Shell) Root() *observer.Observer { return s.root }

// Manager returns the observer manager.
func (s *Shell) Manager() *observer.Manager { return s.manager }

// Gatherer returns the registry holding the shell's metrics.
func (s *Shell) Gatherer() prometheus.Gatherer { return s.gatherer }

// ServeMetrics starts the metrics endpoint when metrics_addr is set.
func (s *Shell) ServeMetrics() error {
	if s.cfg.MetricsAddr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.MetricsAddr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(s.gatherer))
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.manager.Logger().Error("metrics server stopped", "error", err)
		}
	}()
	return nil
}

// Close destroys the tree and releases the trace file and metrics endpoint.
func (s *Shell) Close() error {
	s.root.Destroy()
	s.manager.Flush()

	var errs []error
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		errs = append(errs, s.server.Shutdown(ctx))
	}
	if s.trace != nil {
		errs = append(errs, s.trace.Close())
	}
	return errors.Join(errs...)
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "obsctl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s.out = rl.Stdout()
	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}

		quit, err := s.Execute(line)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
		if quit {
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}
	}
}

// Execute runs one command line. quit is true for quit and exit.
func (s *Shell) Execute(line string) (quit bool, err error) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "tree", "t":
		err = s.cmdTree(args)
	case "info", "i":
		err = s.cmdInfo(args)
	case "stats":
		err = s.cmdStats()
	case "new", "n":
		err = s.cmdNew(args)
	case "mkobs":
		err = s.cmdMkobs(args)
	case "attach", "a":
		err = s.cmdAttach(args)
	case "detach", "d":
		err = s.cmdDetach(args)
	case "destroy", "rm":
		err = s.cmdDestroy(args)
	case "read", "r":
		err = s.cmdRead(args)
	case "write", "w":
		err = s.cmdWrite(args)
	case "limit":
		err = s.cmdLimit(args)
	case "access":
		err = s.cmdAccess(args)
	case "filter":
		err = s.cmdFilter(args)
	case "export":
		err = s.cmdExport(args)
	case "import":
		err = s.cmdImport(args)
	case "save":
		err = s.cmdSave(args)
	case "load":
		err = s.cmdLoad(args)
	case "snapshots", "ls":
		err = s.cmdSnapshots()
	case "flush":
		n := s.manager.Pending()
		s.manager.Flush()
		fmt.Fprintf(s.out, "Flushed %d pending deletions\n", n)
		if s.trace != nil {
			err = s.trace.Flush()
		}
	case "check":
		if err = s.manager.CheckIntegrity(); err == nil {
			fmt.Fprintln(s.out, "OK")
		}
	case "quit", "exit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command: %s (type 'help' for commands)", cmd)
	}
	return false, err
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.out, `Commands:
  tree [path]                            Show the observer tree
  info <path>                            Show one subject
  stats                                  Show tree statistics
  new <parent> <name> [policy] [cat]     Create a node and attach it
  mkobs <parent> <name> [policy]         Create a nested observer
  attach <path> <observer> [policy] [cat] Attach an existing subject
  detach <path>                          Detach a subject from its holder
  destroy <path>                         Destroy a subject
  read <path@prop>                       Read a property
  write <path@prop> <kind> <value>       Write a property
  limit <observer> <n>                   Set the subject limit (-1 = none)
  access <observer> <mode> [cat]         Set the access mode
  filter <observer> naming|activity|type Install a subscriber filter
  export <file> [format] [version]       Export the tree
  import <file> [observer]               Import an export
  save <name> [format] | load <name>     Manage snapshots
  snapshots                              List snapshots
  flush | check                          Flush deletions and trace, check integrity
  quit                                   Exit

Paths are slash-separated names or #ids from the root, e.g. docs/#2@color.
Policies: manual, auto, specific, scope, owned. Modes: full, readonly, locked.
`)
}

// observerAt resolves a path to an observer; "." is the root.
func (s *Shell) observerAt(arg string) (*observer.Observer, error) {
	path, err := inspect.ParsePath(arg)
	if err != nil {
		return nil, err
	}
	if path.IsRoot() {
		return s.root, nil
	}
	subj, _, err := s.inspector.Resolve(path)
	if err != nil {
		return nil, err
	}
	o := observer.Of(subj)
	if o == nil {
		return nil, fmt.Errorf("%w: %s", inspect.ErrNotObserver, path)
	}
	return o, nil
}

func (s *Shell) subjectAt(arg string) (subject.Subject, *observer.Observer, error) {
	path, err := inspect.ParsePath(arg)
	if err != nil {
		return nil, nil, err
	}
	return s.inspector.Resolve(path)
}

func (s *Shell) policyArg(args []string, i int) (observer.Policy, error) {
	if len(args) <= i {
		return s.policy, nil
	}
	p, ok := inspect.ResolvePolicyName(args[i])
	if !ok {
		return 0, fmt.Errorf("unknown policy: %s", args[i])
	}
	return p, nil
}

func attachOptions(args []string, i int) []observer.AttachOption {
	if len(args) <= i {
		return nil
	}
	return []observer.AttachOption{observer.WithCategory(args[i])}
}

func (s *Shell) cmdTree(args []string) error {
	o := s.root
	if len(args) > 0 {
		var err error
		if o, err = s.observerAt(args[0]); err != nil {
			return err
		}
	}
	tree := inspect.NewInspector(o).InspectTree()
	fmt.Fprint(s.out, s.inspector.FormatTree(tree, s.formatter))
	return nil
}

func (s *Shell) cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: info <path>", ErrUsage)
	}
	path, err := inspect.ParsePath(args[0])
	if err != nil {
		return err
	}
	info, err := s.inspector.InspectSubject(path)
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, s.formatter.FormatSubject(info))
	return nil
}

func (s *Shell) cmdStats() error {
	fmt.Fprint(s.out, s.formatter.FormatStats(s.inspector.Stats()))
	return nil
}

func (s *Shell) cmdNew(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: new <parent> <name> [policy] [category]", ErrUsage)
	}
	parent, err := s.observerAt(args[0])
	if err != nil {
		return err
	}
	policy, err := s.policyArg(args, 2)
	if err != nil {
		return err
	}
	n := subject.NewNode(args[1])
	if err := parent.AttachSubject(n, policy, attachOptions(args, 3)...); err != nil {
		n.Destroy()
		return err
	}
	id, _ := parent.SubjectID(n)
	fmt.Fprintf(s.out, "Created %s (#%d) in %s\n", parent.DisplayName(n), id, parent.ObjectName())
	return nil
}

func (s *Shell) cmdMkobs(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: mkobs <parent> <name> [policy]", ErrUsage)
	}
	parent, err := s.observerAt(args[0])
	if err != nil {
		return err
	}
	policy, err := s.policyArg(args, 2)
	if err != nil {
		return err
	}
	o := s.manager.NewObserver(args[1])
	if err := parent.AttachSubject(o, policy); err != nil {
		o.Destroy()
		return err
	}
	fmt.Fprintf(s.out, "Created observer %s (context %d) in %s\n", args[1], o.ID(), parent.ObjectName())
	return nil
}

func (s *Shell) cmdAttach(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: attach <path> <observer> [policy] [category]", ErrUsage)
	}
	subj, _, err := s.subjectAt(args[0])
	if err != nil {
		return err
	}
	target, err := s.observerAt(args[1])
	if err != nil {
		return err
	}
	policy, err := s.policyArg(args, 2)
	if err != nil {
		return err
	}
	if err := target.AttachSubject(subj, policy, attachOptions(args, 3)...); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Attached %s to %s\n", subject.Name(subj), target.ObjectName())
	return nil
}

func (s *Shell) cmdDetach(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: detach <path>", ErrUsage)
	}
	subj, holder, err := s.subjectAt(args[0])
	if err != nil {
		return err
	}
	name := subject.Name(subj)
	if err := holder.DetachSubject(subj); err != nil {
		return err
	}
	s.manager.Flush()
	fmt.Fprintf(s.out, "Detached %s from %s\n", name, holder.ObjectName())
	return nil
}

func (s *Shell) cmdDestroy(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: destroy <path>", ErrUsage)
	}
	subj, _, err := s.subjectAt(args[0])
	if err != nil {
		return err
	}
	name := subject.Name(subj)
	if o, ok := subj.(*observer.Observer); ok {
		o.Destroy()
	} else {
		subj.SubjectBase().Destroy()
	}
	s.manager.Flush()
	fmt.Fprintf(s.out, "Destroyed %s\n", name)
	return nil
}

func (s *Shell) cmdRead(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: read <path@prop>", ErrUsage)
	}
	path, err := inspect.ParsePath(args[0])
	if err != nil {
		return err
	}
	v, err := s.inspector.ReadProperty(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s = %s\n", path.Property, s.formatter.FormatValue(v))
	return nil
}

func (s *Shell) cmdWrite(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: write <path@prop> <kind> <value>", ErrUsage)
	}
	path, err := inspect.ParsePath(args[0])
	if err != nil {
		return err
	}
	kind, ok := inspect.ResolveKindName(args[1])
	if !ok {
		return fmt.Errorf("unknown property kind: %s", args[1])
	}
	v, err := property.ParseText(kind, strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	if err := s.inspector.WriteProperty(path, v); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "OK")
	return nil
}

func (s *Shell) cmdLimit(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: limit <observer> <n>", ErrUsage)
	}
	o, err := s.observerAt(args[0])
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid limit %q: %w", args[1], err)
	}
	if err := o.SetSubjectLimit(n); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Limit of %s: %s\n", o.ObjectName(), inspect.FormatLimit(n))
	return nil
}

func (s *Shell) cmdAccess(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: access <observer> <mode> [category]", ErrUsage)
	}
	o, err := s.observerAt(args[0])
	if err != nil {
		return err
	}
	mode, ok := inspect.ResolveAccessModeName(args[1])
	if !ok {
		return fmt.Errorf("unknown access mode: %s", args[1])
	}
	if len(args) > 2 {
		o.SetCategoryAccessMode(args[2], mode)
		fmt.Fprintf(s.out, "Access of %s/%s: %s\n", o.ObjectName(), args[2], inspect.GetAccessModeName(mode))
		return nil
	}
	o.SetAccessMode(mode)
	fmt.Fprintf(s.out, "Access of %s: %s\n", o.ObjectName(), inspect.GetAccessModeName(mode))
	return nil
}

func (s *Shell) cmdFilter(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: filter <observer> naming|activity|type [types...]", ErrUsage)
	}
	o, err := s.observerAt(args[0])
	if err != nil {
		return err
	}

	var f observer.Filter
	switch strings.ToLower(args[1]) {
	case "naming":
		f = filters.NewNamingPolicy()
	case "activity":
		f = filters.NewActivityPolicy()
	case "type":
		tf := filters.NewSubjectTypeFilter("shell")
		for _, t := range args[2:] {
			tf.AddSubjectType(filters.SubjectType{TypeName: t})
		}
		f = tf
	default:
		return fmt.Errorf("unknown filter: %s", args[1])
	}
	if err := o.InstallFilter(f); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Installed %s on %s\n", f.FilterName(), o.ObjectName())
	return nil
}

func (s *Shell) codecOptions(ver string) codec.Options {
	return codec.Options{Version: ver, Registry: s.registry}
}

func (s *Shell) cmdExport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: export <file> [format] [version]", ErrUsage)
	}
	format := DetectFormat(args[0], 0)
	if len(args) > 1 {
		var err error
		if format, err = ParseFormatFlag(args[1]); err != nil {
			return err
		}
	}
	var ver string
	if len(args) > 2 {
		ver = args[2]
	}

	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("failed to create export: %w", err)
	}
	defer f.Close()

	var res codec.Result
	if format == FormatBinary {
		res, err = codec.ExportBinary(f, s.root, s.codecOptions(ver))
	} else {
		res, err = codec.ExportTree(f, s.root, s.codecOptions(ver))
	}
	if !res.OK() {
		return fmt.Errorf("%s: %w", res, err)
	}
	fmt.Fprintf(s.out, "Exported %s (%s): %s\n", args[0], format, res)
	if err != nil {
		fmt.Fprintf(s.out, "  %v\n", err)
	}
	return nil
}

func (s *Shell) cmdImport(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: import <file> [observer]", ErrUsage)
	}
	target := s.root
	if len(args) > 1 {
		var err error
		if target, err = s.observerAt(args[1]); err != nil {
			return err
		}
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read export: %w", err)
	}
	var first byte
	if len(data) > 0 {
		first = data[0]
	}

	var res codec.Result
	r := bytes.NewReader(data)
	if DetectFormat(args[0], first) == FormatBinary {
		res, err = codec.ImportBinary(r, target, s.codecOptions(""))
	} else {
		res, err = codec.ImportTree(r, target, s.codecOptions(""))
	}
	if !res.OK() {
		return fmt.Errorf("%s: %w", res, err)
	}
	fmt.Fprintf(s.out, "Imported %s into %s: %s\n", args[0], target.ObjectName(), res)
	if err != nil {
		fmt.Fprintf(s.out, "  %v\n", err)
	}
	return nil
}

func (s *Shell) cmdSave(args []string) error {
	if s.snapshots == nil {
		return ErrNoSnapshots
	}
	if len(args) < 1 {
		return fmt.Errorf("%w: save <name> [format]", ErrUsage)
	}
	format := persistence.FormatBinary
	if len(args) > 1 {
		f, err := ParseFormatFlag(args[1])
		if err != nil {
			return err
		}
		format = persistence.Format(f)
	}
	snap, err := s.snapshots.Save(args[0], s.root, format, s.codecOptions(""))
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Saved %s (%d subjects, v%s)\n", snap.Name, snap.Subjects, snap.FormatVersion)
	return nil
}

func (s *Shell) cmdLoad(args []string) error {
	if s.snapshots == nil {
		return ErrNoSnapshots
	}
	if len(args) < 1 {
		return fmt.Errorf("%w: load <name>", ErrUsage)
	}
	res, err := s.snapshots.Load(args[0], s.root, s.codecOptions(""))
	if !res.OK() {
		if err == nil {
			err = fmt.Errorf("%s", res)
		}
		return err
	}
	fmt.Fprintf(s.out, "Loaded %s: %s\n", args[0], res)
	if err != nil {
		fmt.Fprintf(s.out, "  %v\n", err)
	}
	return nil
}

func (s *Shell) cmdSnapshots() error {
	if s.snapshots == nil {
		return ErrNoSnapshots
	}
	m, err := s.snapshots.Manifest()
	if err != nil {
		return err
	}
	if m == nil || len(m.Snapshots) == 0 {
		fmt.Fprintln(s.out, "(no snapshots)")
		return nil
	}
	for _, snap := range m.Snapshots {
		fmt.Fprintf(s.out, "  %-16s %-6s v%-4s %3d subjects  %s\n",
			snap.Name, snap.Format, snap.FormatVersion, snap.Subjects, snap.SavedAt.Format(time.RFC3339))
	}
	return nil
}
