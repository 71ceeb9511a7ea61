// epydoc builds the API documentation model of a Python source tree and
// writes it as TOON, JSON, YAML or Graphviz DOT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AnjaneyuluBatta505/epydoc/internal/config"
	"github.com/AnjaneyuluBatta505/epydoc/internal/export"
	"github.com/AnjaneyuluBatta505/epydoc/internal/model"
	"github.com/AnjaneyuluBatta505/epydoc/internal/pipeline"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

type rootFlags struct {
	configFile  string
	format      string
	output      string
	maxModules  int
	symbol      string
	file        string
	strict      bool
	verbose     bool
	showVersion bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f rootFlags

	cmd := &cobra.Command{
		Use:   "epydoc [path]",
		Short: "Build the API documentation model of a Python source tree",
		Long: `epydoc introspects the Python modules under path (default: the current
directory), parses their docstrings in the configured markup dialect,
resolves cross-references and base classes, and derives inheritance and
call views. The result is written to stdout or --output.

Settings come from epydoc.toml in path or $XDG_CONFIG_HOME/epydoc,
EPYDOC_* environment variables and the flags below, in increasing order of
precedence.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				_, _ = fmt.Fprintf(stdout, "epydoc %s\n", version)
				return nil
			}
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runBuild(cmd, root, f, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVarP(&f.configFile, "config", "c", "", "configuration file (default: epydoc.toml in path)")
	flags.StringVarP(&f.format, "format", "f", export.TOON, "output format: "+strings.Join(export.Formats(), "|"))
	flags.StringVarP(&f.output, "output", "o", "", "write output to this file instead of stdout")
	flags.IntVarP(&f.maxModules, "max-modules", "n", 0, "only output the N highest-ranked modules")
	flags.StringVarP(&f.symbol, "symbol", "s", "", "only output entities whose name contains this (with callers, callees and members)")
	flags.StringVar(&f.file, "file", "", "only output entities defined in files whose path contains this")
	flags.BoolVar(&f.strict, "strict", false, "exit non-zero when any error diagnostic is reported")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log build phases to stderr")
	flags.BoolVarP(&f.showVersion, "version", "V", false, "show version and exit")

	flags.String("docformat", "", "default markup dialect for modules without __docformat__")
	flags.IntP("workers", "j", 0, "parallel workers (default: GOMAXPROCS)")
	flags.Int64("max-file-size", 0, "skip files larger than this many bytes")
	flags.StringSlice("exclude", nil, "gitignore-style patterns to leave out")
	flags.StringSlice("tiebreak", nil, "ambiguity tie-breaks in order: callable, closest")
	flags.Bool("private", true, "document entities with private names")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	return cmd
}

// configFlags maps flags to the settings they override.
var configFlags = map[string][]string{
	"docformat":     {"markup", "default"},
	"workers":       {"build", "workers"},
	"max-file-size": {"build", "max_file_size"},
	"exclude":       {"build", "exclude"},
	"tiebreak":      {"resolve", "tiebreak"},
	"private":       {"build", "private"},
}

func loadConfig(cmd *cobra.Command, root, file string) (*config.Config, error) {
	v := config.New(config.Options{File: file, Dir: root})
	for name, key := range configFlags {
		if err := v.BindPFlag(config.Key(key...), cmd.Flags().Lookup(name)); err != nil {
			return nil, fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return config.Decode(v)
}

func runBuild(cmd *cobra.Command, root string, f rootFlags, stdout, stderr io.Writer) error {
	if !slices.Contains(export.Formats(), strings.ToLower(f.format)) {
		return fmt.Errorf("%w %q", export.ErrUnknownFormat, f.format)
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	cfg, err := loadConfig(cmd, root, f.configFile)
	if err != nil {
		return err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if f.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	m, err := pipeline.Run(cmd.Context(), root, pipeline.Options{
		DefaultDialect: cfg.Markup.Default,
		Modules:        cfg.Markup.Modules,
		Exclude:        cfg.Build.Exclude,
		Workers:        cfg.Build.Workers,
		MaxFileSize:    cfg.Build.MaxFileSize,
		Policy:         policy,
		Logger:         logger,
	})
	if err != nil {
		if errors.Is(err, model.ErrNothingToDocument) {
			return fmt.Errorf("%s: %w", root, err)
		}
		return err
	}

	diags := m.Diagnostics()
	printDiagnostics(stderr, diags)

	write := func(w io.Writer) error {
		return export.Write(w, m, export.Options{
			Format:     f.format,
			Project:    filepath.Base(root),
			Private:    cfg.Build.Private,
			MaxModules: f.maxModules,
			Symbol:     f.symbol,
			File:       f.file,
		})
	}
	if f.output == "" {
		err = write(stdout)
	} else {
		file, cerr := os.Create(f.output)
		if cerr != nil {
			return fmt.Errorf("creating output: %w", cerr)
		}
		err = writeAndClose(file, write)
	}
	if err != nil {
		return fmt.Errorf("writing %s output: %w", f.format, err)
	}

	if n := model.CountSeverity(diags, model.Error); f.strict && n > 0 {
		return fmt.Errorf("%d error diagnostic(s) reported", n)
	}
	return nil
}

// writeAndClose runs write on wc and closes it. A close error is returned
// when write succeeded, since it can hide an unflushed file.
func writeAndClose(wc io.WriteCloser, write func(io.Writer) error) error {
	err := write(wc)
	if cerr := wc.Close(); err == nil {
		err = cerr
	}
	return err
}

var severityColor = map[model.Severity][]color.Attribute{
	model.Error:   {color.FgRed, color.Bold},
	model.Warning: {color.FgYellow},
}

// printDiagnostics writes one line per diagnostic followed by a count
// summary. Nothing is written for a clean build. Severities are coloured
// only when w is a terminal.
func printDiagnostics(w io.Writer, diags []model.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	for _, d := range diags {
		c := color.New(severityColor[d.Severity]...)
		if !tty {
			c.DisableColor()
		}
		_, _ = c.Fprint(w, string(d.Severity))
		_, _ = fmt.Fprintf(w, " [%s/%s]", d.Phase, d.Code)
		if d.EntityID != "" {
			_, _ = fmt.Fprintf(w, " %s", d.EntityID)
		}
		_, _ = fmt.Fprintf(w, ": %s\n", d.Message)
	}
	_, _ = fmt.Fprintf(w, "%d error(s), %d warning(s)\n",
		model.CountSeverity(diags, model.Error), model.CountSeverity(diags, model.Warning))
}
