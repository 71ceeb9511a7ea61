package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/AnjaneyuluBatta505/epydoc/internal/config"
	"github.com/AnjaneyuluBatta505/epydoc/internal/markup"
)

const (
	sentinelStart = "# >>> epydoc settings >>>"
	sentinelEnd   = "# <<< epydoc settings <<<"
)

type initFlags struct {
	dryRun    bool
	force     bool
	docformat string
}

// newInitCmd implements `epydoc init`, which writes (or refreshes) the
// settings block of an epydoc.toml file.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var f initFlags
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write an epydoc.toml with the default settings",
		Long: `Write the epydoc settings to a TOML file. The settings are wrapped in
sentinel comments so that running init again refreshes them in place,
keeping the values already set and any text outside the block.

path defaults to ./epydoc.toml; a directory means epydoc.toml inside it.
An existing file without a settings block is left alone unless --force is
given.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args, f, stdout, stderr)
		},
	}
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print what would be written without modifying the file")
	cmd.Flags().BoolVar(&f.force, "force", false, "replace an existing file that has no settings block")
	cmd.Flags().StringVar(&f.docformat, "docformat", "", "default markup dialect to record")
	return cmd
}

func runInit(args []string, f initFlags, stdout, stderr io.Writer) error {
	cfg := config.Default()
	if f.docformat != "" {
		name, ok := markup.Canonical(f.docformat)
		if !ok {
			return fmt.Errorf("--docformat: %w %q", markup.ErrUnknownDialect, f.docformat)
		}
		cfg.Markup.Default = name
	}

	// --dry-run with no path: just print the section itself.
	if f.dryRun && len(args) == 0 {
		section, err := generateSection(cfg)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	path := config.FileName
	if len(args) > 0 {
		path = args[0]
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			path = filepath.Join(path, config.FileName)
		}
	}

	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	content := string(existing)
	hasBlock := strings.Contains(content, sentinelStart) && strings.Contains(content, sentinelEnd)

	switch {
	case hasBlock:
		// Keep the values the file already sets.
		current, err := config.Load(config.Options{File: path})
		if err != nil {
			return err
		}
		if f.docformat != "" {
			current.Markup.Default = cfg.Markup.Default
		}
		cfg = current
	case len(existing) > 0 && !f.force:
		return fmt.Errorf("%s exists and has no epydoc settings block (use --force to replace it)", path)
	case f.force:
		content = ""
	}

	section, err := generateSection(cfg)
	if err != nil {
		return err
	}
	updated := applySection(content, section)

	if f.dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote epydoc settings to %s\n", path)
	return nil
}

// generateSection returns the sentinel-wrapped TOML encoding of cfg.
func generateSection(cfg *config.Config) (string, error) {
	body, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	header := `# Settings for epydoc. Run "epydoc init" again to refresh this block;
# values set here are kept. See "epydoc --help" for the matching flags.
`
	return sentinelStart + "\n" + header + strings.TrimRight(string(body), "\n") + "\n" + sentinelEnd, nil
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if content == "" {
		return section + "\n"
	}
	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
