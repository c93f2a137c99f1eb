package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/chazu/toponame/pkg/envelope"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ErrCheckFailed makes the process exit non-zero after the report has
// been printed.
var ErrCheckFailed = errors.New("check failed")

var (
	strictFlag  bool
	cyclesFlag  int
	noDBFlag    bool
	outFlag     string
	summaryFlag bool
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild FILE",
	Short: "Rebuild a feature script or saved document and print envelopes",
	Long: `Rebuild evaluates FILE (a feature script, or a saved .json document),
rebuilds it --cycles times and prints every envelope as one JSON line.
All cycles must agree. The exit status is non-zero when evaluation or
validation fails or any feature halts (ERROR, BLOCKED, CRITICAL).`,
	Args: cobra.ExactArgs(1),
	RunE: runRebuild,
}

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Rebuild FILE every time it is written",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate DOC",
	Short: "Upgrade a saved document to the current schema",
	Long: `Migrate canonicalizes reference indices and back-fills status_class and
severity for status details written before they existed. Codes are never
changed. The document is rewritten in place unless --out is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

func init() {
	for _, c := range []*cobra.Command{rebuildCmd, watchCmd} {
		c.Flags().BoolVar(&strictFlag, "strict", false, "refuse geometric rescue of references (overrides config)")
		c.Flags().IntVar(&cyclesFlag, "cycles", 0, "rebuild cycles that must agree (overrides config)")
		c.Flags().BoolVar(&noDBFlag, "no-db", false, "do not load or save bindings")
		c.Flags().BoolVar(&summaryFlag, "summary", false, "print one summary object instead of envelope lines")
	}
	migrateCmd.Flags().StringVarP(&outFlag, "out", "o", "", "write the migrated document here")
}

// runSettings resolves flag overrides against the loaded config.
func runSettings(cmd *cobra.Command) (strict bool, cycles int) {
	strict = cfg.Policy.Strict
	if cmd.Flags().Changed("strict") {
		strict = strictFlag
	}
	cycles = cfg.Rebuild.Cycles
	if cmd.Flags().Changed("cycles") {
		cycles = cyclesFlag
	}
	return strict, cycles
}

func runRebuild(cmd *cobra.Command, args []string) error {
	app, err := NewApp(cfg, logger, !noDBFlag)
	if err != nil {
		return err
	}
	defer app.Close()

	strict, cycles := runSettings(cmd)
	return checkOnce(cmd.Context(), app, args[0], strict, cycles, cmd.OutOrStdout())
}

// checkOnce runs one check and prints its result.
func checkOnce(ctx context.Context, app *App, path string, strict bool, cycles int, w io.Writer) error {
	res, err := app.Check(ctx, path, strict, cycles)
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		app.logger.Error("check", zap.String("feature", e.FeatureID), zap.Int("line", e.Line), zap.String("error", e.Message))
	}
	for _, wn := range res.Warnings {
		app.logger.Warn("check", zap.String("feature", wn.FeatureID), zap.String("warning", wn.Message))
	}

	if summaryFlag {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else if err := writeEnvelopes(w, res.Envelopes); err != nil {
		return err
	}

	app.logger.Info("rebuilt",
		zap.String("file", path),
		zap.Int("cycles", res.Cycles),
		zap.Int("envelopes", len(res.Envelopes)),
		zap.Int("adopted", res.Adopted),
		zap.Stringer("worst", res.Worst),
		zap.Bool("strict", strict))
	if res.Failed() {
		return ErrCheckFailed
	}
	return nil
}

func writeEnvelopes(w io.Writer, envs []envelope.ErrorEnvelope) error {
	for _, e := range envs {
		b, err := envelope.Marshal(e)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\n", b); err != nil {
			return err
		}
	}
	return nil
}

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 100 * time.Millisecond

func runWatch(cmd *cobra.Command, args []string) error {
	app, err := NewApp(cfg, logger, !noDBFlag)
	if err != nil {
		return err
	}
	defer app.Close()

	strict, cycles := runSettings(cmd)
	return watch(cmd.Context(), app, args[0], strict, cycles, cmd.OutOrStdout())
}

// watch checks path once and again after every write to it, until ctx is
// done.
func watch(ctx context.Context, app *App, path string, strict bool, cycles int, out io.Writer) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()
	// Watch the directory: editors often replace the file on save.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	run := func() {
		if err := checkOnce(ctx, app, path, strict, cycles, out); err != nil && !errors.Is(err, ErrCheckFailed) {
			app.logger.Error("rebuild failed", zap.Error(err))
		}
	}
	run()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != path || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			pending = time.After(watchDebounce)
		case <-pending:
			pending = nil
			run()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			app.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	in := args[0]
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	migrated, rep, err := Migrate(data)
	if err != nil {
		return fmt.Errorf("migrate %s: %w", in, err)
	}

	out := outFlag
	if out == "" {
		out = in
	}
	if out == in && !rep.Changed() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: already at schema %d\n", in, rep.FromVersion)
		return nil
	}
	if err := os.WriteFile(out, migrated, 0o644); err != nil {
		return err
	}
	dropped := 0
	for _, d := range rep.Dropped {
		dropped += len(d)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: schema %d -> current, %d status records migrated, %d invalid references dropped\n",
		out, rep.FromVersion, len(rep.Migrated), dropped)
	return nil
}
