package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"datamod/internal/modification"
	"datamod/internal/modifications"
	"datamod/internal/platform/config"
	"datamod/internal/platform/database"
	"datamod/internal/platform/logger"
)

// errAborted is returned when the operator declines the remote database prompt.
var errAborted = errors.New("aborted by operator")

// editorEnv holds what the commands touch outside the process.
type editorEnv struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	openDB func(ctx context.Context, url string) (*sql.DB, error)
}

func defaultEnv() *editorEnv {
	return &editorEnv{
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
		openDB: database.Open,
	}
}

type rootOptions struct {
	configDir   string
	assumeYes   bool
	streamLevel string
	logLevel    string
	pace        time.Duration
}

func newRootCmd(env *editorEnv) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "dataeditor",
		Short: "Run data modifications against a database from the terminal",
		Long: `Run data modifications against a database from the terminal.

The target database comes from db.json in --config-dir
({"ConnectionStrings":{"DefaultConnection":"..."}}) or DATABASE_URL, falling
back to the local development database. Non-local targets need confirmation.

Examples:
  dataeditor list
  dataeditor dry-run CreateRandomUsersModification
  dataeditor run DeleteAllUsersModification --confirm DeleteAllUsersModification`,
		SilenceUsage: true,
	}
	cmd.SetIn(env.in)
	cmd.SetOut(env.out)
	cmd.SetErr(env.errOut)

	cmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "directory holding db.json")
	cmd.PersistentFlags().BoolVarP(&opts.assumeYes, "yes", "y", false, "skip the remote database confirmation")
	cmd.PersistentFlags().StringVar(&opts.streamLevel, "level", "info", "lowest level of modification output to show")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "level of the tool's own diagnostics")
	cmd.PersistentFlags().DurationVar(&opts.pace, "pace", 300*time.Millisecond, "delay between steps of the bundled modifications")

	cmd.AddCommand(
		newListCmd(env, opts),
		newDryRunCmd(env, opts),
		newRunCmd(env, opts),
	)
	return cmd
}

// checkName fails fast, before any prompt or connection, when name is not
// registered.
func checkName(registry *modification.Registry, name string) error {
	if _, ok := registry.Lookup(name); !ok {
		return fmt.Errorf("data modification '%s' not found; see 'dataeditor list'", name)
	}
	return nil
}

func newRegistry(pace time.Duration) (*modification.Registry, error) {
	registry := modification.NewRegistry()
	if err := modifications.Register(registry, modifications.Config{Pace: pace}); err != nil {
		return nil, err
	}
	return registry, nil
}

// openTarget resolves and opens the database, asking before touching a
// remote one.
func openTarget(ctx context.Context, env *editorEnv, opts *rootOptions) (*sql.DB, error) {
	target, err := config.LoadDatabase(opts.configDir)
	if err != nil {
		return nil, err
	}
	if target.Remote && !opts.assumeYes {
		fmt.Fprintf(env.out, "You are connecting to a REMOTE database:\n  %s\nContinue? (y/n): ", redact(target.URL))
		answer, _ := bufio.NewReader(env.in).ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			return nil, errAborted
		}
	}

	db, err := env.openDB(ctx, target.URL)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newRunner(env *editorEnv, opts *rootOptions, db *sql.DB, registry *modification.Registry) (*modification.Runner, error) {
	level, err := modification.ParseLevel(opts.streamLevel)
	if err != nil {
		return nil, err
	}
	return modification.NewRunner(db, registry,
		modification.WithLogger(logger.NewWithWriter(env.errOut, "text", opts.logLevel)),
		modification.WithStreamLevel(level),
	), nil
}

// printEvents renders a run on the terminal and reports whether it succeeded.
func printEvents(out io.Writer, stream *modification.Stream) error {
	var failure *modification.Failure
	for e := range stream.Events() {
		switch e := e.(type) {
		case modification.LogLine:
			fmt.Fprintf(out, "%s %-11s %s: %s\n", e.Timestamp.Format(modification.TimestampLayout), e.Level, e.Category, e.Message)
		case modification.Complete:
			fmt.Fprintln(out, "Completed successfully.")
		case modification.Failure:
			failure = &e
			fmt.Fprintf(out, "Failed: %s\n", e.Message)
		}
	}
	if err := stream.Wait(); err != nil {
		return err
	}
	if failure != nil {
		return errors.New(failure.Message)
	}
	return nil
}

func redact(raw string) string {
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return raw
	}
	return raw[:scheme+3] + "***" + raw[at:]
}
