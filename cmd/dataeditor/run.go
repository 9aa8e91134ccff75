package main

import (
	"errors"

	"github.com/spf13/cobra"

	"datamod/internal/modification"
)

var errConfirmMismatch = errors.New("--confirm must repeat the modification name exactly")

func newDryRunCmd(env *editorEnv, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run NAME",
		Short: "Run a data modification in a transaction that is always rolled back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, env, opts, args[0], func(r *modification.Runner) (*modification.Stream, error) {
				return r.StartDryRun(cmd.Context(), args[0])
			})
		},
	}
}

func newRunCmd(env *editorEnv, opts *rootOptions) *cobra.Command {
	var confirm string
	cmd := &cobra.Command{
		Use:   "run NAME --confirm NAME",
		Short: "Run a data modification and commit it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if confirm == "" || confirm != args[0] {
				return errConfirmMismatch
			}
			return execute(cmd, env, opts, args[0], func(r *modification.Runner) (*modification.Stream, error) {
				return r.StartRun(cmd.Context(), args[0], confirm)
			})
		},
	}
	cmd.Flags().StringVar(&confirm, "confirm", "", "repeat the modification name to confirm a committing run")
	return cmd
}

func execute(cmd *cobra.Command, env *editorEnv, opts *rootOptions, name string, start func(*modification.Runner) (*modification.Stream, error)) error {
	registry, err := newRegistry(opts.pace)
	if err != nil {
		return err
	}
	if err := checkName(registry, name); err != nil {
		return err
	}

	db, err := openTarget(cmd.Context(), env, opts)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := newRunner(env, opts, db, registry)
	if err != nil {
		return err
	}
	stream, err := start(runner)
	if err != nil {
		return err
	}
	return printEvents(env.out, stream)
}
