// Package main is an operator CLI for inspecting and editing the reply ledger.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/garyellow/goose-bot/internal/config"
	"github.com/garyellow/goose-bot/internal/ledger"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var path string

	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Inspect the goose reply ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&path, "file", "", "ledger file (default: derived from GOOSE_DATA_DIR and GOOSE_REDDIT_USERNAME)")

	open := func() (*ledger.FileLedger, error) {
		if path == "" {
			cfg := config.LoadUnvalidated()
			if cfg.RedditUsername == "" {
				return nil, fmt.Errorf("--file or %s is required", config.EnvRedditUsername)
			}
			path = cfg.LedgerPath()
		}
		return ledger.Open(path)
	}

	root.AddCommand(
		listCmd(open),
		countCmd(open),
		checkCmd(open),
		addCmd(open),
	)
	return root
}

type opener func() (*ledger.FileLedger, error)

func listCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every recorded submission id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := open()
			if err != nil {
				return err
			}
			defer l.Close()

			for _, id := range l.Entries() {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}

func countCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of recorded submissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := open()
			if err != nil {
				return err
			}
			defer l.Close()

			fmt.Fprintln(cmd.OutOrStdout(), l.Len())
			return nil
		},
	}
}

func checkCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "check [submission-id]",
		Short: "Report whether a submission was already replied to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := open()
			if err != nil {
				return err
			}
			defer l.Close()

			replied, err := l.AlreadyReplied(args[0])
			if err != nil {
				return err
			}
			if replied {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: replied\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: not replied\n", args[0])
			}
			return nil
		},
	}
}

func addCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "add [submission-id...]",
		Short: "Mark submissions as replied so the bot skips them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := open()
			if err != nil {
				return err
			}
			defer l.Close()

			for _, id := range args {
				if err := l.RecordReply(id); err != nil {
					return fmt.Errorf("add %q: %w", id, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ledger now holds %d entries\n", l.Len())
			return nil
		},
	}
}
