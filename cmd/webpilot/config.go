package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rahul/webpilot/internal/store"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.cfg.Dump(cmd.OutOrStdout())
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "List recorded runs, or the actions of one run",
		Args:  cobra.MaximumNArgs(1),
		PreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := store.NewHistoryStore(a.cfg.Store.Path)
			if err != nil {
				return fmt.Errorf("open history store: %w", err)
			}
			defer h.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 1 {
				actions, err := h.Actions(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "SEQ\tSUBTASK\tACTION\tOK\tERROR\tDESCRIPTION")
				for _, act := range actions {
					fmt.Fprintf(w, "%d\t%d\t%s\t%v\t%s\t%s\n", act.Seq, act.SubtaskID, act.ActionKind, act.Succeeded, act.ErrorKind, act.Description)
				}
				return nil
			}

			runs, err := h.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "SESSION\tSTARTED\tRESULT\tTASK")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n", r.SessionID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Succeeded, r.Subtasks, r.Task)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list")
	return cmd
}
