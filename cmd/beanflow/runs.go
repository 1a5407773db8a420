package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent import runs",
		RunE:  runRunsCmd,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to show")
	return cmd
}

func runRunsCmd(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := a.engine.Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tWHEN\tSOURCE\tFILE\tIMPORTED\tDUPLICATES\tMALFORMED\tHOOK FAILED")
	for _, run := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			run.ID, run.FinishedAt.Format("2006-01-02 15:04"),
			run.Source, run.File,
			run.Imported, run.Duplicates, run.Malformed, run.HookFailed)
	}
	return w.Flush()
}
