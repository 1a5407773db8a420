package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func predictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <entry-id>...",
		Short: "Predict counter accounts for committed entries",
		Long: `Predict the counter account for committed ledger entries by id.

Uses the cached model from the last train run. Entries whose best score
sits below classifier.confidence_floor come back without a prediction.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPredictCmd,
	}
}

func runPredictCmd(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	predictions, err := a.engine.Predict(cmd.Context(), args)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tACCOUNT\tSCORE")
	for _, p := range predictions {
		if !p.Predicted {
			fmt.Fprintf(w, "%s\t(below confidence floor)\t\n", p.EntryID)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%.3f\n", p.EntryID, p.Account, p.Score)
	}
	return w.Flush()
}
