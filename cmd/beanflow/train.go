package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Rebuild the prediction model from the ledger",
		Long: `Rebuild the counter-account prediction model from the committed ledger.

The model learns from entries whose source posting matches
accounts.source_regex and whose single counter posting matches
accounts.category_regex. The trained model is cached in the history
database so later commands can predict without retraining.`,
		RunE: runTrainCmd,
	}
}

func runTrainCmd(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	result, err := a.engine.Train(cmd.Context())
	if err != nil {
		return err
	}

	slog.Info("Training finished",
		"examples", result.Examples,
		"accounts", result.Stats.Accounts,
		"fingerprint", result.Fingerprint)
	return nil
}
