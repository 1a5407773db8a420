package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/beanflow/beanflow/internal/engine"
	"github.com/beanflow/beanflow/internal/importer"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <source> <file>...",
		Short: "Import bank export files",
		Long: `Import one or more bank export files for a configured source.

Records are normalized, deduplicated against the committed ledger, run
through the hook chain, and appended as balanced transactions. Entries whose
counter account cannot be predicted confidently go to the fallback file.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runImportCmd,
	}

	cmd.Flags().Bool("dry-run", false, "Run the full pipeline without committing anything")
	cmd.Flags().Bool("train", false, "Retrain the model from the ledger before importing")
	_ = viper.BindPFlag("import.dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("import.train", cmd.Flags().Lookup("train"))

	return cmd
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	source, err := a.importSource(args[0])
	if err != nil {
		return err
	}

	files, err := expandGlobs(args[1:])
	if err != nil {
		return err
	}

	if viper.GetBool("import.train") {
		if _, err := a.engine.Train(ctx); err != nil {
			return fmt.Errorf("training failed: %w", err)
		}
	} else if err := a.engine.EnsureTrained(ctx); err != nil {
		slog.Warn("No trained model available, predictions disabled until 'beanflow train' runs", "error", err)
	}

	dryRun := viper.GetBool("import.dry_run")
	if dryRun {
		slog.Info("Dry run mode, nothing will be committed")
	}

	total := &engine.Report{}
	for _, file := range files {
		report, err := importFile(ctx, a, source, file, dryRun)
		if err != nil {
			return fmt.Errorf("importing %s: %w", file, err)
		}
		mergeReport(total, report)
	}

	slog.Info("Import finished",
		"files", len(files),
		"imported", total.Imported,
		"duplicates", total.Duplicates,
		"malformed", total.Malformed,
		"hook_failed", total.HookFailed,
		"fallback", total.Fallback)

	for _, record := range total.Records {
		switch record.Status {
		case engine.StatusMalformed, engine.StatusHookFailed:
			slog.Warn("Record not imported",
				"status", record.Status,
				"line", record.Line,
				"description", record.Description,
				"error", record.Error)
		case engine.StatusImported, engine.StatusDuplicate:
		}
	}
	return nil
}

func importFile(ctx context.Context, a *app, source importer.Source, file string, dryRun bool) (*engine.Report, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(filepath.Base(file)),
	)
	defer func() { _ = bar.Finish() }()

	return a.engine.Import(ctx, source, f, engine.ImportOptions{
		File:     filepath.Base(file),
		DryRun:   dryRun,
		Progress: func() { _ = bar.Add(1) },
	})
}

// expandGlobs resolves glob patterns in file arguments, keeping literal
// paths as-is. A pattern matching nothing is an error.
func expandGlobs(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad file pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
		files = append(files, matches...)
	}
	return files, nil
}

func mergeReport(total, report *engine.Report) {
	total.Records = append(total.Records, report.Records...)
	total.Imported += report.Imported
	total.Duplicates += report.Duplicates
	total.Malformed += report.Malformed
	total.HookFailed += report.HookFailed
	total.Fallback += report.Fallback
}
