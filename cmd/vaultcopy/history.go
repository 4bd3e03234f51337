package main

import (
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/state"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List previous copy runs",
	RunE:  runHistory,
}

var historyLimit int

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20,
		"Number of runs to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := state.NewStore(cfg.State, logger)
	if err != nil {
		printError("Failed to open history: %v", err)
		return err
	}
	defer store.Close()

	runs, err := store.List(historyLimit)
	if err != nil {
		return errors.Errorf("list runs: %w", err)
	}

	if jsonOutput {
		printJSON(runs)
		return nil
	}

	if len(runs) == 0 {
		printInfo("No runs recorded")
		return nil
	}

	data := pterm.TableData{{"Started", "Mode", "Outcome", "Files", "Skipped", "Failed", "Data", "Source", "Target"}}
	for _, r := range runs {
		data = append(data, []string{
			r.StartedAt.Local().Format(time.DateTime),
			runMode(r),
			string(r.Outcome),
			strconv.Itoa(r.FilesCopied),
			strconv.Itoa(r.FilesSkipped),
			strconv.Itoa(r.FilesFailed),
			formatBytes(r.BytesCopied),
			r.SourceDir,
			r.TargetDir,
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runMode(r *models.RunRecord) string {
	mode := r.Mode()
	switch {
	case r.EncryptDirNames:
		mode += "+dirs"
	case r.DecryptDirNames:
		mode += "-dirs"
	}
	return mode
}
