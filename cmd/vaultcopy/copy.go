package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/TheMichaelB/vaultcopy/internal/crypto"
	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/services/replicate"
	"github.com/TheMichaelB/vaultcopy/internal/state"
)

var copyCmd = &cobra.Command{
	Use:   "copy <source> <target>",
	Short: "Copy a directory tree",
	Long: `Copy replicates the source tree into the target directory.

File contents can be encrypted (--encrypt) or decrypted (--decrypt), and
directory names can be shortened (--encrypt-dirs) or restored
(--decrypt-dirs). Encrypted files carry the "enc_" prefix.`,
	Example: `  vaultcopy copy ~/Documents /mnt/backup --encrypt --encrypt-dirs
  vaultcopy copy /mnt/backup ~/Restore --decrypt --decrypt-dirs
  vaultcopy copy src dst --exclude '**/*.tmp' --on-conflict replace`,
	Args: cobra.ExactArgs(2),
	RunE: runCopy,
}

var (
	copyEncrypt     bool
	copyDecrypt     bool
	copyEncryptDirs bool
	copyDecryptDirs bool
	copyPassword    string
	copyExclude     []string
	copyOnConflict  string
	copyOnError     string
	copyQuiet       bool
)

func init() {
	rootCmd.AddCommand(copyCmd)

	copyCmd.Flags().BoolVarP(&copyEncrypt, "encrypt", "e", false,
		"Encrypt file contents")
	copyCmd.Flags().BoolVarP(&copyDecrypt, "decrypt", "d", false,
		"Decrypt file contents")
	copyCmd.Flags().BoolVar(&copyEncryptDirs, "encrypt-dirs", false,
		"Replace directory names with short hashed names")
	copyCmd.Flags().BoolVar(&copyDecryptDirs, "decrypt-dirs", false,
		"Restore directory names from the name mapping")
	copyCmd.Flags().StringVarP(&copyPassword, "password", "p", "",
		"Password (will prompt if not provided)")
	copyCmd.Flags().StringSliceVar(&copyExclude, "exclude", nil,
		"Glob pattern to skip, relative to the source (repeatable)")
	copyCmd.Flags().StringVar(&copyOnConflict, "on-conflict", "ask",
		"What to do with existing targets: ask, replace, skip, cancel")
	copyCmd.Flags().StringVar(&copyOnError, "on-error", "ask",
		"What to do when an entry fails: ask, retry, skip, cancel")
	copyCmd.Flags().BoolVarP(&copyQuiet, "quiet", "q", false,
		"No progress bar or prompts")

	copyCmd.MarkFlagsMutuallyExclusive("encrypt", "decrypt")
	copyCmd.MarkFlagsMutuallyExclusive("encrypt-dirs", "decrypt-dirs")
}

func runCopy(cmd *cobra.Command, args []string) error {
	if err := checkPolicy("on-conflict", copyOnConflict, func(s string) error {
		_, err := models.ParseResolution(s)
		return err
	}); err != nil {
		return err
	}
	if err := checkPolicy("on-error", copyOnError, func(s string) error {
		_, err := models.ParseErrorDecision(s)
		return err
	}); err != nil {
		return err
	}

	source, err := filepath.Abs(args[0])
	if err != nil {
		return errors.Errorf("resolve source: %w", err)
	}
	target, err := filepath.Abs(args[1])
	if err != nil {
		return errors.Errorf("resolve target: %w", err)
	}

	opts := &models.CopyOptions{
		SourceDir:       source,
		TargetDir:       target,
		EncryptFiles:    copyEncrypt,
		DecryptFiles:    copyDecrypt,
		EncryptDirNames: copyEncryptDirs,
		DecryptDirNames: copyDecryptDirs,
		Exclude:         append(append([]string{}, cfg.Transfer.Exclude...), copyExclude...),
		ShortNameLength: cfg.Transfer.ShortNameLength,
	}

	if opts.NeedsPassword() {
		encrypting := opts.EncryptFiles || opts.EncryptDirNames
		opts.Password, err = readPassword(copyPassword, encrypting && copyPassword == "")
		if err != nil {
			return err
		}
		if encrypting {
			warnWeakPassword(opts.Password)
		}
	}

	if err := opts.Validate(); err != nil {
		printError("Invalid options: %v", err)
		return err
	}

	history, err := state.NewStore(cfg.State, logger)
	if err != nil {
		logger.WithError(err).Warn("Run history unavailable")
		history = nil
	} else {
		defer history.Close()
	}

	engine := replicate.NewEngine(crypto.DefaultCodec(), replicate.EngineConfigFrom(cfg.Transfer), logger)
	service := replicate.NewService(engine, history, logger)

	var cancelled atomic.Bool
	cb := newTerminalCallbacks(copyOnConflict, copyOnError, copyQuiet || jsonOutput, &cancelled)

	start := time.Now()
	result, err := runWithSignals(cmd.Context(), &cancelled, func(ctx context.Context) (*replicate.Result, error) {
		defer cb.finish()
		return service.Copy(ctx, opts, cb)
	})
	duration := time.Since(start)

	if jsonOutput {
		printJSON(copyReport(source, target, result, cb.log, err))
		return err
	}

	if err != nil {
		printError("Copy failed: %s (%v)", models.Describe(err), err)
		return err
	}

	p := result.Progress
	fmt.Printf("\nCopy summary:\n")
	fmt.Printf("   Files copied:  %d\n", p.FilesCopied)
	fmt.Printf("   Files skipped: %d\n", p.FilesSkipped)
	if p.FilesFailed > 0 {
		fmt.Printf("   Files failed:  %d\n", p.FilesFailed)
	}
	fmt.Printf("   Directories:   %d\n", p.DirsCreated)
	fmt.Printf("   Data:          %s\n", formatBytes(p.BytesCopied))
	fmt.Printf("   Duration:      %s\n", duration.Round(time.Millisecond))

	if result.Cancelled {
		printWarning("Copy cancelled; files already written were kept")
		return nil
	}
	printSuccess("Copy completed")
	return nil
}

// runWithSignals runs work on a worker goroutine while the calling side
// waits for SIGINT or SIGTERM and raises the cancellation flag.
func runWithSignals(ctx context.Context, cancelled *atomic.Bool, work func(context.Context) (*replicate.Result, error)) (*replicate.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var result *replicate.Result
	done := make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(done)
		var err error
		result, err = work(gctx)
		return err
	})
	g.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case <-sigChan:
			printWarning("\nInterrupted, stopping after the current chunk...")
			cancelled.Store(true)
		case <-done:
		}
		return nil
	})

	err := g.Wait()
	return result, err
}

// copyReport builds the --json output of a copy run.
func copyReport(source, target string, result *replicate.Result, messages []string, err error) map[string]interface{} {
	out := map[string]interface{}{
		"success": err == nil,
		"source":  source,
		"target":  target,
	}
	if result != nil {
		out["run_id"] = result.RunID
		out["cancelled"] = result.Cancelled
		out["progress"] = result.Progress
		out["percent"] = result.Progress.Percent()
		out["messages"] = messages
	}
	if err != nil {
		out["error"] = err.Error()
		out["error_code"] = models.Code(err)
	}
	return out
}

func checkPolicy(flag, value string, parse func(string) error) error {
	if value == "ask" {
		return nil
	}
	if err := parse(value); err != nil {
		return errors.Errorf("--%s: %w", flag, err)
	}
	return nil
}
