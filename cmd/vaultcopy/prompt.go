package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/Picocrypt/zxcvbn-go"
	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/term"

	"github.com/TheMichaelB/vaultcopy/internal/models"
	"github.com/TheMichaelB/vaultcopy/internal/services/replicate"
)

// minPasswordScore is the zxcvbn score below which encryption passwords are
// flagged as weak.
const minPasswordScore = 3

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", err
	}
	return string(password), nil
}

// readPassword returns the flag value or prompts. New passwords are asked
// for twice.
func readPassword(flagValue string, confirm bool) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("password required: use --password when not attached to a terminal")
	}

	password, err := promptPassword("Password: ")
	if err != nil {
		return "", errors.Errorf("read password: %w", err)
	}
	if confirm {
		again, err := promptPassword("Confirm password: ")
		if err != nil {
			return "", errors.Errorf("read password: %w", err)
		}
		if again != password {
			return "", errors.New("passwords do not match")
		}
	}
	return password, nil
}

// warnWeakPassword prints a warning when zxcvbn rates password as easy to
// guess.
func warnWeakPassword(password string) {
	if score := zxcvbn.PasswordStrength(password, nil).Score; score < minPasswordScore {
		printWarning("Warning: weak password (strength %d/4)", score)
	}
}

// terminalCallbacks answers the copy protocol from flags or by asking on the
// terminal, and drives the progress bar.
type terminalCallbacks struct {
	onConflict string // ask, replace, skip, cancel
	onError    string // ask, retry, skip, cancel

	interactive bool
	quiet       bool
	input       *bufio.Reader
	cancelled   *atomic.Bool

	bar   *pterm.ProgressbarPrinter
	total int64
	log   []string
}

var _ replicate.Callbacks = (*terminalCallbacks)(nil)

func newTerminalCallbacks(onConflict, onError string, quiet bool, cancelled *atomic.Bool) *terminalCallbacks {
	return &terminalCallbacks{
		onConflict:  onConflict,
		onError:     onError,
		interactive: !quiet && term.IsTerminal(int(os.Stdin.Fd())),
		quiet:       quiet,
		input:       bufio.NewReader(os.Stdin),
		cancelled:   cancelled,
	}
}

func (c *terminalCallbacks) OnConflict(target string) models.Resolution {
	if c.onConflict != "ask" {
		res, _ := models.ParseResolution(c.onConflict)
		return res
	}
	if !c.interactive {
		return models.ResolutionSkip
	}

	answer := c.ask(fmt.Sprintf("%s already exists. [r]eplace, [s]kip, [c]ancel? ",
		color.New(color.Bold).Sprint(target)), "s")
	switch answer {
	case "r", "replace":
		return models.ResolutionReplace
	case "c", "cancel":
		return models.ResolutionCancel
	default:
		return models.ResolutionSkip
	}
}

func (c *terminalCallbacks) OnError(source string, err error) models.ErrorDecision {
	if c.onError != "ask" {
		d, _ := models.ParseErrorDecision(c.onError)
		return d
	}
	if !c.interactive {
		return models.DecisionSkip
	}

	printError("%s: %s (%v)", source, models.Describe(err), err)
	answer := c.ask("[r]etry, [s]kip, [c]ancel? ", "s")
	switch answer {
	case "r", "retry":
		return models.DecisionRetry
	case "c", "cancel":
		return models.DecisionCancel
	default:
		return models.DecisionSkip
	}
}

func (c *terminalCallbacks) ask(prompt, fallback string) string {
	color.New(color.FgYellow).Fprint(os.Stderr, "\n"+prompt)
	line, err := c.input.ReadString('\n')
	if err != nil {
		return fallback
	}
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "" {
		return fallback
	}
	return line
}

func (c *terminalCallbacks) OnProgress(label string, copied, total int64) {
	if c.quiet || total <= 0 {
		return
	}

	if c.bar == nil {
		bar, err := pterm.DefaultProgressbar.
			WithTotal(int(total)).
			WithTitle("Copying").
			WithShowCount(false).
			Start()
		if err != nil {
			c.quiet = true
			return
		}
		c.bar = bar
	}

	if total != c.total {
		c.bar.Total = int(total)
		c.total = total
	}
	c.bar.UpdateTitle(shortLabel(label))
	c.bar.Current = int(copied)
	c.bar.Add(0)
}

func (c *terminalCallbacks) OnLog(msg string) {
	c.log = append(c.log, msg)
	if logger != nil {
		logger.Debug(msg)
	}
}

func (c *terminalCallbacks) IsCancelled() bool {
	return c.cancelled.Load()
}

func (c *terminalCallbacks) finish() {
	if c.bar != nil {
		_, _ = c.bar.Stop()
	}
}

func shortLabel(label string) string {
	const width = 40
	if len(label) <= width {
		return label
	}
	return "..." + label[len(label)-width+3:]
}
