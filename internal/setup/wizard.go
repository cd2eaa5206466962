package setup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tallyapp/tallysync/internal/config"
	"github.com/tallyapp/tallysync/internal/remote"
)

// Wizard guides the user through first-run configuration.
type Wizard struct {
	prompt *Prompter
	logger *slog.Logger
	w      io.Writer
}

// NewWizard creates a Wizard wired to the given I/O and logger.
func NewWizard(r io.Reader, w io.Writer, logger *slog.Logger) *Wizard {
	return &Wizard{
		prompt: NewPrompter(r, w),
		logger: logger,
		w:      w,
	}
}

// Run executes the interactive setup wizard. It walks the user through the
// remote store connection, account identity, token source, sync intervals,
// and config file creation.
func (wiz *Wizard) Run(ctx context.Context) error {
	fmt.Fprintf(wiz.w, "\nWelcome to Tally Sync Setup!\n")
	fmt.Fprintf(wiz.w, "This wizard will help you configure the sync engine.\n\n")

	cfgPath, err := config.DefaultPath()
	if err != nil {
		return fmt.Errorf("resolving config path: %w", err)
	}

	if _, statErr := os.Stat(cfgPath); statErr == nil {
		fmt.Fprintf(wiz.w, "  Existing config found at %s\n", cfgPath)
		if !wiz.prompt.Confirm("Overwrite existing configuration?", false) {
			fmt.Fprintf(wiz.w, "\n  Keeping existing config.\n")
			return nil
		}
		fmt.Fprintf(wiz.w, "\n")
	}

	// Step 1: Remote store connection.
	fmt.Fprintf(wiz.w, "Step 1/4 — Remote Store\n")

	remoteURL := wiz.prompt.String("Backend URL", "https://tally.example.com")
	apiKey := wiz.prompt.Secret("API key")
	fmt.Fprintf(wiz.w, "\n")

	// Step 2: Account identity.
	fmt.Fprintf(wiz.w, "Step 2/4 — Account\n")

	accountID := wiz.prompt.String("Account ID", "")
	phone := wiz.prompt.String("Phone number (E.164, e.g. +15551234567)", "")

	fmt.Fprintf(wiz.w, "\n  The bearer token is resolved at runtime, either from a command\n")
	fmt.Fprintf(wiz.w, "  printing it to stdout or from the TALLYSYNC_TOKEN environment\n")
	fmt.Fprintf(wiz.w, "  variable.\n")
	tokenCmd := wiz.prompt.String("Token command (empty to use TALLYSYNC_TOKEN)", "")
	fmt.Fprintf(wiz.w, "\n")

	cfg := &config.Config{
		RemoteURL:    remoteURL,
		APIKey:       apiKey,
		AccountID:    accountID,
		Phone:        phone,
		TokenCommand: tokenCmd,
	}

	// Step 3: Verify connectivity before writing anything.
	fmt.Fprintf(wiz.w, "Step 3/4 — Verify Connection\n")
	fmt.Fprintf(wiz.w, "  Connecting to the remote store...")

	client := remote.New(remoteURL, apiKey, cfg.TokenSource(), wiz.logger)
	if err := client.Ping(ctx); err != nil {
		fmt.Fprintf(wiz.w, " ✗\n")
		return fmt.Errorf("cannot reach the remote store: %w\n\n  Check the URL, API key, and token, then try again", err)
	}
	fmt.Fprintf(wiz.w, " ✓\n\n")

	// Step 4: Intervals + write config.
	fmt.Fprintf(wiz.w, "Step 4/4 — Sync Behavior\n")

	debounceStr := wiz.prompt.String("Debounce after local changes? (100ms–10s)", "500ms")
	debounce, parseErr := time.ParseDuration(debounceStr)
	if parseErr != nil {
		debounce = 500 * time.Millisecond
		fmt.Fprintf(wiz.w, "  (invalid duration, using default 500ms)\n")
	}
	cfg.Debounce = debounce

	pollStr := wiz.prompt.String("Safety-net poll interval? (30s–1h)", "5m")
	poll, parseErr := time.ParseDuration(pollStr)
	if parseErr != nil {
		poll = 5 * time.Minute
		fmt.Fprintf(wiz.w, "  (invalid duration, using default 5m)\n")
	}
	cfg.PollInterval = poll

	if !wiz.prompt.Confirm("Enable the realtime change feed?", true) {
		off := false
		cfg.Realtime = &off
	}
	fmt.Fprintf(wiz.w, "\n")

	if err := cfg.Write(cfgPath); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	fmt.Fprintf(wiz.w, "  ✓ Config written to %s\n", cfgPath)

	fmt.Fprintf(wiz.w, "\nSetup complete!\n")
	fmt.Fprintf(wiz.w, "  Config:       %s\n", cfgPath)
	fmt.Fprintf(wiz.w, "  Run once:     tallysync sync-once\n")
	fmt.Fprintf(wiz.w, "  Run forever:  tallysync daemon\n")
	fmt.Fprintf(wiz.w, "  First upload: tallysync migrate\n\n")

	return nil
}
