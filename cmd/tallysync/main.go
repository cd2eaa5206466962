// Tallysync is the offline-first synchronization daemon for the Tally shared
// expense ledger. It keeps the per-device SQLite datastore converged with the
// remote store by pushing local changes and pulling remote ones, and
// materializes expenses shared by other accounts.
//
// Usage:
//
//	tallysync setup                     # interactive first-run wizard
//	tallysync daemon [--config <path>]  # run continuously (debounce + realtime + poll)
//	tallysync sync-once [--config ...]  # single sync cycle then exit
//	tallysync migrate [--config ...]    # one-time bulk upload of the local dataset
//	tallysync status                    # show config & datastore state
//	tallysync version                   # print version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tallyapp/tallysync/internal/bus"
	"github.com/tallyapp/tallysync/internal/config"
	"github.com/tallyapp/tallysync/internal/logging"
	"github.com/tallyapp/tallysync/internal/model"
	"github.com/tallyapp/tallysync/internal/remote"
	"github.com/tallyapp/tallysync/internal/setup"
	"github.com/tallyapp/tallysync/internal/store"
	syncp "github.com/tallyapp/tallysync/internal/sync"
	"github.com/tallyapp/tallysync/internal/telemetry"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

// run dispatches to the appropriate subcommand.
func run() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	switch cmd := os.Args[1]; cmd {
	case "setup":
		return runSetup()
	case "daemon":
		return runSync(os.Args[2:], true)
	case "sync-once":
		return runSync(os.Args[2:], false)
	case "migrate":
		return runMigrate(os.Args[2:])
	case "status":
		return runStatus()
	case "version":
		fmt.Println("tallysync", version)
		return nil
	default:
		return fmt.Errorf("unknown command %q — run 'tallysync' for usage", cmd)
	}
}

// printUsage shows help and suggests setup if no config exists.
func printUsage() error {
	cfgPath, _ := config.DefaultPath()
	_, cfgErr := os.Stat(cfgPath)

	fmt.Fprintln(os.Stderr, "Tallysync — offline-first sync for the Tally expense ledger")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  tallysync setup                   Interactive first-run wizard")
	fmt.Fprintln(os.Stderr, "  tallysync daemon [--config ...]   Run as continuous daemon")
	fmt.Fprintln(os.Stderr, "  tallysync sync-once [--config ..] Single sync cycle then exit")
	fmt.Fprintln(os.Stderr, "  tallysync migrate [--config ...]  One-time bulk upload of local data")
	fmt.Fprintln(os.Stderr, "  tallysync status                  Show config & datastore state")
	fmt.Fprintln(os.Stderr, "  tallysync version                 Print version")
	fmt.Fprintln(os.Stderr, "")

	if cfgErr != nil {
		fmt.Fprintln(os.Stderr, "No config file found. Run 'tallysync setup' to get started.")
	}

	os.Exit(1)
	return nil // unreachable
}

// --- Subcommands -------------------------------------------------------------

// runSetup launches the interactive setup wizard.
func runSetup() error {
	logger := logging.SetupWithLevel(slog.LevelWarn)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	wiz := setup.NewWizard(os.Stdin, os.Stdout, logger)
	return wiz.Run(ctx)
}

// runSync handles both "daemon" and "sync-once" subcommands.
func runSync(args []string, daemon bool) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return startSync(*cfgPath, *verbose, daemon)
}

// runMigrate performs the one-time bulk upload of the local dataset.
func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	defaultCfg, _ := config.DefaultPath()
	cfgPath := fs.String("config", defaultCfg, "path to config.yaml")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(*verbose)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", *cfgPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	client := remote.New(cfg.RemoteURL, cfg.APIKey, cfg.TokenSource(), logger)
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("remote store unreachable: %w", err)
	}

	migrator := syncp.NewMigrator(localStore{st}, client, func(p syncp.MigrationProgress) {
		switch p.Phase {
		case syncp.MigrationInProgress:
			fmt.Printf("  uploading %s (%d rows)...\n", p.Entity, p.Count)
		case syncp.MigrationCompleted:
			fmt.Println("✓ Migration complete.")
		case syncp.MigrationFailed:
			fmt.Printf("✗ Migration failed: %v\n", p.Err)
		}
	}, logger)

	return migrator.Run(ctx, cfg.AccountID)
}

// runStatus prints the current configuration and datastore state.
func runStatus() error {
	cfgPath, _ := config.DefaultPath()

	fmt.Println("Tallysync Status")
	fmt.Println("────────────────")

	cfg, loadErr := config.Load(cfgPath)
	if loadErr != nil {
		if errors.Is(loadErr, os.ErrNotExist) {
			fmt.Printf("  Config:     not found (%s)\n", cfgPath)
		} else {
			fmt.Printf("  Config:     %s (invalid: %v)\n", cfgPath, loadErr)
		}
		return nil
	}

	fmt.Printf("  Config:     %s ✓\n", cfgPath)
	fmt.Printf("  Remote:     %s\n", cfg.RemoteURL)
	fmt.Printf("  Account:    %s\n", cfg.AccountID)
	fmt.Printf("  Debounce:   %s\n", cfg.Debounce)
	fmt.Printf("  Poll:       %s\n", cfg.PollInterval)
	fmt.Printf("  Realtime:   %t\n", cfg.RealtimeEnabled())

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath, _ = store.DefaultDBPath()
	}
	info, err := os.Stat(dbPath)
	if err != nil {
		fmt.Println("  Local DB:   not found")
		return nil
	}
	fmt.Printf("  Local DB:   %s (%s)\n", dbPath, humanSize(info.Size()))

	st, err := store.Open(dbPath, nil)
	if err != nil {
		fmt.Printf("  (cannot open DB: %v)\n", err)
		return nil
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	if cursor, err := st.Cursor(ctx, cfg.AccountID); err == nil {
		if cursor.IsZero() {
			fmt.Println("  Last sync:  never")
		} else {
			fmt.Printf("  Last sync:  %s\n", cursor.Format(time.RFC3339))
		}
	}
	if done, err := st.MigrationDone(ctx, cfg.AccountID); err == nil {
		fmt.Printf("  Migrated:   %t\n", done)
	}
	return nil
}

// --- Sync core ---------------------------------------------------------------

// startSync is the shared implementation for daemon and sync-once modes.
func startSync(cfgPath string, verbose, daemon bool) error {
	logger := newLogger(verbose)

	// --- Config --------------------------------------------------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config from %q: %w", cfgPath, err)
	}
	logger.Info("config loaded",
		"remote_url", cfg.RemoteURL,
		"account", cfg.AccountID,
		"debounce", cfg.Debounce,
		"poll_interval", cfg.PollInterval,
	)

	// --- Telemetry (optional) ------------------------------------------------

	if cfg.Telemetry != nil {
		telCfg := telemetry.Config{
			OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
			Insecure:     cfg.Telemetry.Insecure,
			ServiceName:  cfg.Telemetry.ServiceName,
			Headers:      cfg.Telemetry.Headers,
		}
		shutdownTel, err := telemetry.Setup(context.Background(), telCfg)
		if err != nil {
			logger.Error("telemetry setup failed, continuing without telemetry", "error", err)
		} else {
			logger.Info("telemetry enabled", "endpoint", cfg.Telemetry.OTLPEndpoint)
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTel(flushCtx); err != nil {
					logger.Error("telemetry shutdown error", "error", err)
				}
			}()
		}
	}

	// --- Event bus & local datastore -----------------------------------------

	events := bus.New()

	st, err := openStoreWithBus(cfg, events)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	// --- Remote client & connectivity check ----------------------------------

	client := remote.New(cfg.RemoteURL, cfg.APIKey, cfg.TokenSource(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger.Info("pinging remote store", "url", cfg.RemoteURL)
	if err := client.Ping(ctx); err != nil {
		if !daemon {
			return fmt.Errorf("connecting to the remote store at %q: %w\n\nCheck remote_url, api_key, and the token source in your config", cfg.RemoteURL, err)
		}
		// The daemon starts offline-tolerant: cycles skip until the network
		// comes back.
		logger.Warn("remote store unreachable, starting anyway", "error", err)
	}

	// --- Sync engine ---------------------------------------------------------

	auth := staticAuth{user: cfg.AccountID, phoneHash: model.HashPhone(cfg.Phone)}
	probe := netProbe{target: cfg.RemoteURL}

	engine := syncp.New(syncp.Options{
		Local:        localStore{st},
		Writer:       client,
		Reader:       client,
		Shares:       client,
		Auth:         auth,
		Net:          probe,
		Events:       events,
		Debounce:     cfg.Debounce,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	})

	// --- Dispatch mode -------------------------------------------------------

	if !daemon {
		logger.Info("running single sync cycle")
		if err := engine.RunNow(ctx); err != nil {
			return fmt.Errorf("sync cycle: %w", err)
		}
		logger.Info("sync complete")
		return nil
	}

	if cfg.RealtimeEnabled() {
		feed := remote.NewFeed(cfg.RemoteURL, cfg.APIKey, cfg.TokenSource(), events, logger)
		go feed.Run(ctx)
	}

	logger.Info("daemon starting", "poll_interval", cfg.PollInterval)
	if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sync engine: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// --- Wiring helpers ----------------------------------------------------------

func newLogger(verbose bool) *slog.Logger {
	if verbose {
		return logging.SetupWithLevel(slog.LevelDebug)
	}
	return logging.Setup()
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return openStoreWithBus(cfg, nil)
}

func openStoreWithBus(cfg *config.Config, b *bus.Bus) (*store.Store, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolving local DB path: %w", err)
		}
	}
	st, err := store.Open(dbPath, b)
	if err != nil {
		return nil, fmt.Errorf("opening local DB at %q: %w", dbPath, err)
	}
	return st, nil
}

func closeStore(st *store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("closing local DB", "error", err)
	}
}

// localStore adapts *store.Store to the engine's datastore interface. Only
// the transaction callback needs bridging: *store.Tx satisfies the engine's
// transaction surface, but Go does not convert the callback types.
type localStore struct {
	*store.Store
}

func (l localStore) Apply(ctx context.Context, fn func(tx syncp.LocalTx) error) error {
	return l.Store.Apply(ctx, func(tx *store.Tx) error { return fn(tx) })
}

// staticAuth reports the account configured in config.yaml. Sign-in and token
// refresh happen outside this process.
type staticAuth struct {
	user      string
	phoneHash string
}

func (a staticAuth) CurrentUser() (string, bool) { return a.user, a.user != "" }
func (a staticAuth) PhoneHash() string           { return a.phoneHash }

// netProbe answers connectivity checks with a cheap TCP dial to the backend
// host, so offline cycles skip without burning the HTTP retry budget.
type netProbe struct {
	target string
}

func (p netProbe) Online(ctx context.Context) bool {
	u, err := url.Parse(p.target)
	if err != nil {
		return false
	}
	hostport := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "http" {
			port = "80"
		}
		hostport = net.JoinHostPort(u.Hostname(), port)
	}

	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	conn, err := d.DialContext(dialCtx, "tcp", hostport)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// humanSize returns a human-readable file size string.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
