package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/seafile-filelink/internal/config"
	"github.com/tonimelisma/seafile-filelink/internal/filelink"
	"github.com/tonimelisma/seafile-filelink/internal/session"
	"github.com/tonimelisma/seafile-filelink/internal/vault"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// openVault opens the credential store. Replaced in tests with an
// in-memory keyring.
var openVault = vault.Open

// CLIFlags is a snapshot of the global flags taken in PersistentPreRunE.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext is everything a subcommand needs after the root pre-run phase:
// the parsed flags, the loaded config, and a logger built from both.
type CLIContext struct {
	Flags      CLIFlags
	Env        config.EnvOverrides
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
}

type cliContextKey struct{}

// mustCLIContext returns the CLIContext stored by PersistentPreRunE.
// Subcommands run only after the pre-run, so a missing context is a bug.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		panic("BUG: CLIContext not initialized; PersistentPreRunE did not run")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "seafile-filelink",
		Short:   "Seafile attachment links for mail clients",
		Long:    "Uploads mail attachments to a Seafile server and replaces them with share links.",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := loadCLIContext(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newTestConnectionCmd())
	cmd.AddCommand(newConfigureCmd())
	cmd.AddCommand(newAccountsCmd())
	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newForgetCmd())

	return cmd
}

// loadCLIContext resolves the config path (flag > env > default), loads the
// file and builds the logger.
func loadCLIContext(logOut io.Writer) (*CLIContext, error) {
	flags := CLIFlags{
		ConfigPath: flagConfigPath,
		JSON:       flagJSON,
		Verbose:    flagVerbose,
		Quiet:      flagQuiet,
	}

	env := config.ReadEnvOverrides()

	cfg, cfgPath, err := config.Resolve(env, config.CLIOverrides{ConfigPath: flags.ConfigPath})
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := buildLogger(logOut, cfg, flags)
	logger.Debug("config loaded", slog.String("path", cfgPath), slog.Int("accounts", len(cfg.Accounts)))

	return &CLIContext{
		Flags:      flags,
		Env:        env,
		Config:     cfg,
		ConfigPath: cfgPath,
		Logger:     logger,
	}, nil
}

// buildLogger creates an slog.Logger configured by the config file and CLI
// flags. The config log level provides the baseline; --verbose and --quiet
// override it because CLI flags always win. A terminal gets text output,
// anything else gets JSON lines.
func buildLogger(w io.Writer, cfg *config.Config, flags CLIFlags) *slog.Logger {
	level := slog.LevelInfo

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.New(slog.NewTextHandler(w, opts))
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}

// app is the wired service graph shared by the subcommands.
type app struct {
	store        *config.Store
	vault        *vault.Vault
	sessions     *session.Manager
	orchestrator *filelink.Orchestrator
}

// newApp wires config store, vault, session manager and orchestrator from
// the loaded config.
func (cc *CLIContext) newApp() (*app, error) {
	cfg := cc.Config
	logger := cc.Logger

	store := config.NewStore(config.NewHolder(cfg, cc.ConfigPath), logger)

	v, err := openVault(vault.OpenOptions{
		Backends:       cc.Env.Backends(cfg.Vault.Backends),
		FileDir:        cfg.VaultDir(),
		FilePassphrase: cc.Env.VaultPassphrase,
	}, logger)
	if err != nil {
		return nil, err
	}

	connect, data := cfg.Network.Timeouts()
	meta, transfer := session.HTTPClients(session.TransportOptions{ConnectTimeout: connect, DataTimeout: data})
	newClient := session.NewClientFactory(meta, transfer, cfg.Network.UserAgent, logger)

	sessions := session.NewManager(store, v, newClient, logger)

	orch := filelink.NewOrchestrator(sessions, v, store, newClient, logger)
	orch.DefaultExpireDays = cfg.Upload.DefaultExpireDays

	return &app{
		store:        store,
		vault:        v,
		sessions:     sessions,
		orchestrator: orch,
	}, nil
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if code := filelink.Code(err); code != "" && code != filelink.CodeUnknown {
		fmt.Fprintf(os.Stderr, "Code: %s\n", code)
	}

	os.Exit(1)
}
