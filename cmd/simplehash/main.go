package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"simplehash/anchor"
	"simplehash/config"
	"simplehash/internal/logging"
	"simplehash/ledger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "simplehash",
		Short:        "Compute simple hash anchors over ledger events",
		SilenceUsage: true,
	}
	root.AddCommand(newAnchorCmd())
	return root
}

// anchorOptions holds the anchor flags. Tagged fields take their defaults from
// SIMPLEHASH_* variables, so credentials can come from the environment.
type anchorOptions struct {
	StartTime        string
	EndTime          string
	FQDN             string `env:"FQDN"`
	BaseURL          string `env:"BASE_URL"`
	AuthTokenFile    string `env:"AUTH_TOKEN_FILE"`
	ClientID         string `env:"CLIENT_ID"`
	ClientSecretFile string `env:"CLIENT_SECRET_FILE"`
	PageSize         int    `env:"PAGE_SIZE"`
	EventsFile       string
	LogLevel         string `env:"LOG_LEVEL"`
}

func newAnchorCmd() *cobra.Command {
	opts := &anchorOptions{
		FQDN:     ledger.DefaultFQDN,
		PageSize: ledger.DefaultPageSize,
		LogLevel: "warn",
	}
	envErr := config.ApplyEnv(opts)

	cmd := &cobra.Command{
		Use:   "anchor",
		Short: "Print the anchor of every event accepted in [start-time, end-time)",
		Long: "Lists the confirmed events of the time window from the ledger in order, " +
			"bencodes their redacted form and prints the SHA-256 over the result as hex.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if envErr != nil {
				return envErr
			}
			return runAnchor(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.StartTime, "start-time", "", "start of the time window, RFC3339")
	flags.StringVar(&opts.EndTime, "end-time", "", "end of the time window (exclusive), RFC3339")
	flags.StringVar(&opts.FQDN, "fqdn", opts.FQDN, "ledger host events are listed from")
	flags.StringVar(&opts.BaseURL, "base-url", opts.BaseURL, "full ledger URL, overrides --fqdn")
	flags.StringVar(&opts.AuthTokenFile, "auth-token-file", opts.AuthTokenFile, "file holding a bearer token")
	flags.StringVar(&opts.ClientID, "client-id", opts.ClientID, "app registration client id, ignored if --auth-token-file is set")
	flags.StringVar(&opts.ClientSecretFile, "client-secret-file", opts.ClientSecretFile, "file holding the app registration secret, ignored if --auth-token-file is set")
	flags.IntVar(&opts.PageSize, "page-size", opts.PageSize, "events requested per page")
	flags.StringVar(&opts.EventsFile, "events-file", "", "anchor events exported to a JSON file instead of querying the ledger")
	flags.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "debug, info, warn or error")
	_ = cmd.MarkFlagRequired("start-time")
	_ = cmd.MarkFlagRequired("end-time")
	_ = flags.MarkHidden("base-url")
	return cmd
}

func runAnchor(cmd *cobra.Command, opts *anchorOptions) error {
	logger, err := logging.New("simplehash", opts.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	start, err := time.Parse(time.RFC3339, opts.StartTime)
	if err != nil {
		return fmt.Errorf("--start-time: %w", err)
	}
	end, err := time.Parse(time.RFC3339, opts.EndTime)
	if err != nil {
		return fmt.Errorf("--end-time: %w", err)
	}

	lister, err := eventLister(cmd.Context(), opts, logger)
	if err != nil {
		return err
	}

	anchorer := anchor.NewAnchorer(anchor.WithLogger(logger))
	result, err := anchorer.ComputeAnchor(cmd.Context(), start, end, lister)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Digest)
	return nil
}

func eventLister(ctx context.Context, opts *anchorOptions, logger *zap.SugaredLogger) (anchor.EventLister, error) {
	if opts.EventsFile != "" {
		data, err := os.ReadFile(opts.EventsFile)
		if err != nil {
			return nil, fmt.Errorf("read events file: %w", err)
		}
		events, err := anchor.DecodeEvents(data)
		if err != nil {
			return nil, err
		}
		logger.Infof("Replaying %d events from %s", len(events), opts.EventsFile)
		return anchor.Events(events...), nil
	}

	cfg := ledger.Config{
		FQDN:     opts.FQDN,
		BaseURL:  opts.BaseURL,
		PageSize: opts.PageSize,
	}
	ts, err := ledger.TokenSource(ctx, cfg, ledger.Credentials{
		TokenFile:        opts.AuthTokenFile,
		ClientID:         opts.ClientID,
		ClientSecretFile: opts.ClientSecretFile,
	})
	if err != nil {
		return nil, err
	}
	return ledger.NewClient(cfg, ts, logger)
}
