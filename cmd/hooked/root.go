package main

import (
	"context"
	"fmt"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"

	"hooked/internal/config"
	"hooked/internal/logging"
	"hooked/pkg/hooked"
)

// rootOptions holds global flags and the state shared by subcommands.
type rootOptions struct {
	ConfigPath string
	DBPath     string
	LogLevel   string
	Metrics    bool

	cfg *config.Config
	db  *hooked.DB
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "hooked",
		Short:         "Inspect and modify a hooked object store database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.teardown(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (default ~/.hooked/config.toml)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database file (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "print read/write counters to stderr on exit")

	cmd.AddCommand(newStoresCommand(opts))
	cmd.AddCommand(newGetCommand(opts))
	cmd.AddCommand(newScanCommand(opts))
	cmd.AddCommand(newPutCommand(opts))
	cmd.AddCommand(newDelCommand(opts))
	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newInfoCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	// CLI flags override config file values
	if o.DBPath != "" {
		cfg.Database.Path = o.DBPath
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logging.Init(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	o.cfg = cfg
	o.db = hooked.New(cfg)
	return nil
}

// open opens the database. Commands call it themselves so they can
// subscribe before the store opens.
func (o *rootOptions) open(ctx context.Context) (*hooked.DB, error) {
	if err := o.db.Open(ctx); err != nil {
		return nil, err
	}
	return o.db, nil
}

func (o *rootOptions) teardown(cmd *cobra.Command) error {
	var err error
	if o.db != nil {
		err = o.db.Close()
	}
	if o.Metrics {
		metrics.WritePrometheus(cmd.ErrOrStderr(), false)
	}
	return err
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the hooked version",
		Args:  cobra.NoArgs,
		// version needs neither config nor database
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "hooked", version)
			return err
		},
	}
}
