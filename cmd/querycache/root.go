package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/goliatone/go-query-cache/pkg/di"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	store      string
	dsn        string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "querycache",
		Short: "Cache-aside recipe queries",
		Long: `querycache runs recipe queries through the cache-aside layer.

Configuration is read from --config or $` + di.ConfigEnv + `; flags override
single settings.`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file (default $"+di.ConfigEnv+")")
	flags.StringVar(&opts.store, "store", "", "cache store: memory or redis")
	flags.StringVar(&opts.dsn, "dsn", "", "database DSN")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(
		newMigrateCmd(opts),
		newSeedCmd(opts),
		newSearchCmd(opts),
		newDetailCmd(opts),
		newWarmCmd(opts),
		newSweepCmd(opts),
		newImportCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func (o *rootOptions) config() (di.Config, error) {
	cfg, err := di.Load(o.configPath)
	if err != nil {
		return di.Config{}, err
	}
	if o.store != "" {
		cfg.Store = o.store
	}
	if o.dsn != "" {
		cfg.Database.DSN = o.dsn
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// withContainer builds a container, runs fn and closes the container.
func (o *rootOptions) withContainer(ctx context.Context, fn func(context.Context, *di.Container) error) error {
	cfg, err := o.config()
	if err != nil {
		return err
	}
	container, err := di.NewContainer(cfg)
	if err != nil {
		return err
	}
	defer container.Close()
	return fn(ctx, container)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
