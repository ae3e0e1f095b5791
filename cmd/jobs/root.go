package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/app"
	"github.com/cyberkey/cyberkey-backend/internal/config"
	"github.com/cyberkey/cyberkey-backend/internal/logger"
)

type rootOptions struct {
	timeout time.Duration
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
}

var jobDescriptions = map[string]string{
	app.JobScanExpiringKeys:  "Push a notification for every key expiring within three days",
	app.JobEmailExpiringKeys: "Email owners of expiring keys through their own SMTP server",
	app.JobPurgeActivityLogs: "Delete activity logs older than the retention window",
	app.JobSweepExpiredKeys:  "Delete API keys whose expiry has passed",
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "cyberkey-jobs",
		Short:         "Run CyberKey background jobs once",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if opts.verbose {
				level = "debug"
			}
			l, err := logger.New(logger.Options{Level: level, Development: !cfg.IsRelease()})
			if err != nil {
				return err
			}
			opts.cfg, opts.logger = cfg, l
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Minute, "maximum run time")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	for _, name := range []string{
		app.JobScanExpiringKeys,
		app.JobEmailExpiringKeys,
		app.JobPurgeActivityLogs,
		app.JobSweepExpiredKeys,
	} {
		root.AddCommand(newJobCmd(opts, name))
	}
	root.AddCommand(newTestSMTPCmd(opts))
	return root
}

func newJobCmd(opts *rootOptions, name string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: jobDescriptions[name],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			a, err := app.New(ctx, opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			start := time.Now()
			if err := a.Runner.RunNow(ctx, name); err != nil {
				return fmt.Errorf("%s failed: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s completed in %s\n", name, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
