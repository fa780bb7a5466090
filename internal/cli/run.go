package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/soyeahso/vyrtuous/internal/config"
	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/soyeahso/vyrtuous/internal/version"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		port    int
		bind    string
		console bool
		tailLog string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the agent on every configured surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if console {
				cfg.Gateway.Enabled = true
			}
			if tailLog != "" {
				cfg.Tail.Path = tailLog
				cfg.Tail.Enabled = true
			}
			if err := validate(cfg); err != nil {
				return err
			}
			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating %s: %w", paths.Base, err)
			}

			runLog, closer, err := openLogger(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()
			runLog.Info().Str("version", version.Version).Str("config", paths.Config).Msg("starting")

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg, paths, runLog, appOptions{surfaces: true})
			if err != nil {
				return err
			}
			defer a.Close()
			return a.run(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override console port")
	cmd.Flags().StringVar(&bind, "bind", "", "override console bind mode (loopback, lan, custom)")
	cmd.Flags().BoolVar(&console, "console", false, "enable the local console even if config disables it")
	cmd.Flags().StringVar(&tailLog, "tail", "", "tail this log file for fallacies")

	return cmd
}

// loadConfig reads the config file with --log-level applied.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
		cfg.Logging.ConsoleLevel = logLevel
	}
	return cfg, nil
}

// validate logs every issue and fails if there were any.
func validate(cfg config.Config) error {
	issues := config.Validate(&cfg)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
}

// openLogger builds the long-running logger from the logging section.
func openLogger(cfg config.Config) (*logging.Logger, io.Closer, error) {
	l, closer, err := logging.Open(logging.Options{
		Level:        cfg.Logging.Level,
		ConsoleLevel: cfg.Logging.ConsoleLevel,
		ConsoleStyle: cfg.Logging.ConsoleStyle,
		File:         cfg.Logging.File,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return l, closer, nil
}
