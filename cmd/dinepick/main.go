package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dinepick/internal/app"
	"dinepick/internal/config"
	"dinepick/internal/logger"
)

const releaseVersion = "1.0.0"

func main() {
	if err := newCmd(os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dinepick:", err)
		os.Exit(1)
	}
}

func newCmd(logOut io.Writer) *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:     "dinepick",
		Short:   "Group restaurant picking over swipe-style voting sessions.",
		Args:    cobra.NoArgs,
		Version: releaseVersion,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd)
			if err != nil {
				return err
			}

			log := logger.New(logger.Config{
				Level:   cfg.Log.Level,
				Format:  cfg.Log.Format,
				Service: "dinepick",
				Version: releaseVersion,
			}, logOut)
			slog.SetDefault(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.NewApplication(ctx, cfg, releaseVersion, log)
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&configFile, "config", "c", "", "path to a YAML, JSON or TOML config file (env: DINEPICK_CONFIG)")
	config.RegisterFlags(fs)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("dinepick v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

func loadConfig(file string, cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if file == "" {
		file = os.Getenv("DINEPICK_CONFIG")
	}
	return config.Load(file, cmd.Flags())
}
