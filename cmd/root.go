// Package cmd implements the microgrid-dispatch command line.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/microgrid-dispatch/app"
	"github.com/kilianp07/microgrid-dispatch/config"
	"github.com/kilianp07/microgrid-dispatch/infra/logger"
)

// version is overridden at build time with -ldflags "-X".
var version = "dev"

var (
	cfgPath  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "microgrid-dispatch",
	Short:        "Schedules recurring microgrid dispatches and announces them when due",
	Version:      version,
	SilenceUsage: true,
	RunE:         serve,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatch API, the scheduler and the notifier",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func init() {
	defPath := os.Getenv("DISPATCH_CONFIG")
	if defPath == "" {
		defPath = "config.yaml"
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", defPath, "configuration file (env DISPATCH_CONFIG)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "override logging.level from the configuration")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func serve(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	log := logger.New("main")
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
	}()
	log.Infof("microgrid-dispatch %s starting with %s", version, cfgPath)
	return svc.Run(ctx)
}
