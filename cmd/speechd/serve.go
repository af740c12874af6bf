package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deathnote2501/fia-v3.0-sub001/pkg/config"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/version"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the page bridge",
	Long: `Loads the configuration, starts the speech runtime and serves the page
bridge until SIGINT or SIGTERM.

Secrets can come from the environment: SPEECHD_TTS_API_KEY overrides the
synthesis key and OPENAI_API_KEY fills the OpenAI keys left empty.

Example:
  speechd serve --config speechd.yaml`,
	RunE: runServe,
}

var (
	serveConfigPath string
	serveAddr       string
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "SpeechConfig file")
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Bridge listen address, overrides bridge.addr")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(serveConfigPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Bridge.Addr = serveAddr
	}
	logger.Configure(cfg.Logging.Settings())
	if cmd.Flags().Changed("verbose") {
		logger.SetVerbose(true)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.Bridge.Addr)
	if err != nil {
		_ = a.shutdown(context.Background())
		return fmt.Errorf("listen on %s: %w", cfg.Bridge.Addr, err)
	}

	logger.Info("speechd starting", append(version.GetBuildInfo(), "addr", ln.Addr().String())...)
	serveErr := a.serve(ctx, ln)
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown incomplete", "error", err)
	}
	return serveErr
}
