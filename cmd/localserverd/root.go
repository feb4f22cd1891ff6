package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/helouazizi/localserver/internal/config"
	"github.com/helouazizi/localserver/internal/metrics"
	"github.com/helouazizi/localserver/internal/reactor"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "localserverd",
	Short: "A single-threaded, epoll-driven HTTP/1.1 server with CGI support",
	RunE:  runReactor,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "./config.yaml", "path to the YAML config file")
}

func runReactor(cmd *cobra.Command, args []string) error {
	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}

	metricsSet := metrics.New()

	re, err := reactor.New(cfg, log, metricsSet)
	if err != nil {
		return fmt.Errorf("construct reactor: %w", err)
	}

	if err := re.Bind(); err != nil {
		return fmt.Errorf("bind listeners: %w", err)
	}
	log.Info("bound listeners", zap.Int("count", re.ListenerCount()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return re.Run(ctx)
}
