package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ipcam/pkg/config"
	"ipcam/pkg/logger"
	"ipcam/pkg/service"
	"ipcam/pkg/timer"
	"ipcam/pkg/transport/memory"

	"github.com/spf13/cobra"
)

var serviceName string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a service with its timer pump",
	Long:  "Loads app.yml, starts the timer pump and runs one service on the in-process transport until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runServe(runCtx, strings.TrimSpace(serviceName), cfg, log); err != nil {
			log.Error("Service runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serviceName, "name", "n", "ipcam", "service name, also the default token")
}

func runServe(ctx context.Context, name string, cfg *config.Config, log *slog.Logger) error {
	network := memory.NewNetwork()

	pumpNode := network.Node("timer_pump")
	defer pumpNode.Close()

	pump, err := timer.NewPump(pumpNode, log)
	if err != nil {
		return fmt.Errorf("start timer pump: %w", err)
	}
	go func() {
		if err := pump.Run(ctx); err != nil {
			log.Error("Timer pump stopped", "error", err)
		}
	}()

	node := network.Node(name)
	defer node.Close()

	svc, err := service.New(name, cfg, node, service.WithLogger(log))
	if err != nil {
		return fmt.Errorf("initialize service: %w", err)
	}
	registerBuiltins(svc)

	log.Info("Service configured", "service", name, "token", svc.Token(), "sweep_interval", cfg.Sweep())
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
