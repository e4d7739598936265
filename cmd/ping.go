package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"ipcam/pkg/config"
	"ipcam/pkg/logger"
	"ipcam/pkg/message"
	"ipcam/pkg/service"
	"ipcam/pkg/timer"
	"ipcam/pkg/transport/memory"

	"github.com/spf13/cobra"
)

const (
	pingServerName = "ipingd"
	pingClientName = "iping"
	pingAddress    = "inproc://ipingd"
)

var (
	pingCount   int
	pingTimeout time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Exchange ping requests between two in-process services",
	Long:  "Starts a ping server and a client on the in-process transport and blocks on each response from outside the service goroutine.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		log, err := logger.New(config.LoggingConfig{Level: "warn"})
		if err != nil {
			return err
		}

		return runPing(cmd.Context(), cmd.OutOrStdout(), pingCount, pingTimeout, log)
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVarP(&pingCount, "count", "c", 3, "number of requests to send")
	pingCmd.Flags().DurationVarP(&pingTimeout, "timeout", "t", 2*time.Second, "time to wait for each response")
}

func runPing(ctx context.Context, out io.Writer, count int, timeout time.Duration, log *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	network := memory.NewNetwork()
	pumpNode := network.Node("timer_pump")
	defer pumpNode.Close()

	pump, err := timer.NewPump(pumpNode, log)
	if err != nil {
		return err
	}

	serverNode := network.Node(pingServerName)
	defer serverNode.Close()
	server, err := service.New(pingServerName, &config.Config{
		Bind: map[string]string{pingServerName: pingAddress},
	}, serverNode, service.WithLogger(log))
	if err != nil {
		return err
	}
	registerBuiltins(server)

	clientNode := network.Node(pingClientName)
	defer clientNode.Close()
	client, err := service.New(pingClientName, &config.Config{
		Connect: map[string]string{pingServerName: pingAddress},
	}, clientNode, service.WithLogger(log))
	if err != nil {
		return err
	}

	for _, run := range []func(context.Context) error{pump.Run, server.Run, client.Run} {
		wg.Add(1)
		go func(run func(context.Context) error) {
			defer wg.Done()
			_ = run(ctx)
		}(run)
	}

	for i := 0; i < count; i++ {
		start := time.Now()
		resp, err := client.Call(ctx, message.NewRequest(pingAction, nil), pingServerName, timeout)
		if err != nil {
			return fmt.Errorf("ping %d: %w", i+1, err)
		}

		var reply pingReply
		if err := json.Unmarshal(resp.Body, &reply); err != nil {
			return fmt.Errorf("ping %d: decode reply: %w", i+1, err)
		}
		fmt.Fprintf(out, "reply from %s: id=%s code=%s time=%s\n", reply.Service, resp.ID, resp.Code, time.Since(start).Round(time.Microsecond))
	}

	return nil
}
