// File: cmd/page_agent.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pilot/internal/observability"
	"github.com/xkilldash9x/pilot/internal/service"
	"github.com/xkilldash9x/pilot/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// newPageAgentCmd hosts the page side so a controller started with
// transport.mode=websocket can drive it.
func newPageAgentCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "page-agent",
		Short: "Serve the active page to remote controllers over WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			host, closePages, err := service.NewPageHost(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer closePages()

			if listen == "" {
				listen = cfg.Transport().ListenAddr
			}
			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", listen, err)
			}

			wsServer := transport.NewServer(host, logger)
			mux := http.NewServeMux()
			mux.Handle("/ws", wsServer)
			httpServer := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

			fmt.Fprintf(cmd.OutOrStdout(), "Page agent listening on ws://%s/ws\n", ln.Addr())
			logger.Info("Page agent started.", zap.String("addr", ln.Addr().String()))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("page agent server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				// Hijacked WebSocket connections are not tracked by Shutdown.
				wsServer.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return httpServer.Shutdown(shutdownCtx)
			})

			err = g.Wait()
			logger.Info("Page agent stopped.")
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "address to listen on (default transport.listen_addr)")
	return cmd
}
