package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/therudywolf/DomainsBot-sub000/internal/api"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Run the monitoring daemon (check loop plus optional HTTP API)",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		withAPI, _ := cmd.Flags().GetBool("api")
		authToken, _ := cmd.Flags().GetString("auth-token")
		corsOrigins, _ := cmd.Flags().GetStringSlice("cors-origins")
		rateLimit, _ := cmd.Flags().GetInt("rate-limit")
		rateBurst, _ := cmd.Flags().GetInt("rate-burst")
		shutdownTimeout, _ := cmd.Flags().GetDuration("shutdown-timeout")

		container, err := buildContainer()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			err := container.Scheduler.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})

		if withAPI {
			server := api.NewServer(api.Config{
				Watch:       container.WatchService,
				Checks:      container.Scheduler,
				Jobs:        api.NewJobManager(0),
				AuthToken:   authToken,
				Logger:      logger.Desugar(),
				CORSOrigins: corsOrigins,
				RateLimit:   rateLimit,
				RateBurst:   rateBurst,
			})
			httpServer := &http.Server{
				Addr:         addr,
				Handler:      server,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 30 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			g.Go(func() error {
				fmt.Printf("%s API server listening on %s\n", colorInfo("→"), addr)
				if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					_ = httpServer.Close()
					return fmt.Errorf("failed to gracefully shutdown server: %w", err)
				}
				return nil
			})
		}

		fmt.Printf("%s Monitoring daemon started, press Ctrl+C to stop\n", colorInfo("→"))
		if err := g.Wait(); err != nil {
			return err
		}
		fmt.Printf("%s Shutdown complete\n", colorSuccess("✓"))
		return nil
	},
}

func init() {
	monitorCmd.Flags().Bool("api", false, "Expose the operator HTTP API")
	monitorCmd.Flags().String("addr", "127.0.0.1:8080", "Address for the API server")
	monitorCmd.Flags().String("auth-token", "", "Optional shared secret for API requests")
	monitorCmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (empty = allow all)")
	monitorCmd.Flags().Int("rate-limit", 10, "Rate limit per IP (requests/second, 0 = disabled)")
	monitorCmd.Flags().Int("rate-burst", 20, "Rate limit burst size")
	monitorCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout")
	rootCmd.AddCommand(monitorCmd)
}
