package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	gatewayhttp "github.com/julienstroheker/wsrelay/gateway/http"
	"github.com/julienstroheker/wsrelay/gateway/http/handlers"
	"github.com/julienstroheker/wsrelay/internal/config"
	"github.com/julienstroheker/wsrelay/internal/httpclient"
	"github.com/julienstroheker/wsrelay/internal/logging"
	"github.com/julienstroheker/wsrelay/internal/relay"
)

const (
	defaultPort            = 8080
	defaultAdminPort       = 9090
	defaultShutdownTimeout = 30
)

var (
	portFlag            int
	adminPortFlag       int
	upstreamFlag        string
	connectTimeoutFlag  time.Duration
	shutdownTimeoutFlag int
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the relay",
	Long:  `Start the relay listener and the admin listener (health, readiness, metrics)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd)
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
	startCmd.Flags().IntVarP(&portFlag, "port", "p", defaultPort, "Port to relay traffic on")
	startCmd.Flags().IntVar(&adminPortFlag, "admin-port", defaultAdminPort, "Port for /healthz, /readyz and /metrics")
	startCmd.Flags().StringVar(&upstreamFlag, "upstream", "", "Upstream origin (overrides RELAY_UPSTREAM_URL)")
	startCmd.Flags().DurationVar(&connectTimeoutFlag, "connect-timeout", config.DefaultConnectTimeout,
		"Upstream WebSocket connect timeout (overrides RELAY_CONNECT_TIMEOUT)")
	startCmd.Flags().IntVar(&shutdownTimeoutFlag, "shutdown-timeout", defaultShutdownTimeout,
		"Graceful shutdown timeout in seconds")
}

// applyFlagOverrides copies explicitly set flags over the environment config
func applyFlagOverrides(flags *pflag.FlagSet, c *config.Config) {
	if flags.Changed("upstream") {
		c.UpstreamURL = upstreamFlag
	}
	if flags.Changed("connect-timeout") {
		c.ConnectTimeout = connectTimeoutFlag
	}
}

func runServer(cmd *cobra.Command) error {
	applyFlagOverrides(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	relayListener, err := net.Listen("tcp", fmt.Sprintf(":%d", portFlag))
	if err != nil {
		return fmt.Errorf("relay listener: %w", err)
	}
	adminListener, err := net.Listen("tcp", fmt.Sprintf(":%d", adminPortFlag))
	if err != nil {
		_ = relayListener.Close()
		return fmt.Errorf("admin listener: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting relay",
		logging.String("upstream", cfg.UpstreamURL),
		logging.Int("port", portFlag),
		logging.Int("admin_port", adminPortFlag),
	)

	return serve(ctx, &serveOptions{
		Config:          cfg,
		Logger:          logger,
		RelayListener:   relayListener,
		AdminListener:   adminListener,
		ShutdownTimeout: time.Duration(shutdownTimeoutFlag) * time.Second,
	})
}

type serveOptions struct {
	Config          *config.Config
	Logger          *logging.Logger
	RelayListener   net.Listener
	AdminListener   net.Listener
	ShutdownTimeout time.Duration

	// Readiness is created when nil
	Readiness *handlers.Readiness
}

// serve runs the relay and admin servers until ctx is done or one of them fails,
// then shuts down: not ready, drain HTTP, end sessions with 1001, stop admin.
func serve(ctx context.Context, opts *serveOptions) error {
	upstream, err := opts.Config.Upstream()
	if err != nil {
		return err
	}

	readiness := opts.Readiness
	if readiness == nil {
		readiness = handlers.NewReadiness()
	}

	// Sessions outlive the signal context until the HTTP drain is over
	sessionsCtx, endSessions := context.WithCancel(context.Background())
	defer endSessions()

	client := httpclient.NewClient(&httpclient.Options{
		Timeout: opts.Config.HTTPTimeout,
		Logger:  opts.Logger,
	})
	defer client.CloseIdleConnections()

	wsRelay := handlers.NewWebSocketRelay(&handlers.WebSocketOptions{
		Upstream:       upstream,
		Dialer:         relay.NewDialer(opts.Config.ConnectTimeout),
		ConnectTimeout: opts.Config.ConnectTimeout,
		Context:        sessionsCtx,
	})

	relayServer := gatewayhttp.NewServer(&gatewayhttp.Options{
		Handler: handlers.NewDispatcher(handlers.NewHTTPRelayHandler(upstream, client), wsRelay),
		Logger:  opts.Logger,
	})
	adminServer := gatewayhttp.NewAdminServer(&gatewayhttp.AdminOptions{Readiness: readiness})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		opts.Logger.Info("Relay listening", logging.String("addr", opts.RelayListener.Addr().String()))
		if err := relayServer.Serve(opts.RelayListener); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("relay server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		opts.Logger.Info("Admin listening", logging.String("addr", opts.AdminListener.Addr().String()))
		if err := adminServer.Serve(opts.AdminListener); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		opts.Logger.Info("Starting graceful shutdown")
		readiness.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
		defer cancel()

		var shutdownErr error
		if err := relayServer.Shutdown(shutdownCtx); err != nil {
			_ = relayServer.Close()
			shutdownErr = fmt.Errorf("could not gracefully shutdown the relay server: %w", err)
		}

		endSessions()
		if err := wsRelay.Wait(shutdownCtx); err != nil {
			opts.Logger.Warn("WebSocket sessions still running at shutdown deadline", logging.Error(err))
		}

		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			_ = adminServer.Close()
		}

		if shutdownErr == nil {
			opts.Logger.Info("Relay stopped gracefully")
		}
		return shutdownErr
	})

	readiness.SetReady(true)
	return g.Wait()
}
