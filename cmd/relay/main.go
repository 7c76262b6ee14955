package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/relaychat/relay/internal/auth/jwt"
	"github.com/relaychat/relay/internal/bus"
	"github.com/relaychat/relay/internal/common/config"
	"github.com/relaychat/relay/internal/storage"
	"github.com/relaychat/relay/internal/ws"
	"github.com/relaychat/relay/pkg/logger"
	"github.com/relaychat/relay/pkg/metrics"
	"github.com/relaychat/relay/pkg/trace"
	"github.com/relaychat/relay/pkg/version"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of relay",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("relay version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "relay",
		Short: "Real-time chat relay",
		Long:  `Relay delivers chat messages between users connected to any instance of a horizontally-scaled deployment.`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	lg.Info("starting relay",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Trace.Enabled {
		shutdown, err := trace.InitTracing(ctx, &cfg.Trace, lg)
		if err != nil {
			lg.Fatal("failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				lg.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	tokens, err := jwt.NewService(jwt.Config{
		SecretKey: cfg.Auth.SecretKey,
		Duration:  cfg.Auth.Duration,
	})
	if err != nil {
		lg.Fatal("invalid auth configuration", zap.Error(err))
	}

	store, err := storage.NewGormStore(lg, &cfg.Database)
	if err != nil {
		lg.Fatal("failed to open message store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	fanout, err := bus.NewRedisBus(lg, &cfg.Bus)
	if err != nil {
		lg.Fatal("failed to connect to fan-out bus", zap.Error(err))
	}
	defer func() { _ = fanout.Close() }()

	m := metrics.New(cfg.Metrics.Namespace)

	validator := ws.NewValidator(lg, tokens, cfg.WebSocket.AllowedOrigin, cfg.Auth.CookieName)
	hub := ws.NewHub(lg, cfg.WebSocket, validator, store, fanout, m)

	// Subscribe before accepting connections so no envelope published by a
	// sibling instance is missed while we come up.
	if err := hub.Start(ctx); err != nil {
		lg.Fatal("failed to subscribe to fan-out bus", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Trace.Enabled {
		router.Use(otelgin.Middleware(cfg.Trace.ServiceName))
	}
	hub.RegisterRoutes(router)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		var err error
		if cfg.Server.CertFile != "" && cfg.Server.KeyFile != "" {
			lg.Info("listening with TLS", zap.String("addr", srv.Addr))
			err = srv.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			// Without TLS every websocket handshake is rejected as
			// insecure; a plain listener only makes sense for health and
			// metrics probes.
			lg.Warn("listening without TLS", zap.String("addr", srv.Addr))
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("server shutdown failed", zap.Error(err))
	}
	hub.Close()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
