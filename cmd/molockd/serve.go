package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"molock/internal/config"
	"molock/internal/dispatcher"
	"molock/internal/rule"
	"molock/internal/state"
	"molock/internal/telemetry"
	"molock/internal/tlsutil"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Molock mock server",
	Long: `Starts Molock: loads the endpoint catalog and telemetry settings
from the configuration file, then serves mock responses for any
method and path not claimed by a system endpoint (/health, /metrics,
/api-docs/openapi.json, /api-docs/).`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("serve: loading configuration: %w", err)
	}

	telemetryDebug := isTruthy(os.Getenv("MOLOCK_TELEMETRY_DEBUG"))
	if telemetryDebug {
		cfg.Telemetry.Enabled = true
	}

	logger, err := telemetry.NewLogger(cfg.Telemetry.LogLevel, cfg.Telemetry.LogFormat)
	if err != nil {
		return fmt.Errorf("serve: building logger: %w", err)
	}
	defer logger.Sync()

	store := state.New(state.DefaultTTL)
	store.RunSweeper(state.DefaultTTL)
	defer store.Stop()

	engine := rule.NewEngine(store, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var provider *telemetry.Provider
	if cfg.Telemetry.Enabled {
		provider, err = telemetry.NewProvider(ctx, cfg.Telemetry, telemetryDebug)
		if err != nil {
			return fmt.Errorf("serve: initializing telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Telemetry.Timeout())
			defer shutdownCancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				log.Printf("serve: telemetry shutdown: %v", err)
			}
		}()
	}

	d := dispatcher.New(engine, provider, dispatcher.ServerInfo{
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     cfg.Telemetry.ServiceVersion,
	})
	d.RealIPHeader = cfg.Server.RealIPHeader
	d.MaxRequestSize = cfg.Server.MaxRequestSize
	d.UpdateCatalog(cfg.Endpoints)

	if hotReload {
		watcher := config.NewWatcher(cfgFile, func(reloaded *config.Config) {
			d.UpdateCatalog(reloaded.Endpoints)
			log.Printf("serve: catalog reloaded, %d endpoint(s)", len(reloaded.Endpoints))
		})
		watcher.Start()
		defer watcher.Stop()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Handler:      d.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var cleanup func(context.Context) error
	if cfg.Server.TLS.Enabled {
		cleanup, err = startTLSServer(server, addr, cfg, logger)
		if err != nil {
			return fmt.Errorf("serve: starting TLS listener: %w", err)
		}
	} else {
		startHTTPServer(server, addr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("serve: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if cleanup != nil {
		if err := cleanup(shutdownCtx); err != nil {
			log.Printf("serve: cleanup error: %v", err)
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("serve: server shutdown error: %v", err)
	}

	log.Println("serve: stopped")
	return nil
}

func startHTTPServer(server *http.Server, addr string) {
	server.Addr = addr
	go func() {
		log.Printf("serve: listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: listener failed: %v", err)
		}
	}()
}

// startTLSServer multiplexes plain HTTP and HTTPS on a single port, using a
// self-signed certificate generated on first run unless cert/key files are
// configured.
func startTLSServer(server *http.Server, addr string, cfg *config.Config, logger *zap.Logger) (func(context.Context) error, error) {
	certManager := tlsutil.NewCertificateManager(
		cfg.Server.TLS.CertFile,
		cfg.Server.TLS.KeyFile,
		cfg.Server.TLS.StorePath,
	).WithLogger(logger)

	cert, err := certManager.GetCertificate(cfg.Server.TLS.AutoGenerate)
	if err != nil {
		return nil, fmt.Errorf("loading TLS certificate: %w", err)
	}

	certPath, keyPath := certManager.GetCertificatePaths()
	log.Printf("serve: using TLS certificate %s / %s", certPath, keyPath)

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", addr, err)
	}

	muxListener := tlsutil.NewMuxListener(listener, tlsConfig, logger)

	httpServer := &http.Server{
		Handler:      server.Handler,
		ReadTimeout:  server.ReadTimeout,
		WriteTimeout: server.WriteTimeout,
		IdleTimeout:  server.IdleTimeout,
	}

	go func() {
		log.Printf("serve: listening on %s (HTTP & HTTPS)", addr)
		go func() {
			if err := server.Serve(muxListener.HTTPSListener()); err != nil && err != http.ErrServerClosed {
				log.Printf("serve: HTTPS listener error: %v", err)
			}
		}()
		if err := httpServer.Serve(muxListener.HTTPListener()); err != nil && err != http.ErrServerClosed {
			log.Printf("serve: HTTP listener error: %v", err)
		}
	}()

	return func(ctx context.Context) error {
		muxListener.Close()
		return httpServer.Shutdown(ctx)
	}, nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
