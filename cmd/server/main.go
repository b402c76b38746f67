package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/codeclash/codeclash-server/internal/config"
	"github.com/codeclash/codeclash-server/internal/repository"
	"github.com/codeclash/codeclash-server/internal/room"
	"github.com/codeclash/codeclash-server/internal/server"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

const shutdownTimeout = 10 * time.Second

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting CodeClash server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("admin password hash not configured; admin RPC access disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Match history goes to Postgres when a URL is configured
	var matches repository.MatchStore
	if cfg.Database.URL != "" {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		matches = repository.NewPostgresMatchStore(db)
	} else {
		logger.Info("no database configured; match history kept in memory")
		matches = repository.NewMemoryMatchStore()
	}

	opts, err := room.OptionsFromConfig(cfg)
	if err != nil {
		logger.Fatal("failed to load card catalog", zap.Error(err))
	}
	roomMgr := room.NewManager(opts, matches, logger)
	logger.Info("room manager initialized",
		zap.Int("hand_size", cfg.Game.HandSize),
		zap.Int("max_players", cfg.Game.MaxPlayers),
		zap.Duration("disconnect_grace", cfg.Game.DisconnectGrace),
	)

	grpcServer := server.NewGRPCServer(cfg, roomMgr, logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	// Start gRPC server
	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	// Start WebSocket server
	hub := server.NewHub(roomMgr, cfg.Server.WebSocket, logger)
	wsServer := server.NewWebSocketServer(cfg.Server.WebSocket, hub)
	go func() {
		logger.Info("starting WebSocket server",
			zap.String("address", cfg.Server.WebSocket.Address),
			zap.String("path", cfg.Server.WebSocket.Path),
		)
		if wsErr := wsServer.ListenAndServe(); wsErr != nil && !errors.Is(wsErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("CodeClash server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
	)

	// Wait for termination signal
	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket server shutdown", zap.Error(err))
	}
	hub.Close()
	grpcServer.GracefulStop()
	roomMgr.Close()

	logger.Info("CodeClash server stopped")
}
