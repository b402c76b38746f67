package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/codeclash/codeclash-server/internal/config"
	codeclashmcp "github.com/codeclash/codeclash-server/internal/mcp"
	"github.com/codeclash/codeclash-server/internal/room"
)

var version = "dev" // set via ldflags during build

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	opts, err := room.OptionsFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load card catalog: %v\n", err)
		os.Exit(1)
	}
	rooms := room.NewManager(opts, nil, logger)
	defer rooms.Close()

	s := server.NewMCPServer("codeclash", version)
	codeclashmcp.NewSeat(rooms, logger).RegisterTools(s)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
