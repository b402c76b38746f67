// Package config loads server configuration from YAML with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g.
// CODECLASH_SERVER_GRPC_ADDRESS.
const EnvPrefix = "CODECLASH"

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Game     GameConfig     `mapstructure:"game"`
	AI       AIConfig       `mapstructure:"ai"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig groups the listeners.
type ServerConfig struct {
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// GRPCConfig configures the game and admin RPC listener.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// WebSocketConfig configures the realtime client listener.
type WebSocketConfig struct {
	Address           string   `mapstructure:"address"`
	Path              string   `mapstructure:"path"`
	MessagesPerSecond float64  `mapstructure:"messages_per_second"`
	Burst             int      `mapstructure:"burst"`
	MaxMessageBytes   int64    `mapstructure:"max_message_bytes"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
}

// LoggingConfig selects the zap level and encoder.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig holds rule and room parameters.
type GameConfig struct {
	HandSize          int           `mapstructure:"hand_size"`
	MinPlayers        int           `mapstructure:"min_players"`
	MaxPlayers        int           `mapstructure:"max_players"`
	DefaultDifficulty string        `mapstructure:"default_difficulty"`
	DisconnectGrace   time.Duration `mapstructure:"disconnect_grace"`
	HistorySize       int           `mapstructure:"history_size"`
	CatalogPath       string        `mapstructure:"catalog_path"`
	ReplayDir         string        `mapstructure:"replay_dir"`
}

// AIConfig holds the thinking delay bounds.
type AIConfig struct {
	BaseDelay time.Duration `mapstructure:"base_delay"`
	MaxDelay  time.Duration `mapstructure:"max_delay"`
}

// DatabaseConfig configures match history storage. An empty URL keeps
// history in memory.
type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConns       int32         `mapstructure:"max_conns"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// AuthConfig protects the admin RPCs. An empty hash disables them.
type AuthConfig struct {
	AdminPasswordHash string `mapstructure:"admin_password_hash"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc.address", ":50051")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.messages_per_second", 10.0)
	v.SetDefault("server.websocket.burst", 20)
	v.SetDefault("server.websocket.max_message_bytes", 64*1024)
	v.SetDefault("server.websocket.allowed_origins", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("game.hand_size", 3)
	v.SetDefault("game.min_players", 2)
	v.SetDefault("game.max_players", 4)
	v.SetDefault("game.default_difficulty", "NORMAL")
	v.SetDefault("game.disconnect_grace", "60s")
	v.SetDefault("game.history_size", 200)
	v.SetDefault("game.catalog_path", "")
	v.SetDefault("game.replay_dir", "")

	v.SetDefault("ai.base_delay", "1500ms")
	v.SetDefault("ai.max_delay", "4s")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.connect_timeout", "5s")

	v.SetDefault("auth.admin_password_hash", "")
}

// Load reads the YAML file at path, applies CODECLASH_* environment
// overrides and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Game.HandSize < 1:
		return fmt.Errorf("game.hand_size must be at least 1, got %d", c.Game.HandSize)
	case c.Game.MinPlayers < 2:
		return fmt.Errorf("game.min_players must be at least 2, got %d", c.Game.MinPlayers)
	case c.Game.MaxPlayers < c.Game.MinPlayers:
		return fmt.Errorf("game.max_players (%d) is below game.min_players (%d)", c.Game.MaxPlayers, c.Game.MinPlayers)
	case c.AI.BaseDelay < 0 || c.AI.MaxDelay < 0:
		return errors.New("ai delays must not be negative")
	case c.Server.WebSocket.MessagesPerSecond <= 0:
		return fmt.Errorf("server.websocket.messages_per_second must be positive, got %v", c.Server.WebSocket.MessagesPerSecond)
	case c.Server.WebSocket.Burst < 1:
		return fmt.Errorf("server.websocket.burst must be at least 1, got %d", c.Server.WebSocket.Burst)
	}
	switch strings.ToUpper(c.Game.DefaultDifficulty) {
	case "EASY", "NORMAL", "HARD":
		c.Game.DefaultDifficulty = strings.ToUpper(c.Game.DefaultDifficulty)
	default:
		return fmt.Errorf("game.default_difficulty must be EASY, NORMAL or HARD, got %q", c.Game.DefaultDifficulty)
	}
	return nil
}
