package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":50051", cfg.Server.GRPC.Address)
	assert.Equal(t, "/ws", cfg.Server.WebSocket.Path)
	assert.Equal(t, 3, cfg.Game.HandSize)
	assert.Equal(t, 2, cfg.Game.MinPlayers)
	assert.Equal(t, 4, cfg.Game.MaxPlayers)
	assert.Equal(t, "NORMAL", cfg.Game.DefaultDifficulty)
	assert.Equal(t, 60*time.Second, cfg.Game.DisconnectGrace)
	assert.Equal(t, 1500*time.Millisecond, cfg.AI.BaseDelay)
	assert.Equal(t, 4*time.Second, cfg.AI.MaxDelay)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  grpc:
    address: "127.0.0.1:9000"
logging:
  level: debug
  format: json
game:
  hand_size: 5
  default_difficulty: hard
  disconnect_grace: 10s
ai:
  base_delay: 20ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.GRPC.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 5, cfg.Game.HandSize)
	assert.Equal(t, "HARD", cfg.Game.DefaultDifficulty)
	assert.Equal(t, 10*time.Second, cfg.Game.DisconnectGrace)
	assert.Equal(t, 20*time.Millisecond, cfg.AI.BaseDelay)
	assert.Equal(t, 100, cfg.Server.GRPC.MaxConcurrentStreams, "unset keys keep defaults")
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CODECLASH_SERVER_GRPC_ADDRESS", ":7000")
	t.Setenv("CODECLASH_GAME_MAX_PLAYERS", "3")
	t.Setenv("CODECLASH_DATABASE_URL", "postgres://localhost/codeclash")

	cfg, err := Load(writeConfig(t, "game:\n  max_players: 4\n"))
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.GRPC.Address)
	assert.Equal(t, 3, cfg.Game.MaxPlayers)
	assert.Equal(t, "postgres://localhost/codeclash", cfg.Database.URL)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"hand size":  "game:\n  hand_size: 0\n",
		"min":        "game:\n  min_players: 1\n",
		"max":        "game:\n  min_players: 3\n  max_players: 2\n",
		"difficulty": "game:\n  default_difficulty: brutal\n",
		"rate":       "server:\n  websocket:\n    messages_per_second: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "game: [unterminated"))
	assert.Error(t, err)
}

func TestShippedConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Game.HandSize)
}

func TestNewLogger(t *testing.T) {
	cases := []struct {
		cfg  LoggingConfig
		want zapcore.Level
	}{
		{LoggingConfig{Level: "debug", Format: "json"}, zapcore.DebugLevel},
		{LoggingConfig{Level: "WARN", Format: "console"}, zapcore.WarnLevel},
		{LoggingConfig{Level: "error"}, zapcore.ErrorLevel},
		{LoggingConfig{Level: "verbose"}, zapcore.InfoLevel},
	}
	for _, tc := range cases {
		logger, err := NewLogger(tc.cfg)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(tc.want), tc.cfg.Level)
		assert.False(t, logger.Core().Enabled(tc.want-1), tc.cfg.Level)
	}
}
