package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/connect4/internal/protocol"
)

func validConfig() Config {
	return Config{
		Network: NetworkConfig{
			Host:            "0.0.0.0",
			Port:            4000,
			WriteTimeout:    30 * time.Second,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		Game: GameConfig{
			Rows:    6,
			Columns: 7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Health: HealthConfig{
			Enabled:  true,
			GRPCHost: "127.0.0.1",
			GRPCPort: 50051,
		},
	}
}

func TestValidConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestNetworkAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "0.0.0.0:4000", cfg.Network.Addr())
}

func TestHealthAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "127.0.0.1:50051", cfg.Health.Addr())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 4000, cfg.Network.Port)
	assert.Equal(t, 6, cfg.Game.Rows)
	assert.Equal(t, 7, cfg.Game.Columns)
	assert.Zero(t, cfg.Network.ReadTimeout, "moves must not time out by default")
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, time.Minute, cfg.Logging.StatsInterval)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	err := os.WriteFile(path, []byte(`
network:
  host: 127.0.0.1
  port: 4001
  write_timeout: 10s
game:
  rows: 8
  columns: 9
logging:
  level: debug
  format: console
health:
  enabled: false
`), 0644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4001, cfg.Network.Port)
	assert.Equal(t, 10*time.Second, cfg.Network.WriteTimeout)
	assert.Equal(t, 1024, cfg.Network.ReadBufferSize, "unset keys fall back to defaults")
	assert.Equal(t, 8, cfg.Game.Rows)
	assert.Equal(t, 9, cfg.Game.Columns)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Health.Enabled)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network:\n  port: 4001\n"), 0644))

	t.Setenv("CONNECT4_NETWORK_PORT", "4555")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4555, cfg.Network.Port)
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	assert.Error(t, err)
}

func TestValidateLoggingLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, cfg.Validate(), "level %q should be valid", level)
	}
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	assert.Error(t, cfg.Validate())
}

func TestValidateLoggingFormat(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}

func TestValidateStatsInterval(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.StatsInterval = 0
	assert.NoError(t, cfg.Validate(), "zero disables stats")

	cfg.Logging.StatsInterval = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidateNetworkPort(t *testing.T) {
	cfg := validConfig()
	cfg.Network.Port = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Network.Port = 65536
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Network.Port = 0
	assert.NoError(t, cfg.Validate(), "port 0 picks a free port")
}

func TestValidateNegativeTimeouts(t *testing.T) {
	cfg := validConfig()
	cfg.Network.ReadTimeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Network.WriteTimeout = -time.Second
	assert.Error(t, cfg.Validate())
}

func TestValidateBoardTooSmall(t *testing.T) {
	cfg := validConfig()
	cfg.Game.Rows = 3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game.rows")
}

func TestValidateHealthDisabledSkipsChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Health = HealthConfig{Enabled: false}
	assert.NoError(t, cfg.Validate())
}

func TestValidateHealthPort(t *testing.T) {
	cfg := validConfig()
	cfg.Health.GRPCPort = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Health.GRPCHost = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateReportsAllViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Game.Columns = 1
	cfg.Logging.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game.columns")
	assert.Contains(t, err.Error(), "logging.level")
}

// Property-based tests

func TestPropertyBoardDimensions(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rows := rapid.IntRange(-10, 80).Draw(t, "rows")
		cols := rapid.IntRange(-10, 80).Draw(t, "cols")
		cfg := validConfig()
		cfg.Game.Rows = rows
		cfg.Game.Columns = cols
		err := cfg.Validate()
		inRange := func(n int) bool { return n >= MinBoardSide && n <= protocol.MaxBoardDimension }
		valid := inRange(rows) && inRange(cols)
		if valid && err != nil {
			t.Fatalf("valid board %dx%d rejected: %v", rows, cols, err)
		}
		if !valid && err == nil {
			t.Fatalf("invalid board %dx%d accepted", rows, cols)
		}
	})
}

func TestPropertyValidPortRange(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		port := rapid.IntRange(0, 65535).Draw(t, "port")
		cfg := validConfig()
		cfg.Network.Port = port
		if err := cfg.Validate(); err != nil {
			t.Fatalf("valid port %d rejected: %v", port, err)
		}
	})
}
