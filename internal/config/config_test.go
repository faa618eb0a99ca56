package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loraimg/internal/link"
	"loraimg/internal/transfer"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 9600, cfg.Link.BaudRate)
	assert.Equal(t, 200, cfg.Protocol.MaxFragmentSize)
	assert.Equal(t, time.Second, cfg.Protocol.SettleInterval)
	assert.Equal(t, 2*time.Second, cfg.Protocol.PacketInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Receiver.IdleBackoff)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
		want   error
	}{
		{name: "zero baud", modify: func(c *Config) { c.Link.BaudRate = 0 }, want: ErrInvalidBaudRate},
		{name: "zero read timeout", modify: func(c *Config) { c.Link.ReadTimeout = 0 }, want: ErrInvalidReadTimeout},
		{name: "zero fragment", modify: func(c *Config) { c.Protocol.MaxFragmentSize = 0 }, want: ErrInvalidFragmentSize},
		{name: "zero packet interval", modify: func(c *Config) { c.Protocol.PacketInterval = 0 }, want: ErrInvalidPacketInterval},
		{name: "negative settle", modify: func(c *Config) { c.Protocol.SettleInterval = -time.Second }, want: ErrInvalidSettleInterval},
		{name: "zero idle backoff", modify: func(c *Config) { c.Receiver.IdleBackoff = 0 }, want: ErrInvalidIdleBackoff},
		{name: "packet interval inside read gap", modify: func(c *Config) { c.Protocol.PacketInterval = 150 * time.Millisecond }, want: ErrIntervalBelowGap},
		{name: "zero settle", modify: func(c *Config) { c.Protocol.SettleInterval = 0 }, want: ErrIntervalBelowGap},
		{name: "packet size below fragment", modify: func(c *Config) { c.Receiver.MaxPacketSize = 200 }, want: ErrInvalidMaxPacketSize},
		{name: "zero width", modify: func(c *Config) { c.Image.Width = 0 }, want: ErrInvalidImageSize},
		{name: "quality too high", modify: func(c *Config) { c.Image.Quality = 101 }, want: ErrInvalidImageQuality},
		{name: "bad log level", modify: func(c *Config) { c.Log.Level = "loud" }, want: ErrInvalidLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateSharesComponentErrors(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Link.BaudRate = -1
	assert.ErrorIs(t, cfg.Validate(), link.ErrInvalidBaudRate)

	cfg = NewDefaultConfig()
	cfg.Protocol.MaxFragmentSize = 0
	assert.ErrorIs(t, cfg.Validate(), transfer.ErrInvalidFragmentSize)
}

func TestLoadOverlaysConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loraimg.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
link:
  port: /dev/ttyUSB0
  baud_rate: 19200
protocol:
  packet_interval: 3s
receiver:
  require_start: true
`), 0o644))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Link.Port)
	assert.Equal(t, 19200, cfg.Link.BaudRate)
	assert.Equal(t, 3*time.Second, cfg.Protocol.PacketInterval)
	assert.True(t, cfg.Receiver.RequireStart)

	// Untouched keys keep their defaults.
	assert.Equal(t, 200, cfg.Protocol.MaxFragmentSize)
	assert.Equal(t, time.Second, cfg.Protocol.SettleInterval)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LORAIMG_PROTOCOL_MAX_FRAGMENT_SIZE", "120")
	t.Setenv("LORAIMG_RECEIVER_IDLE_BACKOFF", "250ms")

	v := viper.New()
	v.SetEnvPrefix("LORAIMG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Protocol.MaxFragmentSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Receiver.IdleBackoff)
	assert.Equal(t, 9600, cfg.Link.BaudRate)
}

func TestLoadRejectsInvalid(t *testing.T) {
	v := viper.New()
	v.Set("image.quality", 0)

	_, err := Load(v)
	assert.ErrorIs(t, err, ErrInvalidImageQuality)
}

func TestSettings(t *testing.T) {
	s := NewDefaultConfig().Settings()

	protocol, ok := s["protocol"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2s", protocol["packet_interval"])
	assert.Equal(t, 200, protocol["max_fragment_size"])
}
