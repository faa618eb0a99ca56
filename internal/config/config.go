package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"loraimg/internal/imaging"
	"loraimg/internal/link"
	"loraimg/internal/transfer"
)

var (
	ErrInvalidBaudRate       = link.ErrInvalidBaudRate
	ErrInvalidReadTimeout    = errors.New("read timeout must be greater than 0")
	ErrInvalidFragmentSize   = transfer.ErrInvalidFragmentSize
	ErrInvalidPacketInterval = errors.New("packet interval must be greater than 0")
	ErrInvalidSettleInterval = errors.New("settle interval must not be negative")
	ErrInvalidIdleBackoff    = errors.New("idle backoff must be greater than 0")
	ErrInvalidMaxPacketSize  = errors.New("max packet size must hold a full data packet")
	ErrInvalidImageSize      = errors.New("image width and height must be greater than 0")
	ErrInvalidImageQuality   = errors.New("image quality must be between 1 and 100")
	ErrInvalidLogLevel       = errors.New("unknown log level")
	ErrIntervalBelowGap      = errors.New("settle and packet intervals must exceed read timeout plus idle backoff")
)

// dataHeaderAllowance covers "CHUNK:<index>/<total>:" for any realistic count.
const dataHeaderAllowance = 32

// Config holds all application configuration
type Config struct {
	Link     LinkConfig     `mapstructure:"link"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Receiver ReceiverConfig `mapstructure:"receiver"`
	Image    ImageConfig    `mapstructure:"image"`
	Log      LogConfig      `mapstructure:"log"`
}

// LinkConfig describes the serial port of the radio module. Both ends must use
// the same baud rate.
type LinkConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// ProtocolConfig holds sender-side framing and pacing.
type ProtocolConfig struct {
	MaxFragmentSize int           `mapstructure:"max_fragment_size"`
	SettleInterval  time.Duration `mapstructure:"settle_interval"`
	PacketInterval  time.Duration `mapstructure:"packet_interval"`
}

// ReceiverConfig holds the poll loop and persistence settings.
type ReceiverConfig struct {
	DstPath       string        `mapstructure:"dst"`
	IdleBackoff   time.Duration `mapstructure:"idle_backoff"`
	MaxPacketSize int           `mapstructure:"max_packet_size"`
	RequireStart  bool          `mapstructure:"require_start"`
}

// ImageConfig holds the compression applied before sending.
type ImageConfig struct {
	Width   int `mapstructure:"width"`
	Height  int `mapstructure:"height"`
	Quality int `mapstructure:"quality"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Link: LinkConfig{
			Port:        "/dev/ttyS0",
			BaudRate:    9600,
			ReadTimeout: link.DefaultReadTimeout,
		},
		Protocol: ProtocolConfig{
			MaxFragmentSize: transfer.DefaultMaxFragmentSize,
			SettleInterval:  transfer.DefaultSettleInterval,
			PacketInterval:  transfer.DefaultPacketInterval,
		},
		Receiver: ReceiverConfig{
			DstPath:       "received_image.jpg",
			IdleBackoff:   100 * time.Millisecond,
			MaxPacketSize: link.DefaultMaxPacketSize,
		},
		Image: ImageConfig{
			Width:   imaging.DefaultWidth,
			Height:  imaging.DefaultHeight,
			Quality: imaging.DefaultQuality,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load starts from the defaults and overlays whatever v holds (config file,
// environment, bound flags). The defaults are registered with v so that every
// key can be set from the environment.
func Load(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()
	for section, values := range cfg.Settings() {
		v.SetDefault(section, values)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is valid
func (c *Config) Validate() error {
	if c.Link.BaudRate <= 0 {
		return ErrInvalidBaudRate
	}
	if c.Link.ReadTimeout <= 0 {
		return ErrInvalidReadTimeout
	}
	if c.Protocol.MaxFragmentSize < 1 {
		return ErrInvalidFragmentSize
	}
	if c.Protocol.PacketInterval <= 0 {
		return ErrInvalidPacketInterval
	}
	if c.Protocol.SettleInterval < 0 {
		return ErrInvalidSettleInterval
	}
	if c.Receiver.IdleBackoff <= 0 {
		return ErrInvalidIdleBackoff
	}
	// Packets are delimited by the quiet line between them, so every pause
	// must outlast one empty read cycle of the receiver.
	gap := c.Link.ReadTimeout + c.Receiver.IdleBackoff
	if c.Protocol.SettleInterval <= gap || c.Protocol.PacketInterval <= gap {
		return ErrIntervalBelowGap
	}
	if c.Receiver.MaxPacketSize < c.Protocol.MaxFragmentSize+dataHeaderAllowance {
		return ErrInvalidMaxPacketSize
	}
	if c.Image.Width <= 0 || c.Image.Height <= 0 {
		return ErrInvalidImageSize
	}
	if c.Image.Quality < 1 || c.Image.Quality > 100 {
		return ErrInvalidImageQuality
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}
	return level, nil
}

// Settings renders the configuration as nested maps keyed like the config
// file, with durations in their string form.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"link": map[string]any{
			"port":         c.Link.Port,
			"baud_rate":    c.Link.BaudRate,
			"read_timeout": c.Link.ReadTimeout.String(),
		},
		"protocol": map[string]any{
			"max_fragment_size": c.Protocol.MaxFragmentSize,
			"settle_interval":   c.Protocol.SettleInterval.String(),
			"packet_interval":   c.Protocol.PacketInterval.String(),
		},
		"receiver": map[string]any{
			"dst":             c.Receiver.DstPath,
			"idle_backoff":    c.Receiver.IdleBackoff.String(),
			"max_packet_size": c.Receiver.MaxPacketSize,
			"require_start":   c.Receiver.RequireStart,
		},
		"image": map[string]any{
			"width":   c.Image.Width,
			"height":  c.Image.Height,
			"quality": c.Image.Quality,
		},
		"log": map[string]any{
			"level": c.Log.Level,
			"json":  c.Log.JSON,
		},
	}
}
