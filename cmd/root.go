package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loraimg/internal/config"
	"loraimg/internal/link"
)

var (
	cfg     *config.Config
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "loraimg",
	Short: "loraimg - send small images over a LoRa serial link",
	Long: `loraimg moves a small image (or any short file) between two machines that
each have a LoRa radio module attached to a serial port.

The sender compresses the image, announces its size, sends it in numbered
fragments with a pause after each one to respect the radio duty cycle, and
finishes with an end marker. The receiver reassembles the fragments in any
order and saves the result once every fragment has arrived.

Usage:
  Send an image:     loraimg send --image photo.jpg
  Receive images:    loraimg receive --dst ./received/
  Try it locally:    loraimg loopback --image photo.jpg --dst ./out/`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		used := initConfig()

		loaded, err := config.Load(viper.GetViper())
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		setupLogger(cfg)
		if used != "" {
			log.Debug().Str("file", used).Msg("using config file")
		}
		return nil
	},
}

func init() {
	defaults := config.NewDefaultConfig()

	// Add global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.loraimg.yaml)")
	flags.String("port", defaults.Link.Port, "serial port of the radio module")
	flags.Int("baud", defaults.Link.BaudRate, "serial baud rate, must match the peer")
	flags.String("log-level", defaults.Log.Level, "log level (trace, debug, info, warn, error)")
	flags.Bool("log-json", defaults.Log.JSON, "log as JSON instead of console text")

	viper.BindPFlag("link.port", flags.Lookup("port"))
	viper.BindPFlag("link.baud_rate", flags.Lookup("baud"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
	viper.BindPFlag("log.json", flags.Lookup("log-json"))

	// Set up viper environment variable support
	viper.SetEnvPrefix("LORAIMG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// initConfig reads in the config file, if any, and returns its path
func initConfig() string {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}

		// Search config in home directory with name ".loraimg" (without extension)
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".loraimg")
	}

	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Warning: could not read config file %s: %v\n", cfgFile, err)
		}
		return ""
	}
	return viper.ConfigFileUsed()
}

// setupLogger configures the global logger from the configuration
func setupLogger(c *config.Config) {
	level, _ := c.LogLevel()
	if c.Log.JSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).Level(level)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// createContext creates a context that cancels on interrupt signals
func createContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			log.Info().Msg("received interrupt signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// openLink opens the serial port of the radio module. The caller closes it.
func openLink() (*link.SerialLink, error) {
	serialLink, err := link.OpenSerial(
		link.SerialConfig{Port: cfg.Link.Port, BaudRate: cfg.Link.BaudRate},
		link.WithReadTimeout(cfg.Link.ReadTimeout),
		link.WithLogger(log.Logger.With().Str("port", cfg.Link.Port).Logger()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open radio link: %w", err)
	}
	return serialLink, nil
}
