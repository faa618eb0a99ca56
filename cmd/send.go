package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"loraimg/internal/app"
	"loraimg/internal/imaging"
	"loraimg/internal/ui"
)

type SendFlags struct {
	ImagePath string
	FilePath  string
	Width     int
	Height    int
	Quality   int
}

var sendFlags SendFlags

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send an image or a small file over the radio link",
	Long: `Send one transfer over the radio link. This will:

1. Load the payload: --image is scaled and re-encoded as a small JPEG,
   --file is sent byte for byte
2. Announce the payload size and packet count
3. Send every fragment, pausing after each one for the duty cycle
4. Send the end marker

At the default pacing every 200 byte fragment costs two seconds.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateSendFlags(&sendFlags)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSenderApp(&sendFlags)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	// Define flags with struct binding
	sendCmd.Flags().StringVarP(&sendFlags.ImagePath, "image", "i", "", "Path to an image to compress and send")
	sendCmd.Flags().StringVarP(&sendFlags.FilePath, "file", "f", "", "Path to a file to send without compression")
	sendCmd.Flags().IntVar(&sendFlags.Width, "width", 0, "Target image width (default from config)")
	sendCmd.Flags().IntVar(&sendFlags.Height, "height", 0, "Target image height (default from config)")
	sendCmd.Flags().IntVar(&sendFlags.Quality, "quality", 0, "JPEG quality 1-100 (default from config)")

	sendCmd.MarkFlagsMutuallyExclusive("image", "file")
}

// validateSendFlags validates the send command flags
func validateSendFlags(flags *SendFlags) error {
	if (flags.ImagePath == "") == (flags.FilePath == "") {
		return app.ErrNoPayloadSource
	}
	if flags.Quality < 0 || flags.Quality > 100 {
		return imaging.ErrInvalidQuality
	}
	if flags.Width < 0 || flags.Height < 0 {
		return imaging.ErrInvalidDimensions
	}
	return nil
}

// senderOptions maps the flags onto sender options; unset sizes fall back to
// the configuration.
func senderOptions(flags *SendFlags) app.SenderOptions {
	opts := app.SenderOptions{
		ImagePath: flags.ImagePath,
		FilePath:  flags.FilePath,
		Quality:   flags.Quality,
	}
	if flags.Width > 0 || flags.Height > 0 {
		opts.Dimensions = imaging.Dimensions{Width: cfg.Image.Width, Height: cfg.Image.Height}
		if flags.Width > 0 {
			opts.Dimensions.Width = flags.Width
		}
		if flags.Height > 0 {
			opts.Dimensions.Height = flags.Height
		}
	}
	return opts
}

// runSenderApp opens the link and runs the sender application
func runSenderApp(flags *SendFlags) error {
	ctx, cancel := createContext()
	defer cancel()

	serialLink, err := openLink()
	if err != nil {
		return err
	}
	defer serialLink.Close()

	opts := senderOptions(flags)
	logger := log.Logger.With().Str("role", "sender").Logger()
	senderApp := app.NewSenderApp(cfg, serialLink, ui.NewConsoleUI(os.Stderr), logger)
	return senderApp.Run(ctx, &opts)
}
