package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"loraimg/internal/app"
	"loraimg/internal/ui"
)

var (
	loopbackSendFlags SendFlags
	loopbackDstPath   string
)

// loopbackCmd represents the loopback command
var loopbackCmd = &cobra.Command{
	Use:   "loopback",
	Short: "Run a sender and a receiver in one process without a radio",
	Long: `Send one transfer through an in-memory link to a receiver in the same
process. Both sides run exactly as they would on a serial port, including the
pauses between packets, which makes this a quick way to check image settings
and timing. Set protocol.settle_interval and protocol.packet_interval in the
config file or environment to shorten the run.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateSendFlags(&loopbackSendFlags); err != nil {
			return err
		}
		if !cmd.Flags().Changed("dst") {
			loopbackDstPath = cfg.Receiver.DstPath
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := createContext()
		defer cancel()

		opts := &app.LoopbackOptions{
			Sender:   senderOptions(&loopbackSendFlags),
			Receiver: app.ReceiverOptions{DestPath: loopbackDstPath},
		}
		senderUI := ui.NewConsoleUI(os.Stderr, ui.WithoutProgress())
		receiverUI := ui.NewConsoleUI(os.Stderr)
		return app.RunLoopback(ctx, cfg, opts, senderUI, receiverUI, log.Logger)
	},
}

func init() {
	rootCmd.AddCommand(loopbackCmd)

	loopbackCmd.Flags().StringVarP(&loopbackSendFlags.ImagePath, "image", "i", "", "Path to an image to compress and send")
	loopbackCmd.Flags().StringVarP(&loopbackSendFlags.FilePath, "file", "f", "", "Path to a file to send without compression")
	loopbackCmd.Flags().IntVar(&loopbackSendFlags.Width, "width", 0, "Target image width (default from config)")
	loopbackCmd.Flags().IntVar(&loopbackSendFlags.Height, "height", 0, "Target image height (default from config)")
	loopbackCmd.Flags().IntVar(&loopbackSendFlags.Quality, "quality", 0, "JPEG quality 1-100 (default from config)")
	loopbackCmd.Flags().StringVarP(&loopbackDstPath, "dst", "d", "", "Destination directory or file (default from config)")

	loopbackCmd.MarkFlagsMutuallyExclusive("image", "file")
}
