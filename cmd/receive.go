package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"loraimg/internal/app"
	"loraimg/internal/ui"
)

type ReceiveFlags struct {
	DstPath      string
	MaxTransfers int
}

var receiveFlags ReceiveFlags

// receiveCmd represents the receive command
var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Receive transfers from the radio link and save them",
	Long: `Listen on the radio link and save every complete transfer. This will:

1. Wait for a start announcement
2. Collect fragments in any order, the last copy of a repeated fragment wins
3. Save the payload when the end marker arrives and every fragment is present

--dst names either a directory (existing, or ending in a path separator) that
collects one file per transfer, or a file that each transfer overwrites.
Incomplete transfers are reported and dropped. Stop with Ctrl+C.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateReceiveFlags(cmd, &receiveFlags)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReceiverApp(&receiveFlags)
	},
}

func init() {
	rootCmd.AddCommand(receiveCmd)

	// Define flags with struct binding
	receiveCmd.Flags().StringVarP(&receiveFlags.DstPath, "dst", "d", "", "Destination directory or file (default from config)")
	receiveCmd.Flags().IntVarP(&receiveFlags.MaxTransfers, "max-transfers", "n", 0, "Stop after this many saved transfers (0 runs until interrupted)")

	// Bind flags to viper for environment variable support
	viper.BindPFlag("receiver.dst", receiveCmd.Flags().Lookup("dst"))
}

// validateReceiveFlags validates the receive command flags
func validateReceiveFlags(cmd *cobra.Command, flags *ReceiveFlags) error {
	if !cmd.Flags().Changed("dst") {
		flags.DstPath = cfg.Receiver.DstPath
	}
	if flags.DstPath == "" {
		return fmt.Errorf("destination path is required")
	}
	if flags.MaxTransfers < 0 {
		return fmt.Errorf("max transfers must not be negative")
	}
	return nil
}

// runReceiverApp opens the link and runs the receiver application
func runReceiverApp(flags *ReceiveFlags) error {
	ctx, cancel := createContext()
	defer cancel()

	serialLink, err := openLink()
	if err != nil {
		return err
	}
	defer serialLink.Close()

	opts := &app.ReceiverOptions{
		DestPath:     flags.DstPath,
		MaxTransfers: flags.MaxTransfers,
	}

	logger := log.Logger.With().Str("role", "receiver").Logger()
	receiverApp := app.NewReceiverApp(cfg, serialLink, ui.NewConsoleUI(os.Stderr), logger)
	return receiverApp.Run(ctx, opts)
}
