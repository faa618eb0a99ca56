package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"loraimg/internal/config"
	"loraimg/internal/imaging"
	"loraimg/internal/processor"
	"loraimg/internal/protocol"
	"loraimg/internal/transfer"
	"loraimg/internal/ui"
	"loraimg/pkg/types"
	"loraimg/pkg/utils"
)

var ErrNoPayloadSource = errors.New("exactly one of image path or file path is required")

// maxRawPayload caps raw files; at the default pacing 1 MiB already needs
// roughly three hours of air time.
const maxRawPayload = 1 << 20

// SenderOptions configures the sender application behavior
type SenderOptions struct {
	ImagePath  string             // Image to compress and send
	FilePath   string             // Raw file sent as-is
	Dimensions imaging.Dimensions // Target size for ImagePath; zero uses the configured size
	Quality    int                // JPEG quality for ImagePath; zero uses the configured quality
}

// SenderApp implements sender application logic
type SenderApp struct {
	config      *config.Config
	writer      transfer.PacketWriter
	compressor  *imaging.Compressor
	fileService *processor.FileService
	ui          Reporter
	logger      zerolog.Logger
}

// NewSenderApp creates a new sender application writing to w
func NewSenderApp(cfg *config.Config, w transfer.PacketWriter, ui Reporter, logger zerolog.Logger) *SenderApp {
	return &SenderApp{
		config:      cfg,
		writer:      w,
		compressor:  imaging.NewCompressor(),
		fileService: processor.NewFileService(),
		ui:          ui,
		logger:      logger,
	}
}

// Run loads the payload and sends it as one transfer
func (s *SenderApp) Run(ctx context.Context, opts *SenderOptions) error {
	if (opts.ImagePath == "") == (opts.FilePath == "") {
		return ErrNoPayloadSource
	}

	name, payload, err := s.loadPayload(ctx, opts)
	if err != nil {
		return err
	}

	sentBytes := 0
	encoder, err := transfer.NewEncoder(s.writer, s.config.Protocol.MaxFragmentSize,
		transfer.WithSettleInterval(s.config.Protocol.SettleInterval),
		transfer.WithPacketInterval(s.config.Protocol.PacketInterval),
		transfer.WithEncoderLogger(s.logger),
		transfer.WithPacketHook(func(p transfer.PacketSent) {
			if p.Kind != protocol.KindData {
				return
			}
			sentBytes += p.Bytes
			s.ui.UpdateProgress(types.ProgressUpdate{Packets: p.Index + 1, Total: p.Total, Bytes: sentBytes})
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}

	total := protocol.TotalPackets(len(payload), s.config.Protocol.MaxFragmentSize)
	s.ui.ShowMessage(fmt.Sprintf("Sending %s: %s in %d packets", name, utils.FormatFileSize(int64(len(payload))), total))
	s.ui.StartProgressSending(name, total)

	start := time.Now()
	if err := encoder.Send(ctx, payload); err != nil {
		s.ui.AbortProgress()
		return fmt.Errorf("failed to send %s: %w", name, err)
	}
	s.ui.CompleteProgress()

	s.ui.ShowSummary("Transfer sent", []ui.SummaryRow{
		{Label: "Source", Value: name},
		{Label: "Payload", Value: utils.FormatFileSize(int64(len(payload)))},
		{Label: "Packets", Value: strconv.Itoa(total)},
		{Label: "On air", Value: utils.FormatFileSize(int64(sentBytes))},
		{Label: "Elapsed", Value: time.Since(start).Round(time.Millisecond).String()},
	})
	return nil
}

func (s *SenderApp) loadPayload(ctx context.Context, opts *SenderOptions) (string, []byte, error) {
	if opts.FilePath != "" {
		payload, err := s.fileService.ReadPayload(opts.FilePath, maxRawPayload)
		if err != nil {
			return "", nil, err
		}
		return filepath.Base(opts.FilePath), payload, nil
	}

	dims := opts.Dimensions
	if dims == (imaging.Dimensions{}) {
		dims = imaging.Dimensions{Width: s.config.Image.Width, Height: s.config.Image.Height}
	}
	quality := opts.Quality
	if quality == 0 {
		quality = s.config.Image.Quality
	}

	var source imaging.Source = imaging.NewFileSource(opts.ImagePath)
	img, err := source.Capture(ctx)
	if err != nil {
		return "", nil, err
	}
	payload, err := s.compressor.Compress(img, dims, quality)
	if err != nil {
		return "", nil, fmt.Errorf("failed to compress %s: %w", opts.ImagePath, err)
	}

	bounds := img.Bounds()
	s.logger.Info().
		Str("image", opts.ImagePath).
		Int("src_width", bounds.Dx()).
		Int("src_height", bounds.Dy()).
		Int("width", dims.Width).
		Int("height", dims.Height).
		Int("quality", quality).
		Int("bytes", len(payload)).
		Msg("image compressed")
	return filepath.Base(opts.ImagePath), payload, nil
}
