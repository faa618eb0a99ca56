package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"loraimg/internal/config"
	"loraimg/internal/link"
	"loraimg/internal/processor"
	"loraimg/internal/transfer"
	"loraimg/internal/ui"
	"loraimg/pkg/types"
)

// ReceiverOptions configures the receiver application behavior
type ReceiverOptions struct {
	DestPath     string // Required: directory collecting transfers, or a file every transfer overwrites
	MaxTransfers int    // Stop after this many completed transfers; 0 runs until cancelled
}

// ReceiverApp implements receiver application logic. All receive state is
// owned by the single loop in Run.
type ReceiverApp struct {
	config    *config.Config
	link      link.Link
	ui        Reporter
	logger    zerolog.Logger
	now       func() time.Time
	completed int
	progress  string // session the progress bar belongs to
}

// NewReceiverApp creates a new receiver application reading from l
func NewReceiverApp(cfg *config.Config, l link.Link, ui Reporter, logger zerolog.Logger) *ReceiverApp {
	return &ReceiverApp{
		config: cfg,
		link:   l,
		ui:     ui,
		logger: logger,
		now:    time.Now,
	}
}

// Completed reports how many transfers were saved by the last Run.
func (r *ReceiverApp) Completed() int {
	return r.completed
}

// Run polls the link until ctx is cancelled, MaxTransfers is reached or the
// link is closed. Protocol errors never end the loop.
func (r *ReceiverApp) Run(ctx context.Context, opts *ReceiverOptions) error {
	store, err := processor.NewStore(opts.DestPath, processor.WithLogger(r.logger))
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}
	return r.run(ctx, store, opts.MaxTransfers)
}

func (r *ReceiverApp) run(ctx context.Context, store PayloadStore, maxTransfers int) error {
	decoder := transfer.NewDecoder(
		transfer.WithDecoderLogger(r.logger),
		transfer.WithRequireStart(r.config.Receiver.RequireStart),
	)
	framer := link.NewFramer(r.config.Receiver.MaxPacketSize)
	r.completed = 0
	r.progress = ""

	r.ui.ShowMessage("Waiting for transfers, press Ctrl+C to stop")

	for {
		if ctx.Err() != nil {
			r.logger.Info().Msg("receiver stopped")
			return r.flush(framer, decoder, store)
		}

		data, err := r.link.ReadAvailable(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if errors.Is(err, link.ErrClosed) {
				if ferr := r.flush(framer, decoder, store); ferr != nil {
					return ferr
				}
				return fmt.Errorf("receive loop ended: %w", err)
			}
			r.logger.Warn().Err(err).Msg("read failed")
			r.idle(ctx)
			continue
		}

		for _, pkt := range framer.Push(data) {
			if err := r.dispatch(decoder, store, decoder.Handle(pkt)); err != nil {
				return err
			}
		}

		if maxTransfers > 0 && r.completed >= maxTransfers {
			r.logger.Info().Int("transfers", r.completed).Msg("transfer limit reached")
			return nil
		}
		if len(data) == 0 {
			r.idle(ctx)
		}
	}
}

// flush hands a packet still held by the framer to the decoder on shutdown.
func (r *ReceiverApp) flush(framer *link.Framer, decoder *transfer.Decoder, store PayloadStore) error {
	if pkt := framer.Flush(); pkt != nil {
		return r.dispatch(decoder, store, decoder.Handle(pkt))
	}
	return nil
}

func (r *ReceiverApp) idle(ctx context.Context) {
	timer := time.NewTimer(r.config.Receiver.IdleBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// dispatch reacts to one decoder event. Only a failure to persist a complete
// transfer is returned.
func (r *ReceiverApp) dispatch(decoder *transfer.Decoder, store PayloadStore, ev transfer.Event) error {
	switch ev.Kind {
	case transfer.EventSessionStarted:
		if ev.Discarded > 0 {
			r.ui.AbortProgress()
			r.ui.ShowMessage(fmt.Sprintf("New transfer started, %d fragments of the previous one discarded", ev.Discarded))
		}
		r.startProgress(ev.SessionID, ev.ExpectedPackets)

	case transfer.EventFragmentStored:
		if r.progress != ev.SessionID {
			r.startProgress(ev.SessionID, ev.ExpectedPackets)
		}
		r.ui.UpdateProgress(types.ProgressUpdate{
			Packets: ev.Received,
			Total:   ev.ExpectedPackets,
			Bytes:   decoder.Session().ReceivedBytes,
		})

	case transfer.EventTransferComplete:
		r.ui.CompleteProgress()
		r.progress = ""

		meta, err := store.Save(processor.TransferResult{
			SessionID:  ev.SessionID,
			Payload:    ev.Payload,
			ReceivedAt: r.now(),
		})
		if err != nil {
			return fmt.Errorf("failed to save transfer: %w", err)
		}
		r.completed++

		title := "Transfer complete"
		if ev.SizeMismatch {
			title = "Transfer complete (size differs from announcement)"
		}
		rows := append(ui.FileSummaryRows(meta), ui.SummaryRow{Label: "Packets", Value: strconv.Itoa(ev.Received)})
		r.ui.ShowSummary(title, rows)

	case transfer.EventTransferIncomplete:
		r.ui.AbortProgress()
		r.progress = ""

		expected := "unknown"
		if ev.ExpectedPackets != transfer.UnknownTotal {
			expected = strconv.Itoa(ev.ExpectedPackets)
		}
		r.ui.ShowMessage(fmt.Sprintf("Transfer incomplete: received %d of %s packets", ev.Received, expected))
	}
	return nil
}

func (r *ReceiverApp) startProgress(session string, packets int) {
	r.progress = session
	name := session
	if len(name) > 8 {
		name = name[:8]
	}
	r.ui.StartProgressReceiving(name, packets)
}
