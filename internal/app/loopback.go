package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"loraimg/internal/config"
	"loraimg/internal/link"
)

var ErrLoopbackIncomplete = errors.New("receiver did not complete the transfer")

// drainCycles is how many read cycles the receiver gets after the sender
// finished before the loopback gives up on the End sentinel.
const drainCycles = 20

// LoopbackOptions configures one in-process transfer
type LoopbackOptions struct {
	Sender   SenderOptions
	Receiver ReceiverOptions
}

// RunLoopback sends one transfer through an in-memory pipe to a receiver in
// the same process. Each side runs its own loop exactly as it would over a
// serial link.
func RunLoopback(ctx context.Context, cfg *config.Config, opts *LoopbackOptions, senderUI, receiverUI Reporter, logger zerolog.Logger) error {
	senderEnd, receiverEnd := link.NewPipe(
		link.WithReadTimeout(cfg.Link.ReadTimeout),
		link.WithLogger(logger),
	)
	defer senderEnd.Close()

	sender := NewSenderApp(cfg, senderEnd, senderUI, logger.With().Str("role", "sender").Logger())
	receiver := NewReceiverApp(cfg, receiverEnd, receiverUI, logger.With().Str("role", "receiver").Logger())

	recvOpts := opts.Receiver
	recvOpts.MaxTransfers = 1

	g, gctx := errgroup.WithContext(ctx)
	recvCtx, stopReceiver := context.WithCancel(gctx)
	defer stopReceiver()

	g.Go(func() error {
		return receiver.Run(recvCtx, &recvOpts)
	})
	g.Go(func() error {
		if err := sender.Run(gctx, &opts.Sender); err != nil {
			return err
		}
		drain := drainCycles * (cfg.Link.ReadTimeout + cfg.Receiver.IdleBackoff)
		time.AfterFunc(drain, stopReceiver)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if receiver.Completed() == 0 {
		return ErrLoopbackIncomplete
	}
	return nil
}
