package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"loraimg/pkg/types"
	"loraimg/pkg/utils"
)

// ProgressUI handles progress display for packet transfers
type ProgressUI struct {
	out       io.Writer
	bar       *progressbar.ProgressBar
	operation string // "Sending" or "Receiving"
	name      string
	total     int
	disabled  bool
}

// NewProgressUI creates a new progress UI writing to out
func NewProgressUI(out io.Writer) *ProgressUI {
	return &ProgressUI{out: out}
}

// startProgress initializes the progress bar. A negative total renders a
// spinner until the total becomes known.
func (p *ProgressUI) startProgress(operation, name string, total int) {
	if p.disabled {
		return
	}
	if p.bar != nil {
		_ = p.bar.Exit()
	}
	p.operation = operation
	p.name = name
	p.total = total
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription(fmt.Sprintf("%s %s", operation, name)),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(p.out)
		}),
	)
}

// StartProgressSending initializes the progress bar for the data packets of
// one transfer
func (p *ProgressUI) StartProgressSending(name string, packets int) {
	p.startProgress("Sending", name, packets)
}

// StartProgressReceiving initializes the progress bar for the fragments of one
// session
func (p *ProgressUI) StartProgressReceiving(session string, packets int) {
	p.startProgress("Receiving", session, packets)
}

// UpdateProgress updates the progress bar with current transfer state
func (p *ProgressUI) UpdateProgress(update types.ProgressUpdate) {
	if p.bar == nil {
		return
	}

	if update.Total >= 0 && update.Total != p.total {
		p.total = update.Total
		p.bar.ChangeMax(update.Total)
	}
	_ = p.bar.Set(update.Packets)
	p.bar.Describe(fmt.Sprintf("%s %s (%s)", p.operation, p.name, utils.FormatFileSize(int64(update.Bytes))))
}

// CompleteProgress marks the progress as complete
func (p *ProgressUI) CompleteProgress() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}

// AbortProgress stops the bar without filling it, for incomplete transfers.
func (p *ProgressUI) AbortProgress() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Exit()
	fmt.Fprintln(p.out)
	p.bar = nil
}
