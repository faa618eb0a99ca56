package app

import (
	"loraimg/internal/processor"
	"loraimg/internal/ui"
	"loraimg/pkg/types"
)

// Reporter is the console surface both applications report to
type Reporter interface {
	ShowMessage(message string)
	ShowSummary(title string, rows []ui.SummaryRow)
	StartProgressSending(name string, packets int)
	StartProgressReceiving(session string, packets int)
	UpdateProgress(update types.ProgressUpdate)
	CompleteProgress()
	AbortProgress()
}

// PayloadStore persists completed transfers
type PayloadStore interface {
	Save(result processor.TransferResult) (*types.FileMetadata, error)
}
