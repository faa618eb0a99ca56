package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"loraimg/pkg/types"
	"loraimg/pkg/utils"
)

// SummaryRow is one labelled line of a summary box.
type SummaryRow struct {
	Label string
	Value string
}

// ConsoleUI renders progress bars and transfer summaries on a terminal
type ConsoleUI struct {
	*ProgressUI
	out        io.Writer
	titleStyle lipgloss.Style
	labelStyle lipgloss.Style
	boxStyle   lipgloss.Style
}

type Option func(c *ConsoleUI)

// WithoutProgress suppresses progress bars; messages and summaries are still
// shown. Used when two transfers share one terminal.
func WithoutProgress() Option {
	return func(c *ConsoleUI) {
		c.ProgressUI.disabled = true
	}
}

// NewConsoleUI creates a console UI writing to out. Colors are only emitted
// when out is a terminal.
func NewConsoleUI(out io.Writer, opts ...Option) *ConsoleUI {
	r := lipgloss.NewRenderer(out)
	c := &ConsoleUI{
		ProgressUI: NewProgressUI(out),
		out:        out,
		titleStyle: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1),
		labelStyle: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")),
		boxStyle: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("57")).
			Padding(0, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ShowMessage displays a message to the user
func (c *ConsoleUI) ShowMessage(message string) {
	fmt.Fprintln(c.out, message)
}

// ShowSummary displays a boxed summary with aligned labels.
func (c *ConsoleUI) ShowSummary(title string, rows []SummaryRow) {
	fmt.Fprintln(c.out, c.RenderSummary(title, rows))
}

// RenderSummary renders the summary box without printing it.
func (c *ConsoleUI) RenderSummary(title string, rows []SummaryRow) string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row.Label))
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		pad := strings.Repeat(" ", width-len(row.Label)+1)
		lines = append(lines, c.labelStyle.Render(row.Label+":")+pad+row.Value)
	}

	body := lipgloss.JoinVertical(lipgloss.Left, append([]string{c.titleStyle.Render(title), ""}, lines...)...)
	return c.boxStyle.Render(body)
}

// FileSummaryRows describes a saved payload.
func FileSummaryRows(meta *types.FileMetadata) []SummaryRow {
	rows := []SummaryRow{
		{Label: "File", Value: meta.Path},
		{Label: "Size", Value: utils.FormatFileSize(meta.Size)},
		{Label: "Type", Value: meta.MimeType},
	}
	if meta.Width > 0 && meta.Height > 0 {
		rows = append(rows, SummaryRow{Label: "Image", Value: fmt.Sprintf("%dx%d", meta.Width, meta.Height)})
	}
	return append(rows,
		SummaryRow{Label: "Session", Value: meta.SessionID},
		SummaryRow{Label: "SHA-256", Value: meta.Checksum},
	)
}
