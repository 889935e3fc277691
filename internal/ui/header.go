package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/plambrechtsen/pethublocal/internal/protocol"
)

// renderMessage draws one decoded message: a header line with time, kind
// and device, then each record indented below it.
func renderMessage(msg *protocol.DecodedMessage) string {
	kind := StatusStyle
	if msg.Kind == protocol.KindCommand {
		kind = CommandStyle
	}

	parts := []string{
		TimeStyle.Render(msg.Timestamp.Format(protocol.TimestampLayout)),
		kind.Render(string(msg.Kind)),
		DeviceStyle.Render(msg.Device),
	}
	if msg.Address != "" && msg.Address != msg.Device {
		parts = append(parts, AddressStyle.Render("("+msg.Address+")"))
	}

	lines := []string{strings.Join(parts, " ")}
	for _, r := range msg.Records {
		style := RecordStyle
		if op := r.Op(); op == protocol.OpUnknown || op == protocol.OpError {
			style = UnknownRecordStyle
		}
		lines = append(lines, style.Render(r.String()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderCommand draws a generated command with its topic and message.
func renderCommand(cmd *protocol.Command) string {
	title := CommandStyle.Render(cmd.Operation) + " " + DeviceStyle.Render(cmd.Device)
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		RecordStyle.Render(TopicStyle.Render(cmd.Topic)),
		RecordStyle.Render(cmd.Message),
	)
}

// renderTable draws rows under bold column headings, padded to the widest
// cell in each column.
func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	pad := func(cells []string, style lipgloss.Style) string {
		out := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			out[i] = style.Width(widths[i] + 2).Render(cell)
		}
		return strings.TrimRight(strings.Join(out, ""), " ")
	}

	lines := []string{pad(headers, TableHeaderStyle)}
	for _, row := range rows {
		lines = append(lines, pad(row, lipgloss.NewStyle()))
	}
	return strings.Join(lines, "\n")
}
