package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Color palette
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	SuccessColor = lipgloss.Color("#43BF6D") // Green - status messages, success
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors
	WarningColor = lipgloss.Color("#FFA500") // Orange - commands sent to devices
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

var (
	// TimeStyle is for the message timestamp
	TimeStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// StatusStyle marks messages a device sent
	StatusStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true)

	// CommandStyle marks messages sent to a device
	CommandStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true)

	DeviceStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true)

	AddressStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	// RecordStyle is for one decoded record line
	RecordStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			PaddingLeft(2)

	// UnknownRecordStyle is for records the decoder could not place
	UnknownRecordStyle = lipgloss.NewStyle().
				Foreground(ErrorColor).
				PaddingLeft(2)

	// TopicStyle is for the MQTT topic of a generated command
	TopicStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	SuccessTitleStyle = lipgloss.NewStyle().
				Foreground(SuccessColor).
				Bold(true)

	ErrorTitleStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	ResultKeyStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(15)

	ResultValueStyle = lipgloss.NewStyle().
				Foreground(TextColor)

	// TableHeaderStyle is for column headings in device and pet listings
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor).
				Bold(true)
)

// Markers
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// GetTerminalWidth returns the current terminal width, with fallback
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}
