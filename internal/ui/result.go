package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
)

// Result is a boxed summary of a finished operation, such as a registry
// import.
type Result struct {
	Type    ResultType
	Title   string
	Details map[string]string
	Error   error
	Width   int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details map[string]string) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error) *Result {
	return &Result{
		Type:  ResultFailure,
		Title: title,
		Error: err,
		Width: GetTerminalWidth(),
	}
}

// Render returns the styled result box as a string. Details are listed in
// key order.
func (r *Result) Render() string {
	width := r.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	border := SuccessColor
	title := SuccessTitleStyle.Render(fmt.Sprintf("%s  %s", SuccessMarker, r.Title))
	if r.Type == ResultFailure {
		border = ErrorColor
		title = ErrorTitleStyle.Render(fmt.Sprintf("%s  %s", FailureMarker, r.Title))
	}

	lines := []string{title, ""}
	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, ResultKeyStyle.Render(k+":")+" "+ResultValueStyle.Render(r.Details[k]))
	}
	if r.Error != nil {
		lines = append(lines, ErrorTitleStyle.UnsetBold().Render("Error: "+r.Error.Error()))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(border).
		Width(width-2).
		Padding(0, 2).
		Render(strings.TrimRight(strings.Join(lines, "\n"), "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
