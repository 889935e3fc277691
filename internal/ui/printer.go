package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/plambrechtsen/pethublocal/internal/protocol"
)

// Printer writes CLI output either styled or as JSON lines.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	styled bool
}

// NewPrinter returns a printer that styles output only when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, styled: IsTerminal(w)}
}

// NewJSONPrinter returns a printer that always writes JSON lines.
func NewJSONPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Styled reports whether the printer draws lipgloss output.
func (p *Printer) Styled() bool { return p.styled }

func (p *Printer) write(styled string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.styled {
		_, err := fmt.Fprintln(p.w, styled)
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')
	_, err = p.w.Write(data)
	return err
}

// Message prints one decoded message.
func (p *Printer) Message(msg *protocol.DecodedMessage) error {
	if !p.styled {
		return p.write("", msg)
	}
	return p.write(renderMessage(msg), nil)
}

// Command prints a generated command.
func (p *Printer) Command(cmd *protocol.Command) error {
	if !p.styled {
		return p.write("", cmd)
	}
	return p.write(renderCommand(cmd), nil)
}

// Table prints rows. In JSON mode each row becomes an object keyed by the
// headers.
func (p *Printer) Table(headers []string, rows [][]string) error {
	if p.styled {
		return p.write(renderTable(headers, rows), nil)
	}
	for _, row := range rows {
		obj := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				obj[h] = row[i]
			}
		}
		if err := p.write("", obj); err != nil {
			return err
		}
	}
	return nil
}

// Success prints a result box, or the details as one JSON object.
func (p *Printer) Success(title string, details map[string]string) error {
	if p.styled {
		return p.write(NewSuccessResult(title, details).Render(), nil)
	}
	obj := map[string]string{"result": title}
	for k, v := range details {
		obj[k] = v
	}
	return p.write("", obj)
}
