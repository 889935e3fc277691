package protocol

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

//go:embed operations.toml
var defaultOperations []byte

// Template kinds that need more than plain placeholder substitution
const (
	TemplatePlain      = ""
	TemplateLock       = "lock"       // KeepIn / KeepOut toggle over the stored lock mode
	TemplateFeederTag  = "feedertag"  // "enable-<index>-<chip>"
	TemplateFlapTag    = "flaptag"    // "<index>-<chip>-<Normal|KeepIn>-<Enabled|Disabled>"
	TemplateFlapCurfew = "flapcurfew" // "HH:MM-HH:MM,..." up to four windows, "" or OFF clears
	TemplateDoorCurfew = "doorcurfew" // "HH:MM-HH:MM" or OFF
	TemplateClock      = "clock"      // hour and minute of now
)

var templateKinds = map[string]bool{
	TemplatePlain: true, TemplateLock: true, TemplateFeederTag: true, TemplateFlapTag: true,
	TemplateFlapCurfew: true, TemplateDoorCurfew: true, TemplateClock: true,
}

// CommandTemplate is one named operation of a device type.
type CommandTemplate struct {
	Device   DeviceType
	Name     string
	Template string
	Kind     string
	// State is used when the caller passes an empty state.
	State string
	// Validate maps accepted state names to the hex bytes substituted for SS.
	Validate map[string]string
}

// resolve returns the SS bytes for state, accepting either a state name or
// one of the enumerated wire values.
func (t *CommandTemplate) resolve(state string) (string, bool) {
	for name, wire := range t.Validate {
		if strings.EqualFold(name, state) || strings.EqualFold(wire, state) {
			return wire, true
		}
	}
	return "", false
}

// States lists the accepted state names, sorted.
func (t *CommandTemplate) States() []string {
	out := make([]string, 0, len(t.Validate))
	for name := range t.Validate {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type opKey struct {
	device DeviceType
	name   string
}

// OperationTable holds every command template keyed by device type and
// operation name. It is built once and read-only afterwards.
type OperationTable struct {
	ops map[opKey]*CommandTemplate
}

type templateFile struct {
	Template string            `toml:"template"`
	Kind     string            `toml:"kind"`
	State    string            `toml:"state"`
	Validate map[string]string `toml:"validate"`
}

// LoadOperations parses a TOML operation table.
func LoadOperations(data []byte) (*OperationTable, error) {
	var raw map[string]map[string]templateFile
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse operation table: %w", err)
	}

	table := &OperationTable{ops: make(map[opKey]*CommandTemplate)}
	for deviceName, ops := range raw {
		device, ok := ParseDeviceType(deviceName)
		if !ok {
			return nil, fmt.Errorf("operation table: unknown device type %q", deviceName)
		}
		for name, op := range ops {
			if op.Template == "" {
				return nil, fmt.Errorf("operation table: %s.%s has no template", deviceName, name)
			}
			if !templateKinds[op.Kind] {
				return nil, fmt.Errorf("operation table: %s.%s has unknown kind %q", deviceName, name, op.Kind)
			}
			if strings.Contains(op.Template, "SS") && len(op.Validate) == 0 {
				return nil, fmt.Errorf("operation table: %s.%s uses SS without a validate table", deviceName, name)
			}
			table.ops[opKey{device, strings.ToLower(name)}] = &CommandTemplate{
				Device:   device,
				Name:     name,
				Template: op.Template,
				Kind:     op.Kind,
				State:    op.State,
				Validate: op.Validate,
			}
		}
	}
	return table, nil
}

var (
	defaultTable     *OperationTable
	defaultTableOnce sync.Once
)

// DefaultOperations returns the built-in operation table. The embedded table
// is part of the binary, so a parse failure is a programming error.
func DefaultOperations() *OperationTable {
	defaultTableOnce.Do(func() {
		table, err := LoadOperations(defaultOperations)
		if err != nil {
			panic(err)
		}
		defaultTable = table
	})
	return defaultTable
}

// family maps device types that share a command set onto one table entry.
func family(d DeviceType) DeviceType {
	if d == DeviceTypeFeederLite {
		return DeviceTypeFeeder
	}
	return d
}

// Lookup finds an operation by device type and case-insensitive name.
func (t *OperationTable) Lookup(device DeviceType, name string) (*CommandTemplate, bool) {
	op, ok := t.ops[opKey{family(device), strings.ToLower(name)}]
	return op, ok
}

// Names lists the operations available for a device type, sorted.
func (t *OperationTable) Names(device DeviceType) []string {
	var out []string
	for k, op := range t.ops {
		if k.device == family(device) {
			out = append(out, op.Name)
		}
	}
	sort.Strings(out)
	return out
}
