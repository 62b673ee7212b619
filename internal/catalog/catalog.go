// internal/catalog/catalog.go
package catalog

import (
	"strings"
)

// Range is an inclusive integer interval
type Range struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the range
func (r Range) Contains(v int) bool {
	return v >= r.Min && v <= r.Max
}

// IsEmpty reports whether the range holds no values
func (r Range) IsEmpty() bool {
	return r.Min > r.Max
}

// PropertyDescriptor describes a numeric projector property.
// Config ranges are writable; readouts are not.
type PropertyDescriptor struct {
	ID       string          `yaml:"id" json:"id"`
	Code     string          `yaml:"code" json:"code"`
	Name     string          `yaml:"name" json:"name"`
	Native   Range           `yaml:"native" json:"native"`
	Human    Range           `yaml:"human" json:"human"`
	Rule     TranslationRule `yaml:"rule" json:"rule"`
	Writable bool            `yaml:"-" json:"writable"`
}

// Step is one key/value pair of a command line
type Step struct {
	Key   string `yaml:"key" json:"key"`
	Value string `yaml:"value" json:"value"`
}

// CommandDescriptor is a fire-and-forget instruction
type CommandDescriptor struct {
	ID    string `yaml:"id" json:"id"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Line joins all steps into the single space separated line sent on the wire
func (c CommandDescriptor) Line() string {
	parts := make([]string, 0, len(c.Steps)*2)
	for _, step := range c.Steps {
		parts = append(parts, step.Key)
		if step.Value != "" {
			parts = append(parts, step.Value)
		}
	}
	return strings.Join(parts, " ")
}

// OptionChoice is one selectable value of an option
type OptionChoice struct {
	Label   string   `yaml:"label" json:"label"`
	Command string   `yaml:"command" json:"command"`
	Codes   []string `yaml:"codes" json:"codes"`
}

// OptionDescriptor is an enumerated property: a protocol code whose raw
// values map onto human labels, each selectable through a command.
type OptionDescriptor struct {
	ID       string         `yaml:"id" json:"id"`
	Name     string         `yaml:"name" json:"name"`
	Code     string         `yaml:"code" json:"code"`
	ReadOnly bool           `yaml:"read_only" json:"read_only"`
	Choices  []OptionChoice `yaml:"choices" json:"choices"`
}

// LabelFor returns the label whose codes include raw
func (o OptionDescriptor) LabelFor(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	for _, choice := range o.Choices {
		for _, code := range choice.Codes {
			if strings.EqualFold(code, raw) {
				return choice.Label, true
			}
		}
	}
	return "", false
}

// ChoiceFor finds a choice by label, ignoring case
func (o OptionDescriptor) ChoiceFor(label string) (OptionChoice, bool) {
	label = strings.TrimSpace(label)
	for _, choice := range o.Choices {
		if strings.EqualFold(choice.Label, label) {
			return choice, true
		}
	}
	return OptionChoice{}, false
}

// Labels lists the choice labels in catalog order
func (o OptionDescriptor) Labels() []string {
	labels := make([]string, 0, len(o.Choices))
	for _, choice := range o.Choices {
		labels = append(labels, choice.Label)
	}
	return labels
}

// FunctionDescriptor describes a free-form projector function that does not
// fit the numeric or enumerated shapes.
type FunctionDescriptor struct {
	ID               string `yaml:"id" json:"id"`
	Name             string `yaml:"name" json:"name"`
	Code             string `yaml:"code" json:"code"`
	Anchor           string `yaml:"anchor" json:"anchor,omitempty"`
	KeepAnchor       bool   `yaml:"keep_anchor" json:"keep_anchor,omitempty"`
	NumbersOnly      bool   `yaml:"numbers_only" json:"numbers_only,omitempty"`
	ReadOnly         bool   `yaml:"read_only" json:"read_only,omitempty"`
	NoPeriodicUpdate bool   `yaml:"no_periodic_update" json:"no_periodic_update,omitempty"`
	UseSetReturn     bool   `yaml:"use_set_return" json:"use_set_return,omitempty"`
	TriggersRefresh  bool   `yaml:"triggers_refresh" json:"triggers_refresh,omitempty"`
}

// Catalog is the static protocol dictionary. It is immutable after Load.
type Catalog struct {
	Properties []PropertyDescriptor
	Readouts   []PropertyDescriptor
	Commands   []CommandDescriptor
	Options    []OptionDescriptor
	Functions  []FunctionDescriptor
	Timeouts   TimeoutPolicy

	properties map[string]PropertyDescriptor
	commands   map[string]CommandDescriptor
	options    map[string]OptionDescriptor
	functions  map[string]FunctionDescriptor
}

// Property looks up a config range or readout by id
func (c *Catalog) Property(id string) (PropertyDescriptor, bool) {
	p, ok := c.properties[id]
	return p, ok
}

// Command looks up a command by id
func (c *Catalog) Command(id string) (CommandDescriptor, bool) {
	cmd, ok := c.commands[id]
	return cmd, ok
}

// Option looks up an option by id
func (c *Catalog) Option(id string) (OptionDescriptor, bool) {
	o, ok := c.options[id]
	return o, ok
}

// Function looks up a complex function by id
func (c *Catalog) Function(id string) (FunctionDescriptor, bool) {
	f, ok := c.functions[id]
	return f, ok
}

// AllProperties returns config ranges followed by readouts
func (c *Catalog) AllProperties() []PropertyDescriptor {
	all := make([]PropertyDescriptor, 0, len(c.Properties)+len(c.Readouts))
	all = append(all, c.Properties...)
	return append(all, c.Readouts...)
}

func (c *Catalog) buildIndex() {
	c.properties = make(map[string]PropertyDescriptor, len(c.Properties)+len(c.Readouts))
	for _, p := range c.AllProperties() {
		c.properties[p.ID] = p
	}

	c.commands = make(map[string]CommandDescriptor, len(c.Commands))
	for _, cmd := range c.Commands {
		c.commands[cmd.ID] = cmd
	}

	c.options = make(map[string]OptionDescriptor, len(c.Options))
	for _, o := range c.Options {
		c.options[o.ID] = o
	}

	c.functions = make(map[string]FunctionDescriptor, len(c.Functions))
	for _, f := range c.Functions {
		c.functions[f.ID] = f
	}
}
