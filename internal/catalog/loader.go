// internal/catalog/loader.go
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// document mirrors the on-disk catalog layout
type document struct {
	ConfigRanges []PropertyDescriptor `yaml:"config_ranges"`
	Readouts     []PropertyDescriptor `yaml:"readouts"`
	Commands     []CommandDescriptor  `yaml:"commands"`
	Options      []OptionDescriptor   `yaml:"options"`
	Functions    []FunctionDescriptor `yaml:"functions"`
	Timeouts     map[string]string    `yaml:"timeouts"`
}

// Default returns the built-in catalog
func Default() (*Catalog, error) {
	return Load(defaultCatalog)
}

// LoadFile reads and validates a catalog override file
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Load(data)
}

// Load decodes a YAML catalog and validates it
func Load(data []byte) (*Catalog, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	timeouts, err := NewTimeoutPolicy(doc.Timeouts)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog timeouts: %w", err)
	}

	for i := range doc.ConfigRanges {
		doc.ConfigRanges[i].Writable = true
	}

	c := &Catalog{
		Properties: doc.ConfigRanges,
		Readouts:   doc.Readouts,
		Commands:   doc.Commands,
		Options:    doc.Options,
		Functions:  doc.Functions,
		Timeouts:   timeouts,
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	c.buildIndex()
	return c, nil
}

// Validate checks the catalog for malformed entries. All problems are
// reported together.
func (c *Catalog) Validate() error {
	var errs []error
	seen := make(map[string]bool)

	unique := func(kind, id string) {
		if id == "" {
			errs = append(errs, fmt.Errorf("%s with empty id", kind))
			return
		}
		if seen[kind+":"+id] {
			errs = append(errs, fmt.Errorf("duplicate %s id %q", kind, id))
			return
		}
		seen[kind+":"+id] = true
	}

	for _, p := range c.AllProperties() {
		unique("property", p.ID)
		if p.Code == "" {
			errs = append(errs, fmt.Errorf("property %q has an empty protocol code", p.ID))
		}
		if p.Native.IsEmpty() {
			errs = append(errs, fmt.Errorf("property %q has an empty native range", p.ID))
		}
		if p.Human.IsEmpty() {
			errs = append(errs, fmt.Errorf("property %q has an empty human range", p.ID))
		}
		if err := p.Rule.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("property %q: %w", p.ID, err))
			continue
		}
		if !p.Human.IsEmpty() && !p.Native.IsEmpty() {
			lo, hi := ToNative(p.Human.Min, p.Rule), ToNative(p.Human.Max, p.Rule)
			if !p.Native.Contains(lo) || !p.Native.Contains(hi) {
				errs = append(errs, fmt.Errorf("property %q: human range %d..%d translates outside native range %d..%d",
					p.ID, p.Human.Min, p.Human.Max, p.Native.Min, p.Native.Max))
			}
		}
	}

	commands := make(map[string]bool, len(c.Commands))
	for _, cmd := range c.Commands {
		unique("command", cmd.ID)
		commands[cmd.ID] = true
		if len(cmd.Steps) == 0 {
			errs = append(errs, fmt.Errorf("command %q has no steps", cmd.ID))
		}
		for _, step := range cmd.Steps {
			if step.Key == "" {
				errs = append(errs, fmt.Errorf("command %q has a step with an empty key", cmd.ID))
			}
		}
	}

	for _, o := range c.Options {
		unique("option", o.ID)
		if o.Code == "" {
			errs = append(errs, fmt.Errorf("option %q has an empty protocol code", o.ID))
		}
		if len(o.Choices) == 0 {
			errs = append(errs, fmt.Errorf("option %q has no choices", o.ID))
		}
		for _, choice := range o.Choices {
			if len(choice.Codes) == 0 {
				errs = append(errs, fmt.Errorf("option %q choice %q has no codes", o.ID, choice.Label))
			}
			if o.ReadOnly {
				continue
			}
			if !commands[choice.Command] {
				errs = append(errs, fmt.Errorf("option %q choice %q references unknown command %q", o.ID, choice.Label, choice.Command))
			}
		}
	}

	for _, f := range c.Functions {
		unique("function", f.ID)
		if f.Code == "" && !f.UseSetReturn && !f.TriggersRefresh {
			errs = append(errs, fmt.Errorf("function %q has no protocol code", f.ID))
		}
	}

	return errors.Join(errs...)
}
