package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"bankchat/internal/session"
)

// LoadFile reads a catalog override from path. Categories not named in the
// file keep their default commands.
//
//	Deposit:
//	  - label: "+₹2000"
//	    prompt: "Deposit 2000"
func LoadFile(path string) (map[session.Category][]Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	table, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Parse decodes a YAML catalog override and merges it over Default().
func Parse(r io.Reader) (map[session.Category][]Command, error) {
	var raw map[string][]Command
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	table := Default()
	for name, cmds := range raw {
		cat, ok := session.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", name)
		}
		for i, cmd := range cmds {
			if strings.TrimSpace(cmd.Prompt) == "" {
				return nil, fmt.Errorf("%s #%d: empty prompt", cat, i+1)
			}
			if strings.TrimSpace(cmd.Label) == "" {
				cmds[i].Label = cmd.Prompt
			}
		}
		table[cat] = cmds
	}
	return table, nil
}

// Export is the serializable form of a table, in tab order.
type Export struct {
	Category session.Category `json:"category" yaml:"category"`
	Commands []Command        `json:"commands" yaml:"commands"`
}

// Entries lists the catalog in tab order.
func (c *Catalog) Entries() []Export {
	out := make([]Export, 0, len(session.Categories))
	for _, cat := range session.Categories {
		out = append(out, Export{Category: cat, Commands: c.Commands(cat)})
	}
	return out
}
