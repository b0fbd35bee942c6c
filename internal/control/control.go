// Package control models the installer control file: which modules make up
// an overview screen for a given stage, mode and proposal kind, how they are
// ordered and grouped into tabs, and which of them are locked.
package control

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPresentationOrder is used for module entries that do not declare one.
const DefaultPresentationOrder = 50

const wildcard = "*"

// Key selects one proposal definition.
type Key struct {
	Stage string `json:"stage" yaml:"stage"`
	Mode  string `json:"mode" yaml:"mode"`
	Kind  string `json:"kind" yaml:"kind"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Stage, k.Mode, k.Kind)
}

// ModuleEntry is one module listed for execution. It decodes from either a
// bare name or a mapping.
type ModuleEntry struct {
	Name   string         `json:"name" yaml:"name"`
	Order  *int           `json:"presentation_order,omitempty" yaml:"presentation_order,omitempty"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// Priority returns the presentation order (lower sorts first).
func (e ModuleEntry) Priority() int {
	if e.Order == nil {
		return DefaultPresentationOrder
	}
	return *e.Order
}

// UnmarshalYAML accepts `- network` as well as `- name: network`.
func (e *ModuleEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*e = ModuleEntry{Name: strings.TrimSpace(node.Value)}
		return nil
	}
	type plain ModuleEntry
	var decoded plain
	if err := node.Decode(&decoded); err != nil {
		return err
	}
	*e = ModuleEntry(decoded)
	return nil
}

// Clone returns a deep copy of the entry.
func (e ModuleEntry) Clone() ModuleEntry {
	clone := ModuleEntry{Name: e.Name}
	if e.Order != nil {
		order := *e.Order
		clone.Order = &order
	}
	if len(e.Config) > 0 {
		clone.Config = make(map[string]any, len(e.Config))
		for k, v := range e.Config {
			clone.Config[k] = v
		}
	}
	return clone
}

// TabDefinition groups modules under one label. Module order inside a tab is
// its presentation order.
type TabDefinition struct {
	Label   string   `json:"label" yaml:"label"`
	Modules []string `json:"modules" yaml:"modules"`
}

// Definition declares one overview screen.
type Definition struct {
	Name       string          `json:"name" yaml:"name"`
	Stage      string          `json:"stage,omitempty" yaml:"stage,omitempty"`
	Mode       string          `json:"mode,omitempty" yaml:"mode,omitempty"`
	Kind       string          `json:"kind,omitempty" yaml:"kind,omitempty"`
	Label      string          `json:"label,omitempty" yaml:"label,omitempty"`
	EnableSkip *bool           `json:"enable_skip,omitempty" yaml:"enable_skip,omitempty"`
	Modules    []ModuleEntry   `json:"modules" yaml:"modules"`
	Tabs       []TabDefinition `json:"tabs,omitempty" yaml:"tabs,omitempty"`
	Locked     []string        `json:"locked_modules,omitempty" yaml:"locked_modules,omitempty"`
}

// Matches reports whether the definition applies to key.
func (def Definition) Matches(key Key) bool {
	return matchField(def.Stage, key.Stage) &&
		matchField(def.Mode, key.Mode) &&
		matchField(def.Kind, key.Kind)
}

// SkipAllowed reports whether the user may skip the whole screen.
func (def Definition) SkipAllowed() bool {
	if def.EnableSkip == nil {
		return true
	}
	return *def.EnableSkip
}

// Clone returns a deep copy of the definition.
func (def Definition) Clone() Definition {
	clone := Definition{
		Name:   def.Name,
		Stage:  def.Stage,
		Mode:   def.Mode,
		Kind:   def.Kind,
		Label:  def.Label,
		Locked: cloneStrings(def.Locked),
	}
	if def.EnableSkip != nil {
		skip := *def.EnableSkip
		clone.EnableSkip = &skip
	}
	if len(def.Modules) > 0 {
		clone.Modules = make([]ModuleEntry, len(def.Modules))
		for i, entry := range def.Modules {
			clone.Modules[i] = entry.Clone()
		}
	}
	if len(def.Tabs) > 0 {
		clone.Tabs = make([]TabDefinition, len(def.Tabs))
		for i, tab := range def.Tabs {
			clone.Tabs[i] = TabDefinition{Label: tab.Label, Modules: cloneStrings(tab.Modules)}
		}
	}
	return clone
}

// Validate ensures the definition is self-consistent.
func (def Definition) Validate() error {
	if def.Name == "" {
		return fmt.Errorf("control: proposal name is required")
	}
	if len(def.Modules) == 0 && len(def.Tabs) == 0 {
		return fmt.Errorf("control %s: at least one module is required", def.Name)
	}
	seen := map[string]struct{}{}
	for idx, entry := range def.Modules {
		if entry.Name == "" {
			return fmt.Errorf("control %s module[%d]: name is required", def.Name, idx)
		}
		if entry.Order != nil && *entry.Order < 0 {
			return fmt.Errorf("control %s module %s: presentation_order must be >= 0", def.Name, entry.Name)
		}
		if _, exists := seen[entry.Name]; exists {
			return fmt.Errorf("control %s: duplicate module %s", def.Name, entry.Name)
		}
		seen[entry.Name] = struct{}{}
	}
	for idx, tab := range def.Tabs {
		if tab.Label == "" {
			return fmt.Errorf("control %s tab[%d]: label is required", def.Name, idx)
		}
		if len(tab.Modules) == 0 {
			return fmt.Errorf("control %s tab %s: at least one module is required", def.Name, tab.Label)
		}
		inTab := map[string]struct{}{}
		for _, name := range tab.Modules {
			if name == "" {
				return fmt.Errorf("control %s tab %s: empty module name", def.Name, tab.Label)
			}
			if _, exists := inTab[name]; exists {
				return fmt.Errorf("control %s tab %s: duplicate module %s", def.Name, tab.Label, name)
			}
			inTab[name] = struct{}{}
		}
	}
	return nil
}

// Normalized trims whitespace and validates the result.
func (def Definition) Normalized() (Definition, error) {
	clone := def.Clone()
	clone.Name = strings.TrimSpace(clone.Name)
	clone.Stage = strings.TrimSpace(clone.Stage)
	clone.Mode = strings.TrimSpace(clone.Mode)
	clone.Kind = strings.TrimSpace(clone.Kind)
	clone.Label = strings.TrimSpace(clone.Label)
	for i := range clone.Modules {
		clone.Modules[i].Name = strings.TrimSpace(clone.Modules[i].Name)
	}
	for i := range clone.Tabs {
		clone.Tabs[i].Label = strings.TrimSpace(clone.Tabs[i].Label)
		clone.Tabs[i].Modules = trimAll(clone.Tabs[i].Modules)
	}
	clone.Locked = trimAll(clone.Locked)
	if err := clone.Validate(); err != nil {
		return Definition{}, err
	}
	return clone, nil
}

// Document is the whole control file.
type Document struct {
	Version   int          `json:"version" yaml:"version"`
	Locked    []string     `json:"locked_modules,omitempty" yaml:"locked_modules,omitempty"`
	Proposals []Definition `json:"proposals" yaml:"proposals"`
}

// Normalized validates every proposal definition.
func (doc Document) Normalized() (Document, error) {
	out := Document{Version: doc.Version, Locked: trimAll(doc.Locked)}
	if out.Version == 0 {
		out.Version = 1
	}
	if len(doc.Proposals) == 0 {
		return Document{}, fmt.Errorf("control: at least one proposal is required")
	}
	names := map[string]struct{}{}
	for idx, def := range doc.Proposals {
		normalized, err := def.Normalized()
		if err != nil {
			return Document{}, fmt.Errorf("control: proposal[%d]: %w", idx, err)
		}
		if _, exists := names[normalized.Name]; exists {
			return Document{}, fmt.Errorf("control: duplicate proposal %s", normalized.Name)
		}
		names[normalized.Name] = struct{}{}
		out.Proposals = append(out.Proposals, normalized)
	}
	return out, nil
}

// Lookup returns the first proposal matching key.
func (doc Document) Lookup(key Key) (Definition, bool) {
	for _, def := range doc.Proposals {
		if def.Matches(key) {
			return def, true
		}
	}
	return Definition{}, false
}

func matchField(pattern, value string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pattern == wildcard {
		return true
	}
	for _, candidate := range strings.Split(pattern, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == wildcard || strings.EqualFold(candidate, strings.TrimSpace(value)) {
			return true
		}
	}
	return false
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
