package plugins

import (
	"fmt"
	"strings"

	"github.com/kingrea/overview/internal/module"
)

// ModuleDefinition describes a plugin module loaded from YAML or declared by
// a Go script.
//
// The struct mirrors the on-disk schema under .overview/modules/*.yaml and is
// intentionally narrow so the engine can validate plugin metadata before
// registering it next to the built-in modules.
type ModuleDefinition struct {
	ID          string             `json:"id" yaml:"id"`
	Title       string             `json:"title,omitempty" yaml:"title,omitempty"`
	RawTitle    string             `json:"raw_title,omitempty" yaml:"raw_title,omitempty"`
	MenuTitle   string             `json:"menu_title,omitempty" yaml:"menu_title,omitempty"`
	MenuEntries []module.MenuEntry `json:"menu_entries,omitempty" yaml:"menu_entries,omitempty"`
	Help        string             `json:"help,omitempty" yaml:"help,omitempty"`
	Proposal    ProposalDefinition `json:"proposal,omitempty" yaml:"proposal,omitempty"`
	Ask         AskDefinition      `json:"ask,omitempty" yaml:"ask,omitempty"`
	// ProposalFunc names a function of the declaring Go script that computes
	// the proposal on every pass. Only valid for Go plugins.
	ProposalFunc string        `json:"proposal_func,omitempty" yaml:"proposal_func,omitempty"`
	Config       module.Config `json:"config,omitempty" yaml:"config,omitempty"`
}

// ProposalDefinition is the wire form of a module proposal. Script functions
// return the same keys.
type ProposalDefinition struct {
	Preformatted    string   `json:"preformatted_proposal,omitempty" yaml:"preformatted_proposal,omitempty"`
	Raw             []string `json:"raw_proposal,omitempty" yaml:"raw_proposal,omitempty"`
	Warning         string   `json:"warning,omitempty" yaml:"warning,omitempty"`
	WarningLevel    string   `json:"warning_level,omitempty" yaml:"warning_level,omitempty"`
	Links           []string `json:"links,omitempty" yaml:"links,omitempty"`
	Help            string   `json:"help,omitempty" yaml:"help,omitempty"`
	LanguageChanged bool     `json:"language_changed,omitempty" yaml:"language_changed,omitempty"`
	ModeChanged     bool     `json:"mode_changed,omitempty" yaml:"mode_changed,omitempty"`
	// Shared entries are stored in the installer-wide store before the
	// proposal is returned.
	Shared map[string]any `json:"shared,omitempty" yaml:"shared,omitempty"`
}

// AskDefinition is what activating the module answers.
type AskDefinition struct {
	Sequence string `json:"sequence,omitempty" yaml:"sequence,omitempty"`
	// Language and Mode, when set, switch the installer language or mode.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	Mode     string `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Normalized returns a trimmed, copy-on-write variant of the definition.
func (def ModuleDefinition) Normalized() ModuleDefinition {
	clone := ModuleDefinition{
		ID:           strings.TrimSpace(def.ID),
		Title:        strings.TrimSpace(def.Title),
		RawTitle:     strings.TrimSpace(def.RawTitle),
		MenuTitle:    strings.TrimSpace(def.MenuTitle),
		Help:         strings.TrimSpace(def.Help),
		Proposal:     def.Proposal.normalized(),
		ProposalFunc: strings.TrimSpace(def.ProposalFunc),
		Ask: AskDefinition{
			Sequence: strings.ToLower(strings.TrimSpace(def.Ask.Sequence)),
			Language: strings.TrimSpace(def.Ask.Language),
			Mode:     strings.TrimSpace(def.Ask.Mode),
		},
	}
	for _, entry := range def.MenuEntries {
		entry.ID = strings.TrimSpace(entry.ID)
		entry.Title = strings.TrimSpace(entry.Title)
		if entry.ID == "" {
			continue
		}
		clone.MenuEntries = append(clone.MenuEntries, entry)
	}
	if len(def.Config) > 0 {
		clone.Config = make(module.Config, len(def.Config))
		for key, value := range def.Config {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				continue
			}
			clone.Config[trimmed] = value
		}
	}
	return clone
}

// Validate ensures the plugin definition is well-formed.
func (def ModuleDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("plugin: id is required")
	}
	if strings.ContainsAny(normalized.ID, " \t/") {
		return fmt.Errorf("plugin %s: id must not contain spaces or slashes", normalized.ID)
	}
	desc := normalized.Description()
	if desc.Empty() {
		return fmt.Errorf("plugin %s: one of title, raw_title, menu_title or menu_entries is required", normalized.ID)
	}
	if normalized.ProposalFunc == "" {
		if _, err := normalized.Proposal.Proposal(); err != nil {
			return fmt.Errorf("plugin %s: proposal: %w", normalized.ID, err)
		}
	}
	if normalized.Ask.Sequence != "" {
		if _, err := module.ParseSequence(normalized.Ask.Sequence); err != nil {
			return fmt.Errorf("plugin %s: ask: %w", normalized.ID, err)
		}
	}
	return nil
}

// Description converts the definition into the module description.
func (def ModuleDefinition) Description() module.Description {
	return module.Description{
		Title:       def.Title,
		RawTitle:    def.RawTitle,
		MenuTitle:   def.MenuTitle,
		MenuEntries: append([]module.MenuEntry(nil), def.MenuEntries...),
		Help:        def.Help,
	}
}

func (p ProposalDefinition) normalized() ProposalDefinition {
	clone := p
	clone.Warning = strings.TrimSpace(p.Warning)
	clone.WarningLevel = strings.TrimSpace(p.WarningLevel)
	clone.Help = strings.TrimSpace(p.Help)
	clone.Raw = append([]string(nil), p.Raw...)
	clone.Links = nil
	seen := map[string]struct{}{}
	for _, link := range p.Links {
		link = strings.TrimSpace(link)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		clone.Links = append(clone.Links, link)
	}
	return clone
}

// Proposal converts the wire form into a module proposal.
func (p ProposalDefinition) Proposal() (module.Proposal, error) {
	n := p.normalized()
	level := module.LevelNone
	if n.WarningLevel != "" {
		parsed, err := module.ParseWarningLevel(n.WarningLevel)
		if err != nil {
			return module.Proposal{}, err
		}
		level = parsed
	}
	prop := module.Proposal{
		Preformatted:    n.Preformatted,
		Raw:             n.Raw,
		Warning:         n.Warning,
		WarningLevel:    level,
		Links:           n.Links,
		LanguageChanged: n.LanguageChanged,
		ModeChanged:     n.ModeChanged,
		Help:            n.Help,
	}
	if err := prop.Validate(); err != nil {
		return module.Proposal{}, err
	}
	return prop, nil
}
