package plugins

import (
	"bytes"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/modules/runtime"
)

// pluginModule serves a plugin definition. Static proposals are rendered as
// text/template documents over the environment; scripted proposals call the
// Go plugin's function on every pass.
type pluginModule struct {
	*module.Base
	definition ModuleDefinition
	config     module.Config
	propose    ProposalFunc
	last       module.Proposal
}

func newPluginModule(file DefinitionFile, overrides module.Config) (*pluginModule, error) {
	def := file.Definition.Normalized()
	if err := def.Validate(); err != nil {
		return nil, err
	}
	base := module.NewBase(def.Description())
	mod := &pluginModule{
		Base:       &base,
		definition: def,
		config:     mergeConfigs(def.Config, overrides),
	}
	if def.ProposalFunc != "" {
		if file.Script == nil {
			return nil, fmt.Errorf("plugin %s: proposal_func requires a Go plugin", def.ID)
		}
		fn, err := file.Script.Proposal(def.ProposalFunc)
		if err != nil {
			return nil, err
		}
		mod.propose = fn
	}
	return mod, nil
}

// MakeProposal implements module.Module.
func (m *pluginModule) MakeProposal(ctx *module.Context, req module.ProposalRequest) (module.Proposal, error) {
	env := m.environment(ctx, req)
	var wire ProposalDefinition
	if m.propose != nil {
		out, err := m.propose(env)
		if err != nil {
			return module.Proposal{}, fmt.Errorf("plugin %s: %w", m.definition.ID, err)
		}
		if wire, err = decodeProposal(out); err != nil {
			return module.Proposal{}, fmt.Errorf("plugin %s: %w", m.definition.ID, err)
		}
	} else {
		var err error
		if wire, err = m.render(env); err != nil {
			return module.Proposal{}, fmt.Errorf("plugin %s: %w", m.definition.ID, err)
		}
	}
	prop, err := wire.Proposal()
	if err != nil {
		return module.Proposal{}, fmt.Errorf("plugin %s: %w", m.definition.ID, err)
	}
	for key, value := range wire.Shared {
		ctx.Shared.Set(key, value)
	}
	m.last = prop
	return prop, nil
}

// AskUser answers with the configured sequence. A configured language or
// mode is published through the shared store and reported as a change.
func (m *pluginModule) AskUser(ctx *module.Context, _ module.AskRequest) (module.AskResult, error) {
	seq, err := module.ParseSequence(m.definition.Ask.Sequence)
	if err != nil {
		return module.AskResult{Sequence: module.SequenceCancel}, err
	}
	res := module.AskResult{Sequence: seq}
	if lang := m.definition.Ask.Language; lang != "" && lang != ctx.Language {
		ctx.Shared.Set(module.SharedLanguage, lang)
		res.LanguageChanged = true
	}
	if mode := m.definition.Ask.Mode; mode != "" && mode != ctx.Mode {
		ctx.Shared.Set(module.SharedMode, mode)
		res.ModeChanged = true
	}
	return res, nil
}

type writtenSettings struct {
	ID       string        `yaml:"id"`
	Config   module.Config `yaml:"config,omitempty"`
	Warning  string        `yaml:"warning,omitempty"`
	Proposal []string      `yaml:"proposal,omitempty"`
}

// Write commits the plugin configuration together with the last proposal.
func (m *pluginModule) Write(ctx *module.Context) (module.WriteResult, error) {
	settings := writtenSettings{ID: m.definition.ID, Config: m.config, Warning: m.last.Warning, Proposal: m.last.Raw}
	if err := runtime.Commit(ctx, m.definition.ID, settings); err != nil {
		return module.WriteResult{Failed: true, Message: err.Error()}, nil
	}
	return module.WriteResult{}, nil
}

// Export implements module.Exporter.
func (m *pluginModule) Export(*module.Context) (map[string]any, error) {
	if len(m.config) == 0 {
		return nil, nil
	}
	return mergeConfigs(m.config, nil), nil
}

func (m *pluginModule) environment(ctx *module.Context, req module.ProposalRequest) map[string]any {
	shared := map[string]any{}
	for _, key := range ctx.Shared.Keys() {
		value, _ := ctx.Shared.Get(key)
		shared[key] = value
	}
	return map[string]any{
		"id":               m.definition.ID,
		"stage":            ctx.Stage,
		"mode":             ctx.Mode,
		"kind":             ctx.Kind,
		"language":         ctx.Language,
		"force_reset":      req.ForceReset,
		"language_changed": req.LanguageChanged,
		"config":           map[string]any(mergeConfigs(m.config, nil)),
		"shared":           shared,
	}
}

func (m *pluginModule) render(env map[string]any) (ProposalDefinition, error) {
	wire := m.definition.Proposal
	var err error
	if wire.Preformatted, err = expand(m.definition.ID, wire.Preformatted, env); err != nil {
		return ProposalDefinition{}, err
	}
	raw := make([]string, len(wire.Raw))
	for i, line := range wire.Raw {
		if raw[i], err = expand(m.definition.ID, line, env); err != nil {
			return ProposalDefinition{}, err
		}
	}
	wire.Raw = raw
	if wire.Warning, err = expand(m.definition.ID, wire.Warning, env); err != nil {
		return ProposalDefinition{}, err
	}
	return wire, nil
}

func expand(name, text string, env map[string]any) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return buf.String(), nil
}

// decodeProposal maps a script result onto the wire struct through YAML so
// scripts can return loosely typed values.
func decodeProposal(out map[string]any) (ProposalDefinition, error) {
	var wire ProposalDefinition
	if len(out) == 0 {
		return wire, nil
	}
	payload, err := yaml.Marshal(out)
	if err != nil {
		return wire, fmt.Errorf("encode proposal: %w", err)
	}
	if err := yaml.Unmarshal(payload, &wire); err != nil {
		return wire, fmt.Errorf("decode proposal: %w", err)
	}
	return wire, nil
}

func mergeConfigs(base, overrides module.Config) module.Config {
	if len(base) == 0 && len(overrides) == 0 {
		return nil
	}
	merged := make(module.Config, len(base)+len(overrides))
	for key, value := range base {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}
	return merged
}
