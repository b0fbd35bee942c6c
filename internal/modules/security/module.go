// Package security proposes firewall and SSH settings.
package security

import (
	"fmt"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/modules/runtime"
)

const (
	moduleID = "security"

	sharedFirewall = "security.firewall"
	sharedSSH      = "security.ssh"

	linkFirewall = "security--firewall"
	linkSSH      = "security--ssh"
)

// Module implements the security proposal.
type Module struct {
	*module.Base
	firewallDefault bool
	sshDefault      bool
	settings        settings
}

type settings struct {
	Firewall bool `yaml:"firewall"`
	SSH      bool `yaml:"ssh"`
}

// Register installs the security module factory.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(cfg module.Config) (module.Module, error) {
		return New(cfg), nil
	})
}

// New builds the module. Options: firewall (default true), ssh (default false).
func New(cfg module.Config) *Module {
	base := module.NewBase(module.Description{
		Title: "Security",
		Help:  "Controls the firewall and whether the SSH service is enabled.",
	})
	base.SetMenuEntries(
		module.MenuEntry{ID: linkFirewall, Title: "Firewall"},
		module.MenuEntry{ID: linkSSH, Title: "SSH"},
	)
	return &Module{
		Base:            &base,
		firewallDefault: runtime.Bool(cfg, "firewall", true),
		sshDefault:      runtime.Bool(cfg, "ssh", false),
	}
}

// MakeProposal implements module.Module.
func (m *Module) MakeProposal(ctx *module.Context, req module.ProposalRequest) (module.Proposal, error) {
	if req.ForceReset {
		ctx.Shared.Delete(sharedFirewall)
		ctx.Shared.Delete(sharedSSH)
	}
	m.settings = settings{
		Firewall: flag(ctx.Shared, sharedFirewall, m.firewallDefault),
		SSH:      flag(ctx.Shared, sharedSSH, m.sshDefault),
	}
	prop := module.Proposal{
		Preformatted: runtime.List(
			runtime.Item{Text: "Firewall will be " + state(m.settings.Firewall) + " (", Markup: runtime.Link(linkFirewall, toggle(m.settings.Firewall)) + ")"},
			runtime.Item{Text: "SSH service will be " + state(m.settings.SSH) + " (", Markup: runtime.Link(linkSSH, toggle(m.settings.SSH)) + ")"},
		),
		Links: []string{linkFirewall, linkSSH},
	}
	if !m.settings.Firewall {
		prop.Warning = "The firewall is disabled."
		prop.WarningLevel = module.LevelWarning
		if m.settings.SSH {
			prop.Warning = "The firewall is disabled and the SSH port is open."
		}
	}
	return prop, nil
}

// AskUser toggles the setting behind the chosen link.
func (m *Module) AskUser(ctx *module.Context, req module.AskRequest) (module.AskResult, error) {
	switch req.ChosenID {
	case linkFirewall:
		ctx.Shared.Set(sharedFirewall, !m.settings.Firewall)
	case linkSSH:
		ctx.Shared.Set(sharedSSH, !m.settings.SSH)
	case "":
	default:
		return module.AskResult{Sequence: module.SequenceCancel}, fmt.Errorf("%s: unknown link %q", moduleID, req.ChosenID)
	}
	return module.AskResult{Sequence: module.SequenceNext}, nil
}

// Write commits the security settings.
func (m *Module) Write(ctx *module.Context) (module.WriteResult, error) {
	if err := runtime.Commit(ctx, moduleID, m.settings); err != nil {
		return module.WriteResult{Failed: true, Message: err.Error()}, nil
	}
	return module.WriteResult{}, nil
}

// Export implements module.Exporter.
func (m *Module) Export(*module.Context) (map[string]any, error) {
	return map[string]any{"firewall": m.settings.Firewall, "ssh": m.settings.SSH}, nil
}

func flag(shared *module.Shared, key string, def bool) bool {
	if v, ok := shared.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

func state(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

func toggle(on bool) string {
	if on {
		return "disable"
	}
	return "enable"
}
