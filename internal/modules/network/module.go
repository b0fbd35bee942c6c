// Package network proposes the network configuration.
package network

import (
	"fmt"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/modules/runtime"
)

const (
	moduleID = "network"

	sharedDHCP = "network.dhcp"
	linkDHCP   = "network--dhcp"
)

type iface struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address,omitempty"`
}

// Module implements the network proposal.
type Module struct {
	*module.Base
	interfaces []iface
	hostname   string
	settings   settings
}

type settings struct {
	Hostname   string  `yaml:"hostname"`
	DHCP       bool    `yaml:"dhcp"`
	Interfaces []iface `yaml:"interfaces"`
}

// Register installs the network module factory.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(cfg module.Config) (module.Module, error) {
		return New(cfg), nil
	})
}

// New builds the module. Options: hostname, interfaces ([{name, address}]).
func New(cfg module.Config) *Module {
	base := module.NewBase(module.Description{
		Title: "Network Configuration",
		Help:  "Shows the detected network interfaces and how they are configured.",
	})
	mod := &Module{Base: &base, hostname: runtime.String(cfg, "hostname", "install")}
	for _, entry := range runtime.Maps(cfg, "interfaces") {
		name := runtime.String(entry, "name", "")
		if name == "" {
			continue
		}
		mod.interfaces = append(mod.interfaces, iface{Name: name, Address: runtime.String(entry, "address", "")})
	}
	return mod
}

// MakeProposal implements module.Module.
func (m *Module) MakeProposal(ctx *module.Context, req module.ProposalRequest) (module.Proposal, error) {
	if req.ForceReset {
		ctx.Shared.Delete(sharedDHCP)
	}
	dhcp := true
	if v, ok := ctx.Shared.Get(sharedDHCP); ok {
		dhcp, _ = v.(bool)
	}
	m.settings = settings{Hostname: m.hostname, DHCP: dhcp, Interfaces: append([]iface(nil), m.interfaces...)}

	if len(m.interfaces) == 0 {
		return module.Proposal{
			Raw:          []string{"No network interfaces detected."},
			Warning:      "The system will be installed without network access.",
			WarningLevel: module.LevelNotice,
		}, nil
	}
	items := []runtime.Item{{Text: "Hostname: " + m.hostname}}
	for _, ifc := range m.interfaces {
		switch {
		case dhcp:
			items = append(items, runtime.Item{Text: ifc.Name + ": ", Markup: runtime.Link(linkDHCP, "DHCP")})
		case ifc.Address != "":
			items = append(items, runtime.Item{Text: fmt.Sprintf("%s: %s ", ifc.Name, ifc.Address), Markup: runtime.Link(linkDHCP, "(use DHCP)")})
		default:
			items = append(items, runtime.Item{Text: ifc.Name + ": not configured ", Markup: runtime.Link(linkDHCP, "(use DHCP)")})
		}
	}
	prop := module.Proposal{Preformatted: runtime.List(items...), Links: []string{linkDHCP}}
	if !dhcp {
		for _, ifc := range m.interfaces {
			if ifc.Address == "" {
				prop.Warning = fmt.Sprintf("Interface %s has no static address.", ifc.Name)
				prop.WarningLevel = module.LevelWarning
				break
			}
		}
	}
	return prop, nil
}

// AskUser toggles between DHCP and static addressing.
func (m *Module) AskUser(ctx *module.Context, req module.AskRequest) (module.AskResult, error) {
	switch req.ChosenID {
	case linkDHCP:
		ctx.Shared.Set(sharedDHCP, !m.settings.DHCP)
	case "":
	default:
		return module.AskResult{Sequence: module.SequenceCancel}, fmt.Errorf("%s: unknown link %q", moduleID, req.ChosenID)
	}
	return module.AskResult{Sequence: module.SequenceNext}, nil
}

// Write commits the network settings.
func (m *Module) Write(ctx *module.Context) (module.WriteResult, error) {
	if err := runtime.Commit(ctx, moduleID, m.settings); err != nil {
		return module.WriteResult{Failed: true, Message: err.Error()}, nil
	}
	return module.WriteResult{}, nil
}

// Export implements module.Exporter.
func (m *Module) Export(*module.Context) (map[string]any, error) {
	names := make([]string, 0, len(m.settings.Interfaces))
	for _, ifc := range m.settings.Interfaces {
		names = append(names, ifc.Name)
	}
	return map[string]any{
		"hostname":   m.settings.Hostname,
		"dhcp":       m.settings.DHCP,
		"interfaces": names,
	}, nil
}
