// Package bootloader proposes the boot loader installation. It places the
// loader on the disk the storage module picked, so it must run after
// storage in execution order.
package bootloader

import (
	"fmt"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/modules/runtime"
	"github.com/kingrea/overview/internal/modules/storage"
)

const (
	moduleID = "bootloader"

	sharedSecureBoot = "bootloader.secure_boot"
	linkSecureBoot   = "bootloader--secure-boot"
)

// Module implements the boot loader proposal.
type Module struct {
	*module.Base
	loader        string
	secureDefault bool
	timeout       int
	settings      settings
}

type settings struct {
	Loader     string `yaml:"loader"`
	Location   string `yaml:"location"`
	RootDevice string `yaml:"root_device"`
	SecureBoot bool   `yaml:"secure_boot"`
	Timeout    int    `yaml:"timeout"`
}

// Register installs the boot loader module factory.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(cfg module.Config) (module.Module, error) {
		return New(cfg), nil
	})
}

// New builds the module. Options: loader (default grub2-efi), secure_boot,
// timeout.
func New(cfg module.Config) *Module {
	base := module.NewBase(module.Description{
		Title: "Booting",
		Help:  "Shows where the boot loader is installed and whether secure boot is enabled.",
	})
	return &Module{
		Base:          &base,
		loader:        runtime.String(cfg, "loader", "grub2-efi"),
		secureDefault: runtime.Bool(cfg, "secure_boot", true),
		timeout:       runtime.Int(cfg, "timeout", 8),
	}
}

// MakeProposal implements module.Module.
func (m *Module) MakeProposal(ctx *module.Context, req module.ProposalRequest) (module.Proposal, error) {
	shared := ctx.Shared
	if req.ForceReset {
		shared.Delete(sharedSecureBoot)
	}
	rootDisk := shared.String(storage.SharedRootDisk)
	rootDevice := shared.String(storage.SharedRootDevice)
	if rootDisk == "" || rootDevice == "" {
		m.settings = settings{}
		return module.Proposal{
			Raw:          []string{"Boot loader location unknown."},
			Warning:      "No root partition was proposed, the boot loader cannot be installed.",
			WarningLevel: module.LevelError,
		}, nil
	}
	secure := m.secureDefault
	if v, ok := shared.Get(sharedSecureBoot); ok {
		secure, _ = v.(bool)
	}
	m.settings = settings{
		Loader:     m.loader,
		Location:   rootDisk,
		RootDevice: rootDevice,
		SecureBoot: secure,
		Timeout:    m.timeout,
	}
	toggle := "enable"
	state := "disabled"
	if secure {
		toggle, state = "disable", "enabled"
	}
	return module.Proposal{
		Preformatted: runtime.List(
			runtime.Item{Text: fmt.Sprintf("Boot loader type: %s", m.loader)},
			runtime.Item{Text: fmt.Sprintf("Install into the EFI partition of %s, booting %s", rootDisk, rootDevice)},
			runtime.Item{Text: fmt.Sprintf("Secure boot: %s (", state), Markup: runtime.Link(linkSecureBoot, toggle) + ")"},
		),
		Links: []string{linkSecureBoot},
	}, nil
}

// AskUser toggles secure boot. Activating the heading keeps the proposal.
func (m *Module) AskUser(ctx *module.Context, req module.AskRequest) (module.AskResult, error) {
	switch req.ChosenID {
	case linkSecureBoot:
		ctx.Shared.Set(sharedSecureBoot, !m.settings.SecureBoot)
	case "":
	default:
		return module.AskResult{Sequence: module.SequenceCancel}, fmt.Errorf("%s: unknown link %q", moduleID, req.ChosenID)
	}
	return module.AskResult{Sequence: module.SequenceNext}, nil
}

// Write commits the boot loader settings.
func (m *Module) Write(ctx *module.Context) (module.WriteResult, error) {
	if m.settings.Location == "" {
		return module.WriteResult{Failed: true, Message: "boot loader location unknown"}, nil
	}
	if err := runtime.Commit(ctx, moduleID, m.settings); err != nil {
		return module.WriteResult{Failed: true, Message: err.Error()}, nil
	}
	return module.WriteResult{}, nil
}

// Export implements module.Exporter.
func (m *Module) Export(*module.Context) (map[string]any, error) {
	if m.settings.Location == "" {
		return nil, nil
	}
	return map[string]any{
		"loader":      m.settings.Loader,
		"location":    m.settings.Location,
		"secure_boot": m.settings.SecureBoot,
		"timeout":     m.settings.Timeout,
	}, nil
}
