// Package software proposes the package patterns to install and checks that
// they fit on the root partition the storage module proposed.
package software

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/modules/runtime"
	"github.com/kingrea/overview/internal/modules/storage"
)

const (
	moduleID = "software"

	sharedDesktop = "software.desktop"
	linkDesktop   = "software--desktop"

	// Share of the root partition above which a notice turns into a warning.
	warnRatio = 0.8
)

type pattern struct {
	Name   string
	SizeMB int
}

// Module implements the software proposal.
type Module struct {
	*module.Base
	patterns       []pattern
	desktops       []string
	defaultDesktop string
	settings       settings
}

type settings struct {
	Patterns []string `yaml:"patterns"`
	Desktop  string   `yaml:"desktop"`
	SizeMB   int      `yaml:"size_mb"`
}

// Register installs the software module factory.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(cfg module.Config) (module.Module, error) {
		return New(cfg), nil
	})
}

// New builds the module from its configuration:
//
//	patterns: [{name: base, size_mb: 900}]
//	desktops: [gnome, kde, none]
//	desktop: gnome
func New(cfg module.Config) *Module {
	base := module.NewBase(module.Description{
		Title:     "Software",
		MenuTitle: "&Software",
		Help:      "Lists the software patterns to install and the estimated installation size.",
	})
	base.SetMenuEntries(module.MenuEntry{ID: linkDesktop, Title: "Desktop"})
	mod := &Module{
		Base:     &base,
		desktops: runtime.Strings(cfg, "desktops", []string{"gnome", "kde", "none"}),
	}
	for _, p := range runtime.Maps(cfg, "patterns") {
		name := runtime.String(p, "name", "")
		if name == "" {
			continue
		}
		mod.patterns = append(mod.patterns, pattern{Name: name, SizeMB: runtime.Int(p, "size_mb", 0)})
	}
	if len(mod.patterns) == 0 {
		mod.patterns = []pattern{{Name: "base", SizeMB: 900}, {Name: "enhanced_base", SizeMB: 1400}}
	}
	if len(mod.desktops) == 0 {
		mod.desktops = []string{"none"}
	}
	mod.defaultDesktop = runtime.String(cfg, "desktop", mod.desktops[0])
	return mod
}

var desktopSizeMB = map[string]int{"gnome": 3200, "kde": 3600, "xfce": 1800}

// MakeProposal implements module.Module.
func (m *Module) MakeProposal(ctx *module.Context, req module.ProposalRequest) (module.Proposal, error) {
	shared := ctx.Shared
	if req.ForceReset {
		shared.Delete(sharedDesktop)
	}
	desktop := shared.String(sharedDesktop)
	if desktop == "" {
		desktop = m.defaultDesktop
	}

	names := make([]string, 0, len(m.patterns)+1)
	size := 0
	for _, p := range m.patterns {
		names = append(names, p.Name)
		size += p.SizeMB
	}
	if desktop != "none" {
		names = append(names, "desktop_"+desktop)
		size += desktopSizeMB[desktop]
	}
	sort.Strings(names)
	m.settings = settings{Patterns: names, Desktop: desktop, SizeMB: size}

	prop := module.Proposal{
		Preformatted: runtime.List(
			runtime.Item{Text: "Patterns: " + strings.Join(names, ", ")},
			runtime.Item{Text: "Desktop: ", Markup: runtime.Link(linkDesktop, desktop)},
			runtime.Item{Text: fmt.Sprintf("Size of packages to install: %.1f GiB", float64(size)/1024)},
		),
		Links: []string{linkDesktop},
	}

	rootGB, ok := rootSize(shared)
	if !ok {
		return prop, nil
	}
	rootMB := rootGB * 1024
	switch {
	case size > rootMB:
		prop.Warning = fmt.Sprintf("Not enough disk space: %d MiB needed, the root partition has %d MiB.", size, rootMB)
		prop.WarningLevel = module.LevelBlocker
	case float64(size) > warnRatio*float64(rootMB):
		prop.Warning = "The selected software uses most of the root partition."
		prop.WarningLevel = module.LevelWarning
	}
	return prop, nil
}

// AskUser cycles through the configured desktops.
func (m *Module) AskUser(ctx *module.Context, req module.AskRequest) (module.AskResult, error) {
	switch req.ChosenID {
	case linkDesktop, "":
		next := m.desktops[0]
		for i, d := range m.desktops {
			if d == m.settings.Desktop {
				next = m.desktops[(i+1)%len(m.desktops)]
				break
			}
		}
		ctx.Shared.Set(sharedDesktop, next)
		return module.AskResult{Sequence: module.SequenceNext}, nil
	default:
		return module.AskResult{Sequence: module.SequenceCancel}, fmt.Errorf("%s: unknown link %q", moduleID, req.ChosenID)
	}
}

// Write commits the pattern selection.
func (m *Module) Write(ctx *module.Context) (module.WriteResult, error) {
	if err := runtime.Commit(ctx, moduleID, m.settings); err != nil {
		return module.WriteResult{Failed: true, Message: err.Error()}, nil
	}
	return module.WriteResult{}, nil
}

// Export implements module.Exporter.
func (m *Module) Export(*module.Context) (map[string]any, error) {
	return map[string]any{
		"patterns": append([]string(nil), m.settings.Patterns...),
		"desktop":  m.settings.Desktop,
	}, nil
}

func rootSize(shared *module.Shared) (int, bool) {
	v, ok := shared.Get(storage.SharedRootSizeGB)
	if !ok {
		return 0, false
	}
	size, ok := v.(int)
	return size, ok
}
