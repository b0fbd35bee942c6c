// Package storage proposes the partitioning of the installation disk. It
// picks the largest configured disk, proposes a root partition on it and
// publishes the root device through the shared store so later modules
// (boot loader, software) can take it into account.
//
// User choices live in the shared store as well, so they survive the plan
// being re-resolved after the root partition changes.
package storage

import (
	"fmt"
	"sort"

	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/modules/runtime"
)

const (
	moduleID = "storage"

	// SharedRootDevice holds the proposed root partition, e.g. /dev/sda2.
	SharedRootDevice = "storage.root_device"
	// SharedRootDisk holds the disk the root partition lives on.
	SharedRootDisk = "storage.root_disk"
	// SharedRootSizeGB holds the root partition size in GiB.
	SharedRootSizeGB = "storage.root_size_gb"

	sharedFilesystem   = "storage.filesystem"
	sharedSeparateHome = "storage.separate_home"

	linkFilesystem = "storage--filesystem"
	linkSeparate   = "storage--separate-home"
)

var filesystems = []string{"btrfs", "ext4", "xfs"}

type disk struct {
	Name   string
	SizeGB int
}

// Module implements the storage proposal.
type Module struct {
	*module.Base
	disks             []disk
	minRootGB         int
	defaultFilesystem string
	proposal          proposalState
}

type proposalState struct {
	Disk         string `yaml:"disk"`
	RootDevice   string `yaml:"root_device"`
	RootSizeGB   int    `yaml:"root_size_gb"`
	Filesystem   string `yaml:"filesystem"`
	SeparateHome bool   `yaml:"separate_home"`
}

// Register installs the storage module factory.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(cfg module.Config) (module.Module, error) {
		return New(cfg), nil
	})
}

// New builds the module from its control-file configuration:
//
//	disks: [{name: sda, size_gb: 120}]
//	min_root_gb: 10
//	filesystem: btrfs
func New(cfg module.Config) *Module {
	base := module.NewBase(module.Description{
		Title: "Partitioning",
		Help:  "Shows how the installation disk will be partitioned. Select the heading to change the proposal.",
	})
	base.SetMenuEntries(module.MenuEntry{ID: linkFilesystem, Title: "Change file system"})
	mod := &Module{
		Base:              &base,
		minRootGB:         runtime.Int(cfg, "min_root_gb", 10),
		defaultFilesystem: filesystems[indexOf(runtime.String(cfg, "filesystem", "btrfs"))],
	}
	for _, d := range runtime.Maps(cfg, "disks") {
		name := runtime.String(d, "name", "")
		if name == "" {
			continue
		}
		mod.disks = append(mod.disks, disk{Name: name, SizeGB: runtime.Int(d, "size_gb", 0)})
	}
	return mod
}

// MakeProposal implements module.Module.
func (m *Module) MakeProposal(ctx *module.Context, req module.ProposalRequest) (module.Proposal, error) {
	shared := sharedOf(ctx)
	if req.ForceReset {
		shared.Delete(sharedFilesystem)
		shared.Delete(sharedSeparateHome)
	}
	if len(m.disks) == 0 {
		m.proposal = proposalState{}
		shared.Delete(SharedRootDevice)
		shared.Delete(SharedRootDisk)
		shared.Delete(SharedRootSizeGB)
		return module.Proposal{
			Raw:          []string{"No disks found."},
			Warning:      "No hard disks were found for the installation.",
			WarningLevel: module.LevelBlocker,
		}, nil
	}

	filesystem := shared.String(sharedFilesystem)
	if filesystem == "" {
		filesystem = m.defaultFilesystem
	}
	separateHome, _ := valueOf(shared, sharedSeparateHome).(bool)

	sorted := append([]disk(nil), m.disks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SizeGB > sorted[j].SizeGB })
	target := sorted[0]
	rootSize := target.SizeGB - 1
	if separateHome {
		rootSize = rootSize / 3
	}
	m.proposal = proposalState{
		Disk:         "/dev/" + target.Name,
		RootDevice:   "/dev/" + target.Name + "2",
		RootSizeGB:   rootSize,
		Filesystem:   filesystem,
		SeparateHome: separateHome,
	}
	shared.Set(SharedRootDisk, m.proposal.Disk)
	shared.Set(SharedRootDevice, m.proposal.RootDevice)
	shared.Set(SharedRootSizeGB, rootSize)

	items := []runtime.Item{
		{Text: fmt.Sprintf("Create partition %s1 (1 GiB) for EFI boot", m.proposal.Disk)},
		{Text: fmt.Sprintf("Create root partition %s (%d GiB) with ", m.proposal.RootDevice, rootSize), Markup: runtime.Link(linkFilesystem, filesystem)},
	}
	if separateHome {
		items = append(items, runtime.Item{
			Text:   fmt.Sprintf("Create home partition %s3 (%d GiB) ", m.proposal.Disk, target.SizeGB-1-rootSize),
			Markup: runtime.Link(linkSeparate, "(do not use a separate home)"),
		})
	} else {
		items = append(items, runtime.Item{Text: "Home directories on the root partition ", Markup: runtime.Link(linkSeparate, "(use a separate home)")})
	}
	prop := module.Proposal{
		Preformatted: runtime.List(items...),
		Links:        []string{linkFilesystem, linkSeparate},
	}
	if rootSize < m.minRootGB {
		prop.Warning = fmt.Sprintf("The root partition (%d GiB) is smaller than the required %d GiB.", rootSize, m.minRootGB)
		prop.WarningLevel = module.LevelBlocker
	}
	return prop, nil
}

// AskUser cycles the file system or toggles the separate home partition.
func (m *Module) AskUser(ctx *module.Context, req module.AskRequest) (module.AskResult, error) {
	shared := sharedOf(ctx)
	switch req.ChosenID {
	case linkFilesystem:
		current := shared.String(sharedFilesystem)
		if current == "" {
			current = m.defaultFilesystem
		}
		shared.Set(sharedFilesystem, filesystems[(indexOf(current)+1)%len(filesystems)])
	case linkSeparate:
		separate, _ := valueOf(shared, sharedSeparateHome).(bool)
		shared.Set(sharedSeparateHome, !separate)
		// The root partition shrinks or grows.
		return module.AskResult{Sequence: module.SequenceNext, RootPartChanged: true}, nil
	case "":
	default:
		return module.AskResult{Sequence: module.SequenceCancel}, fmt.Errorf("%s: unknown link %q", moduleID, req.ChosenID)
	}
	return module.AskResult{Sequence: module.SequenceNext}, nil
}

// Write commits the partitioning proposal.
func (m *Module) Write(ctx *module.Context) (module.WriteResult, error) {
	if m.proposal.RootDevice == "" {
		return module.WriteResult{Failed: true, Message: "no partitioning proposal to write"}, nil
	}
	if err := runtime.Commit(ctx, moduleID, m.proposal); err != nil {
		return module.WriteResult{Failed: true, Message: err.Error()}, nil
	}
	return module.WriteResult{}, nil
}

// Export implements module.Exporter.
func (m *Module) Export(*module.Context) (map[string]any, error) {
	if m.proposal.RootDevice == "" {
		return nil, nil
	}
	return map[string]any{
		"disk":          m.proposal.Disk,
		"root_device":   m.proposal.RootDevice,
		"root_size_gb":  m.proposal.RootSizeGB,
		"filesystem":    m.proposal.Filesystem,
		"separate_home": m.proposal.SeparateHome,
	}, nil
}

func indexOf(fs string) int {
	for i, candidate := range filesystems {
		if candidate == fs {
			return i
		}
	}
	return 0
}

func sharedOf(ctx *module.Context) *module.Shared {
	if ctx == nil {
		return nil
	}
	return ctx.Shared
}

func valueOf(shared *module.Shared, key string) any {
	v, _ := shared.Get(key)
	return v
}
