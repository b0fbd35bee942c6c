// Package resolver turns the control-file view of a screen into a Plan: the
// callable modules in execution order, their descriptors, the tabs and the
// default presentation order.
package resolver

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kingrea/overview/internal/control"
	"github.com/kingrea/overview/internal/logbook"
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal"
	"github.com/kingrea/overview/internal/proposal/dispatch"
)

// Resolver builds plans from a control source and a module registry.
type Resolver struct {
	source     control.Source
	registry   *module.Registry
	dispatcher *dispatch.Dispatcher
	logbook    *logbook.Logbook
}

// Option customizes the resolver.
type Option func(*Resolver)

// WithLogbook records dropped modules.
func WithLogbook(lb *logbook.Logbook) Option {
	return func(r *Resolver) {
		r.logbook = lb
	}
}

// New wires a resolver.
func New(source control.Source, registry *module.Registry, dispatcher *dispatch.Dispatcher, opts ...Option) (*Resolver, error) {
	if source == nil {
		return nil, fmt.Errorf("resolver: control source is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("resolver: module registry is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("resolver: dispatcher is required")
	}
	r := &Resolver{source: source, registry: registry, dispatcher: dispatcher}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

type candidate struct {
	entry       control.ModuleEntry
	displayOnly bool
}

// Resolve builds the plan for key. Each module's Description is queried
// exactly once here.
func (r *Resolver) Resolve(ctx *module.Context, key control.Key) (proposal.Plan, error) {
	entries, err := r.source.ActiveModules(key)
	if err != nil {
		return proposal.Plan{}, fmt.Errorf("%w: active modules for %s: %v", proposal.ErrConfiguration, key, err)
	}
	tabs, err := r.source.Tabs(key)
	if err != nil {
		return proposal.Plan{}, fmt.Errorf("%w: tabs for %s: %v", proposal.ErrConfiguration, key, err)
	}
	locked, err := r.source.LockedModules(key)
	if err != nil {
		return proposal.Plan{}, fmt.Errorf("%w: locked modules for %s: %v", proposal.ErrConfiguration, key, err)
	}
	settings := control.Settings{EnableSkip: true}
	if ss, ok := r.source.(control.SettingsSource); ok {
		if settings, err = ss.Settings(key); err != nil {
			return proposal.Plan{}, fmt.Errorf("%w: settings for %s: %v", proposal.ErrConfiguration, key, err)
		}
	}

	candidates := executionList(entries, tabs)
	if len(candidates) == 0 {
		return proposal.Plan{}, fmt.Errorf("%w: no modules configured for %s", proposal.ErrConfiguration, key)
	}

	lockedSet := make(map[string]struct{}, len(locked))
	for _, name := range locked {
		lockedSet[name] = struct{}{}
	}

	plan := proposal.Plan{Key: key, Settings: settings}
	nameToID := map[string]string{}
	for _, c := range candidates {
		entry, ok := r.resolveOne(ctx, c)
		if !ok {
			continue
		}
		if prior, dup := plan.Lookup(entry.ID); dup {
			r.logbook.Warn("resolver: %s and %s both describe themselves as %s; keeping %s", prior.Name, entry.Name, entry.ID, prior.Name)
			continue
		}
		_, byName := lockedSet[entry.Name]
		_, byID := lockedSet[entry.ID]
		entry.Locked = byName || byID
		nameToID[c.entry.Name] = entry.ID
		plan.Modules = append(plan.Modules, entry)
	}
	if len(plan.Modules) == 0 {
		return proposal.Plan{}, fmt.Errorf("%w: no available modules for %s", proposal.ErrConfiguration, key)
	}

	plan.Tabs = resolveTabs(tabs, nameToID)
	for tabIdx, tab := range plan.Tabs {
		for _, id := range tab.Modules {
			for i := range plan.Modules {
				if plan.Modules[i].ID == id {
					plan.Modules[i].Tabs = append(plan.Modules[i].Tabs, tabIdx)
				}
			}
		}
	}
	plan.Default = defaultOrder(plan.Modules)
	return plan, nil
}

func (r *Resolver) resolveOne(ctx *module.Context, c candidate) (proposal.Entry, bool) {
	name := c.entry.Name
	handle, err := r.registry.Resolve(name, module.Config(c.entry.Config))
	if err != nil {
		if errors.Is(err, module.ErrUnknown) {
			r.logbook.Info("resolver: module %s is not installed; skipping", name)
			return proposal.Entry{}, false
		}
		r.logbook.Error("resolver: construct %s: %v", name, err)
		handle = brokenModule{err: err}
	}
	desc, err := r.dispatcher.Describe(ctx, name, handle)
	if err != nil {
		desc = module.Description{Title: name}
	} else if desc.Empty() {
		r.logbook.Info("resolver: module %s is unavailable", name)
		return proposal.Entry{}, false
	}
	id := name
	if desc.ID != "" {
		id = desc.ID
	}
	return proposal.Entry{
		Descriptor: proposal.Descriptor{
			ID:          id,
			Name:        name,
			Title:       desc.Heading(),
			Linked:      desc.Linked(),
			MenuEntries: append([]module.MenuEntry(nil), desc.MenuEntries...),
			Help:        desc.Help,
			Priority:    c.entry.Priority(),
			DisplayOnly: c.displayOnly,
		},
		Module: handle,
	}, true
}

// executionList keeps the configured order and appends modules that only a
// tab references.
func executionList(entries []control.ModuleEntry, tabs []control.TabDefinition) []candidate {
	seen := map[string]struct{}{}
	var out []candidate
	for _, entry := range entries {
		if entry.Name == "" {
			continue
		}
		if _, dup := seen[entry.Name]; dup {
			continue
		}
		seen[entry.Name] = struct{}{}
		out = append(out, candidate{entry: entry})
	}
	for _, tab := range tabs {
		for _, name := range tab.Modules {
			if _, dup := seen[name]; dup || name == "" {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, candidate{entry: control.ModuleEntry{Name: name}, displayOnly: true})
		}
	}
	return out
}

func resolveTabs(tabs []control.TabDefinition, nameToID map[string]string) []proposal.Tab {
	var out []proposal.Tab
	for _, tab := range tabs {
		resolved := proposal.Tab{Label: tab.Label}
		for _, name := range tab.Modules {
			if id, ok := nameToID[name]; ok {
				resolved.Modules = append(resolved.Modules, id)
			}
		}
		if len(resolved.Modules) == 0 {
			continue
		}
		out = append(out, resolved)
	}
	return out
}

func defaultOrder(entries []proposal.Entry) []string {
	var visible []proposal.Entry
	for _, entry := range entries {
		if !entry.DisplayOnly {
			visible = append(visible, entry)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].Priority < visible[j].Priority
	})
	ids := make([]string, len(visible))
	for i, entry := range visible {
		ids[i] = entry.ID
	}
	return ids
}

// brokenModule stands in for a module whose factory failed so the failure
// shows up as a fatal result instead of silently disappearing.
type brokenModule struct {
	err error
}

func (b brokenModule) Description(*module.Context) (module.Description, error) {
	return module.Description{}, b.err
}

func (b brokenModule) MakeProposal(*module.Context, module.ProposalRequest) (module.Proposal, error) {
	return module.Proposal{}, b.err
}

func (b brokenModule) AskUser(*module.Context, module.AskRequest) (module.AskResult, error) {
	return module.AskResult{}, b.err
}
