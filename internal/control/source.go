package control

// Source is the registry collaborator the overview consumes. All queries are
// pure; an unmatched key yields no modules rather than an error.
type Source interface {
	ActiveModules(key Key) ([]ModuleEntry, error)
	Tabs(key Key) ([]TabDefinition, error)
	LockedModules(key Key) ([]string, error)
}

// Settings carries per-screen options that are not module lists.
type Settings struct {
	Name       string
	Label      string
	EnableSkip bool
}

// SettingsSource is optionally implemented by sources that know screen-level
// options. Screens from other sources default to skip being allowed.
type SettingsSource interface {
	Settings(key Key) (Settings, error)
}

// ActiveModules implements Source.
func (doc Document) ActiveModules(key Key) ([]ModuleEntry, error) {
	def, ok := doc.Lookup(key)
	if !ok {
		return nil, nil
	}
	out := make([]ModuleEntry, len(def.Modules))
	for i, entry := range def.Modules {
		out[i] = entry.Clone()
	}
	return out, nil
}

// Tabs implements Source.
func (doc Document) Tabs(key Key) ([]TabDefinition, error) {
	def, ok := doc.Lookup(key)
	if !ok || len(def.Tabs) == 0 {
		return nil, nil
	}
	return def.Clone().Tabs, nil
}

// LockedModules implements Source. Document-wide locks are listed first.
func (doc Document) LockedModules(key Key) ([]string, error) {
	locked := cloneStrings(doc.Locked)
	if def, ok := doc.Lookup(key); ok {
		locked = append(locked, def.Locked...)
	}
	return locked, nil
}

// Settings implements SettingsSource.
func (doc Document) Settings(key Key) (Settings, error) {
	def, ok := doc.Lookup(key)
	if !ok {
		return Settings{EnableSkip: true}, nil
	}
	return Settings{Name: def.Name, Label: def.Label, EnableSkip: def.SkipAllowed()}, nil
}
