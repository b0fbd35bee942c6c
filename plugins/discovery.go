package plugins

import (
	"fmt"

	"github.com/kingrea/overview/internal/config"
	"github.com/kingrea/overview/internal/module"
)

// RegisterPlugins discovers YAML and Go module definitions under the
// configured modules directory and registers them. A plugin may not reuse
// the id of a built-in module.
func RegisterPlugins(reg *module.Registry, cfg *config.Config) ([]string, error) {
	if reg == nil || cfg == nil {
		return nil, nil
	}
	defs, err := loadAllDefinitionFiles(cfg.ModulesDir())
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, nil
	}
	seen := make(map[string]string)
	ids := make([]string, 0, len(defs))
	for _, file := range defs {
		def := file.Definition
		if existing, ok := seen[def.ID]; ok {
			return nil, fmt.Errorf("plugin: duplicate module id %s (%s and %s)", def.ID, existing, file.Path)
		}
		seen[def.ID] = file.Path
		fileCopy := file
		if err := reg.Register(def.ID, func(cfg module.Config) (module.Module, error) {
			return newPluginModule(fileCopy, cfg)
		}); err != nil {
			return nil, fmt.Errorf("plugin: register %s from %s: %w", def.ID, file.Path, err)
		}
		ids = append(ids, def.ID)
	}
	return ids, nil
}

func loadAllDefinitionFiles(dir string) ([]DefinitionFile, error) {
	yamlDefs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	goDefs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	return append(yamlDefs, goDefs...), nil
}
