package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kingrea/overview/internal/config"
	"github.com/kingrea/overview/internal/control"
	"github.com/kingrea/overview/internal/logbook"
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/modules"
	"github.com/kingrea/overview/internal/proposal/dispatch"
	"github.com/kingrea/overview/internal/proposal/resolver"
	"github.com/kingrea/overview/internal/proposal/session"
	"github.com/kingrea/overview/plugins"
)

// environment is everything a session needs, loaded once per command.
type environment struct {
	cfg        *config.Config
	logbook    *logbook.Logbook
	registry   *module.Registry
	plugins    []string
	control    control.Document
	dispatcher *dispatch.Dispatcher
	resolver   *resolver.Resolver
	sessionID  string
}

func loadEnvironment(opts *cliOptions) (*environment, error) {
	project, err := resolveProjectDir(opts.projectDir)
	if err != nil {
		return nil, err
	}
	if err := config.InitDir(project); err != nil {
		return nil, err
	}
	cfg, err := config.Load(project, opts.v)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	lb, err := logbook.New(cfg.LogPath(), logbook.WithSession(id))
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}

	reg := module.NewRegistry()
	modules.RegisterBuiltins(reg)
	pluginIDs, err := plugins.RegisterPlugins(reg, cfg)
	if err != nil {
		return nil, fmt.Errorf("load plugins: %w", err)
	}
	if len(pluginIDs) > 0 {
		lb.Info("registered plugin modules: %v", pluginIDs)
	}

	doc, err := cfg.LoadControl()
	if err != nil {
		return nil, fmt.Errorf("load control file: %w", err)
	}
	disp := dispatch.New(lb)
	res, err := resolver.New(doc, reg, disp, resolver.WithLogbook(lb))
	if err != nil {
		return nil, err
	}
	return &environment{
		cfg:        cfg,
		logbook:    lb,
		registry:   reg,
		plugins:    pluginIDs,
		control:    doc,
		dispatcher: disp,
		resolver:   res,
		sessionID:  id,
	}, nil
}

// moduleContext builds the context modules see for the configured key.
func (env *environment) moduleContext() *module.Context {
	s := env.cfg.Settings
	ctx := module.NewContext(s.Stage, s.Mode, s.Kind, env.logbook)
	ctx.Language = s.Language
	ctx.TargetDir = env.cfg.TargetDir()
	ctx.Shared.Set(module.SharedLanguage, s.Language)
	ctx.Shared.Set(module.SharedMode, s.Mode)
	return ctx
}

// startSession creates and starts a session. Notices go to the log.
func (env *environment) startSession(opts ...session.Option) (*session.Session, error) {
	base := []session.Option{
		session.WithID(env.sessionID),
		session.WithExportDir(env.cfg.ExportDir()),
		session.WithNotifier(func(msg string) {
			env.logbook.Info("notice: %s", msg)
		}),
	}
	sess, err := session.New(env.resolver, env.dispatcher, env.moduleContext(), append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	return sess, nil
}

// moduleConfig returns the control file config of id for the configured key.
func (env *environment) moduleConfig(id string) module.Config {
	def, ok := env.control.Lookup(env.cfg.Key())
	if !ok {
		return nil
	}
	for _, entry := range def.Modules {
		if entry.Name != id || len(entry.Config) == 0 {
			continue
		}
		cfg := make(module.Config, len(entry.Config))
		for key, value := range entry.Config {
			cfg[key] = value
		}
		return cfg
	}
	return nil
}

func resolveProjectDir(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		dir = cwd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve project dir: %w", err)
	}
	return abs, nil
}
