package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/overview/internal/markup"
	"github.com/kingrea/overview/internal/module"
	"github.com/kingrea/overview/internal/proposal/dispatch"
)

// moduleOptions configure a single module run.
type moduleOptions struct {
	configFile string
	sets       keyValueFlag
}

func newModuleCommand(opts *cliOptions) *cobra.Command {
	mo := &moduleOptions{}
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Inspect or run a single module outside a session",
	}
	cmd.PersistentFlags().StringVar(&mo.configFile, "config-file", "", "path to YAML/JSON file with module config overrides")
	cmd.PersistentFlags().Var(&mo.sets, "set", "module config override (key=value, repeatable)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List registered modules",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				env, err := loadEnvironment(opts)
				if err != nil {
					return err
				}
				plugin := make(map[string]bool, len(env.plugins))
				for _, id := range env.plugins {
					plugin[id] = true
				}
				ids := env.registry.IDs()
				sort.Strings(ids)
				for _, id := range ids {
					origin := "builtin"
					if plugin[id] {
						origin = "plugin"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", id, origin)
				}
				return nil
			},
		},
		moduleStep(opts, mo, "describe", "Print the module description", describeModule),
		moduleStep(opts, mo, "propose", "Compute and print the module proposal", proposeModule),
		moduleStep(opts, mo, "write", "Compute the proposal and commit the module settings", writeModule),
	)
	return cmd
}

// moduleRun is everything one module step needs.
type moduleRun struct {
	id         string
	mod        module.Module
	ctx        *module.Context
	dispatcher *dispatch.Dispatcher
	out        io.Writer
}

func moduleStep(opts *cliOptions, mo *moduleOptions, use, short string, step func(moduleRun) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <module-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			env, err := loadEnvironment(opts)
			if err != nil {
				return err
			}
			if !env.registry.Has(id) {
				return fmt.Errorf("%w %q (known: %s)", module.ErrUnknown, id, strings.Join(env.registry.IDs(), ", "))
			}
			overrides, err := buildModuleConfig(mo.configFile, mo.sets)
			if err != nil {
				return fmt.Errorf("load config overrides: %w", err)
			}
			mod, err := env.registry.Resolve(id, mergeModuleConfig(env.moduleConfig(id), overrides))
			if err != nil {
				return fmt.Errorf("resolve module: %w", err)
			}
			return step(moduleRun{
				id:         id,
				mod:        mod,
				ctx:        env.moduleContext(),
				dispatcher: env.dispatcher,
				out:        cmd.OutOrStdout(),
			})
		},
	}
}

func describeModule(run moduleRun) error {
	desc, err := run.dispatcher.Describe(run.ctx, run.id, run.mod)
	if err != nil {
		return err
	}
	if desc.Empty() {
		fmt.Fprintf(run.out, "%s is not available in this context.\n", run.id)
		return nil
	}
	fmt.Fprintf(run.out, "Title: %s\n", desc.Heading())
	for _, entry := range desc.MenuEntries {
		fmt.Fprintf(run.out, "  menu %s: %s\n", entry.ID, entry.Title)
	}
	if desc.Help != "" {
		fmt.Fprintf(run.out, "\n%s\n", markup.Plain(desc.Help))
	}
	return nil
}

// proposalOutput is the YAML printed by `module propose`. Keys follow the
// plugin definition schema so the output can seed a YAML module.
type proposalOutput struct {
	Module       string   `yaml:"module"`
	Preformatted string   `yaml:"preformatted_proposal,omitempty"`
	Raw          []string `yaml:"raw_proposal,omitempty"`
	Text         string   `yaml:"text,omitempty"`
	Warning      string   `yaml:"warning,omitempty"`
	WarningLevel string   `yaml:"warning_level"`
	Links        []string `yaml:"links,omitempty"`
	Failure      string   `yaml:"failure,omitempty"`
}

func proposeModule(run moduleRun) error {
	res := run.dispatcher.Propose(run.ctx, run.id, run.mod, module.ProposalRequest{})
	prop := res.Proposal
	out := proposalOutput{
		Module:       run.id,
		Preformatted: prop.Preformatted,
		Raw:          prop.Raw,
		Warning:      prop.Warning,
		WarningLevel: prop.WarningLevel.String(),
		Links:        prop.Links,
	}
	if prop.Preformatted != "" {
		out.Text = markup.Plain(prop.Preformatted)
	}
	if res.Failure != nil {
		out.Failure = res.Failure.Error()
	}
	enc := yaml.NewEncoder(run.out)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode proposal: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return res.Failure
}

func writeModule(run moduleRun) error {
	res := run.dispatcher.Propose(run.ctx, run.id, run.mod, module.ProposalRequest{})
	if res.Failure != nil {
		return res.Failure
	}
	if res.Level().Blocking() {
		return fmt.Errorf("%s is blocked: %s", run.id, res.Proposal.Warning)
	}
	result, err := run.dispatcher.Write(run.ctx, run.id, run.mod)
	if err != nil {
		return err
	}
	if result.Failed {
		return fmt.Errorf("%s: write failed: %s", run.id, result.Message)
	}
	fmt.Fprintf(run.out, "%s written to %s\n", run.id, run.ctx.TargetDir)
	return nil
}

// keyValueFlag collects repeatable key=value flags.
type keyValueFlag map[string]string

func (kv *keyValueFlag) String() string {
	if kv == nil || len(*kv) == 0 {
		return ""
	}
	var pairs []string
	for key, value := range *kv {
		pairs = append(pairs, fmt.Sprintf("%s=%s", key, value))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

func (kv *keyValueFlag) Set(value string) error {
	parts := strings.SplitN(value, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	key := strings.TrimSpace(parts[0])
	if key == "" {
		return fmt.Errorf("override key is empty in %q", value)
	}
	if *kv == nil {
		*kv = keyValueFlag{}
	}
	(*kv)[key] = parts[1]
	return nil
}

// Type implements pflag.Value.
func (kv *keyValueFlag) Type() string {
	return "key=value"
}

func buildModuleConfig(configFile string, overrides keyValueFlag) (module.Config, error) {
	var cfg module.Config
	if path := strings.TrimSpace(configFile); path != "" {
		fileCfg, err := readModuleConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}
	if len(overrides) > 0 {
		if cfg == nil {
			cfg = module.Config{}
		}
		for key, value := range overrides {
			var parsed any
			// Overrides are YAML scalars so numbers and booleans keep their type.
			if err := yaml.Unmarshal([]byte(value), &parsed); err != nil || parsed == nil {
				parsed = value
			}
			cfg[key] = parsed
		}
	}
	if len(cfg) == 0 {
		return nil, nil
	}
	return cfg, nil
}

func mergeModuleConfig(base, overrides module.Config) module.Config {
	if len(base) == 0 {
		return overrides
	}
	out := make(module.Config, len(base)+len(overrides))
	for key, value := range base {
		out[key] = value
	}
	for key, value := range overrides {
		out[key] = value
	}
	return out
}

func readModuleConfigFile(path string) (module.Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open config file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, expected a file", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("config file %s is empty", path)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	cfg := make(module.Config, len(raw))
	for key, value := range raw {
		cfg[key] = value
	}
	return cfg, nil
}
