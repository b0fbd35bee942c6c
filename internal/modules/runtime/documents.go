// Package runtime collects helpers shared by the built-in modules: typed
// access to control-file module configuration, proposal markup snippets and
// committing settings below the target directory.
package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/overview/internal/module"
)

// Int reads an integer option. YAML numbers arrive as int or float64.
func Int(cfg module.Config, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

// Bool reads a boolean option.
func Bool(cfg module.Config, key string, def bool) bool {
	switch v := cfg[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// String reads a string option.
func String(cfg module.Config, key, def string) string {
	if v, ok := cfg[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

// Strings reads a list of strings. A scalar string is split on commas.
func Strings(cfg module.Config, key string, def []string) []string {
	switch v := cfg[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string(nil), v...)
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return append([]string(nil), def...)
}

// Maps reads a list of mappings (e.g. disks or interfaces).
func Maps(cfg module.Config, key string) []module.Config {
	items, ok := cfg[key].([]any)
	if !ok {
		return nil
	}
	out := make([]module.Config, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, module.Config(m))
		}
	}
	return out
}

// Link renders an activatable anchor.
func Link(id, text string) string {
	return `<a href="` + html.EscapeString(id) + `">` + html.EscapeString(text) + `</a>`
}

// Item is one preformatted list entry. Markup is inserted verbatim.
type Item struct {
	Text   string
	Markup string
}

// List renders items as a preformatted bullet list.
func List(items ...Item) string {
	var b strings.Builder
	b.WriteString("<ul>")
	for _, item := range items {
		b.WriteString("<li>")
		b.WriteString(html.EscapeString(item.Text))
		b.WriteString(item.Markup)
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// Commit writes settings as YAML to <TargetDir>/<moduleID>.yaml. Without a
// target directory nothing is written.
func Commit(ctx *module.Context, moduleID string, settings any) error {
	if ctx == nil || strings.TrimSpace(ctx.TargetDir) == "" {
		return nil
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("%s: encode settings: %w", moduleID, err)
	}
	if err := os.MkdirAll(ctx.TargetDir, 0o755); err != nil {
		return fmt.Errorf("%s: ensure target dir: %w", moduleID, err)
	}
	path := filepath.Join(ctx.TargetDir, moduleID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%s: write settings: %w", moduleID, err)
	}
	ctx.Logbook.Info("%s: settings written to %s", moduleID, path)
	return nil
}
