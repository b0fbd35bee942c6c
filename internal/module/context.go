package module

import (
	"sort"

	"github.com/kingrea/overview/internal/logbook"
)

// Shared holds installer-wide mutable state that modules hand to each other
// through execution order (e.g. storage picks the root device, the bootloader
// reads it). Access is single-threaded.
type Shared struct {
	values map[string]any
}

// NewShared returns an empty store.
func NewShared() *Shared {
	return &Shared{values: map[string]any{}}
}

// Get returns the value stored under key.
func (s *Shared) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.values[key]
	return v, ok
}

// String returns the value under key when it is a string.
func (s *Shared) String(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// Set stores value under key.
func (s *Shared) Set(key string, value any) {
	if s == nil {
		return
	}
	if s.values == nil {
		s.values = map[string]any{}
	}
	s.values[key] = value
}

// Delete removes key.
func (s *Shared) Delete(key string) {
	if s == nil {
		return
	}
	delete(s.values, key)
}

// Keys returns the stored keys in sorted order.
func (s *Shared) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Well-known Shared keys. A module that changes the language or operating
// mode stores the new value here before reporting the change.
const (
	SharedLanguage = "language"
	SharedMode     = "mode"
)

// Context carries shared runtime dependencies into every module call.
type Context struct {
	Stage    string
	Mode     string
	Kind     string
	Language string
	// TargetDir is where Write commits module settings. Empty disables
	// committing.
	TargetDir string
	Shared    *Shared
	Logbook   *logbook.Logbook
}

// NewContext builds a Context with a fresh shared store.
func NewContext(stage, mode, kind string, lb *logbook.Logbook) *Context {
	return &Context{
		Stage:   stage,
		Mode:    mode,
		Kind:    kind,
		Shared:  NewShared(),
		Logbook: lb,
	}
}

// WithLanguage returns a copy of the context using a different language.
func (ctx *Context) WithLanguage(lang string) *Context {
	clone := *ctx
	clone.Language = lang
	return &clone
}

// WithMode returns a copy of the context using a different operating mode.
func (ctx *Context) WithMode(mode string) *Context {
	clone := *ctx
	clone.Mode = mode
	return &clone
}
