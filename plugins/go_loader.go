package plugins

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"gopkg.in/yaml.v3"
)

const goDefinitionFuncName = "ModuleDefinitions"

// ProposalFunc is the signature of a script's proposal function. The
// environment carries stage, mode, kind, language, force_reset,
// language_changed, config and shared.
type ProposalFunc func(env map[string]any) (map[string]any, error)

// Script is an interpreted Go plugin file. Its functions run inside the
// yaegi interpreter that evaluated the file.
type Script struct {
	Path string

	mu    sync.Mutex
	funcs map[string]ProposalFunc
	vm    *interp.Interpreter
}

// Proposal returns the named proposal function.
func (s *Script) Proposal(name string) (ProposalFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn, ok := s.funcs[name]; ok {
		return fn, nil
	}
	value, err := s.vm.Eval(name)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s must define %s(map[string]any) (map[string]any, error): %w", s.Path, name, err)
	}
	fn, err := proposalFunc(name, value)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", s.Path, err)
	}
	if s.funcs == nil {
		s.funcs = map[string]ProposalFunc{}
	}
	s.funcs[name] = fn
	return fn, nil
}

// LoadGoDefinitionDir evaluates every .go file in dir and collects module
// definitions declared via ModuleDefinitions().
func LoadGoDefinitionDir(dir string) ([]DefinitionFile, error) {
	paths, err := listFiles(dir, isGoFile)
	if err != nil || len(paths) == 0 {
		return nil, err
	}
	var defs []DefinitionFile
	for _, path := range paths {
		fileDefs, err := loadGoDefinitionFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}
	return defs, nil
}

func loadGoDefinitionFile(path string) ([]DefinitionFile, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("plugin: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("plugin: load stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("plugin: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(goDefinitionFuncName)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s must define %s() ([]map[string]any, error): %w", path, goDefinitionFuncName, err)
	}
	defs, callErr := invokeDefinitionFunc(fnValue)
	if callErr != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, callErr)
	}
	script := &Script{Path: path, vm: i}
	files := make([]DefinitionFile, 0, len(defs))
	for idx, raw := range defs {
		payload, err := yaml.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s definition[%d]: %w", path, idx, err)
		}
		parsed, err := ParseDefinitionYAML(payload)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s definition[%d]: %w", path, idx, err)
		}
		if parsed.ProposalFunc != "" {
			// Fail at load time rather than on the first pass.
			if _, err := script.Proposal(parsed.ProposalFunc); err != nil {
				return nil, err
			}
		}
		files = append(files, DefinitionFile{Definition: parsed, Path: fmt.Sprintf("%s#%d", path, idx+1), Script: script})
	}
	return files, nil
}

func invokeDefinitionFunc(value reflect.Value) ([]map[string]any, error) {
	if !value.IsValid() {
		return nil, fmt.Errorf("missing %s function", goDefinitionFuncName)
	}
	if value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", goDefinitionFuncName)
	}
	results := value.Call(nil)
	if len(results) == 0 || len(results) > 2 {
		return nil, fmt.Errorf("%s must return ([]map[string]any[, error])", goDefinitionFuncName)
	}
	if len(results) == 2 {
		if err := errorResult(goDefinitionFuncName, results[1]); err != nil {
			return nil, err
		}
	}
	defsVal := results[0]
	if defs, ok := defsVal.Interface().([]map[string]any); ok {
		return defs, nil
	}
	if defsVal.Kind() == reflect.Slice {
		result := make([]map[string]any, defsVal.Len())
		for i := 0; i < defsVal.Len(); i++ {
			m, ok := defsVal.Index(i).Interface().(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s[%d] is not map[string]any", goDefinitionFuncName, i)
			}
			result[i] = m
		}
		return result, nil
	}
	return nil, fmt.Errorf("%s must return []map[string]any", goDefinitionFuncName)
}

// proposalFunc adapts an interpreted function value. The direct assertion
// covers the common case; the reflective call handles interpreter wrappers.
func proposalFunc(name string, value reflect.Value) (ProposalFunc, error) {
	if !value.IsValid() || value.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", name)
	}
	if fn, ok := value.Interface().(func(map[string]any) (map[string]any, error)); ok {
		return fn, nil
	}
	typ := value.Type()
	if typ.NumIn() != 1 || typ.NumOut() != 2 {
		return nil, fmt.Errorf("%s must have the signature func(map[string]any) (map[string]any, error)", name)
	}
	return func(env map[string]any) (map[string]any, error) {
		results := value.Call([]reflect.Value{reflect.ValueOf(env)})
		if err := errorResult(name, results[1]); err != nil {
			return nil, err
		}
		out, ok := results[0].Interface().(map[string]any)
		if !ok && !results[0].IsNil() {
			return nil, fmt.Errorf("%s returned %s, want map[string]any", name, results[0].Type())
		}
		return out, nil
	}, nil
}

func errorResult(name string, value reflect.Value) error {
	if !value.IsValid() || value.IsNil() {
		return nil
	}
	if e, ok := value.Interface().(error); ok && e != nil {
		return e
	}
	return fmt.Errorf("%s returned non-error second value", name)
}
