package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"modsh/cmd/modsh/dsl"
)

// LoadedModule is the unit the resolver works from: a parsed definition plus
// the identity and location of its source.
type LoadedModule struct {
	Def  *dsl.ModuleDefinition
	Hash string
	Path string
}

// LoadFunc loads the module referenced by ref (a path or registry alias),
// resolving relative paths against fromDir.
type LoadFunc func(ref, fromDir string) (*LoadedModule, error)

// Resolver flattens module definitions into templates: it applies feature
// selection, resolves uses inheritance with copy-on-write overlays, and
// recursively resolves inline nested modules. Templates are cached by
// content hash; an in-progress stack detects circular inheritance.
type Resolver struct {
	load     LoadFunc
	features map[string]bool
	cache    map[string]*ModuleTemplate
	stack    []stackEntry
}

type stackEntry struct {
	hash string
	name string
}

// NewResolver returns a Resolver using load for uses references and the
// given enabled feature set.
func NewResolver(load LoadFunc, features map[string]bool) *Resolver {
	return &Resolver{
		load:     load,
		features: features,
		cache:    make(map[string]*ModuleTemplate),
	}
}

// Resolve flattens the given module into a template.
func (r *Resolver) Resolve(lm *LoadedModule) (*ModuleTemplate, error) {
	return r.resolve(lm.Def, lm.Hash, lm.Path, displayName(lm.Path, lm.Hash))
}

func (r *Resolver) resolve(def *dsl.ModuleDefinition, hash, source, name string) (*ModuleTemplate, error) {
	if t, ok := r.cache[hash]; ok {
		return t, nil
	}
	for _, e := range r.stack {
		if e.hash == hash {
			return nil, fmt.Errorf("%w: %s", dsl.ErrCircularModule, r.cyclePath(hash, name))
		}
	}
	r.stack = append(r.stack, stackEntry{hash: hash, name: name})
	defer func() { r.stack = r.stack[:len(r.stack)-1] }()

	vars := dsl.NewMap[dsl.Value]()
	tasks := dsl.NewMap[*TaskTemplate]()
	modules := dsl.NewMap[*ModuleTemplate]()
	ancestors := make(map[string]struct{})

	// Inheritance base: a shallow copy of the parent template's maps, so
	// overlaying below never mutates the parent.
	if def.Uses != "" {
		parentLM, err := r.load(def.Uses, filepath.Dir(source))
		if err != nil {
			return nil, err
		}
		parent, err := r.resolve(parentLM.Def, parentLM.Hash, parentLM.Path,
			displayName(parentLM.Path, parentLM.Hash))
		if err != nil {
			return nil, err
		}
		vars = parent.Vars.Clone()
		tasks = parent.Tasks.Clone()
		modules = parent.Modules.Clone()
		for a := range parent.Ancestors {
			ancestors[a] = struct{}{}
		}
		ancestors[parent.Hash] = struct{}{}
	}

	// Feature selection happens on the definition's own maps before the
	// overlay, so a disabled variant never shadows an inherited entry.
	selectedVars := dsl.SelectFeatures(def.Vars, r.features)
	for _, k := range selectedVars.Keys() {
		v, _ := selectedVars.Get(k)
		vars.Set(k, v)
	}

	selectedTasks := dsl.SelectFeatures(def.Tasks, r.features)
	for _, k := range selectedTasks.Keys() {
		td, _ := selectedTasks.Get(k)
		tasks.Set(k, r.taskTemplate(td, source))
	}

	selectedModules := dsl.SelectFeatures(def.Modules, r.features)
	for _, k := range selectedModules.Keys() {
		md, _ := selectedModules.Get(k)
		child, err := r.resolve(md, hash+"/"+k, source, name+".modules."+k)
		if err != nil {
			return nil, err
		}
		modules.Set(k, child)
	}

	t := &ModuleTemplate{
		Vars:      vars,
		Tasks:     tasks,
		Modules:   modules,
		Ancestors: ancestors,
		Source:    source,
		Hash:      hash,
	}
	r.cache[hash] = t
	return t, nil
}

func (r *Resolver) taskTemplate(td *dsl.TaskDefinition, source string) *TaskTemplate {
	return &TaskTemplate{
		Cmd:    td.Cmd,
		HasCmd: td.HasCmd,
		Desc:   td.Desc,
		Vars:   dsl.SelectFeatures(td.Vars, r.features),
		Uses:   td.Uses,
		Source: source,
	}
}

// cyclePath renders the inheritance chain from the first occurrence of hash
// down to the re-entry, for the error message.
func (r *Resolver) cyclePath(hash, name string) string {
	start := 0
	for i, e := range r.stack {
		if e.hash == hash {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(r.stack)-start+1)
	for _, e := range r.stack[start:] {
		parts = append(parts, e.name)
	}
	parts = append(parts, name)
	return strings.Join(parts, " -> ")
}

func displayName(path, hash string) string {
	if path != "" {
		return filepath.Base(path)
	}
	return "<" + hash + ">"
}
