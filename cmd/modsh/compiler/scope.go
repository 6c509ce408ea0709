package compiler

import (
	"fmt"

	"modsh/cmd/modsh/dsl"
)

// scope is a resolution frame for template expressions. Every scope is bound
// to a module template and a canonical prefix (the dot-joined path from the
// entry module); a task scope additionally carries the task's name, its
// local vars, and preset values merged in by a uses chain.
//
// Name resolution is explicit for the namespaced forms (vars.x, tasks.t,
// modules.m) and falls through preset -> task vars -> module vars -> tasks ->
// modules -> parent for bare names.
type scope struct {
	rc       *renderContext
	module   *ModuleTemplate
	prefix   string
	taskName string
	taskVars *dsl.Map[dsl.Value]
	preset   map[string]dsl.Value
	parent   *scope
}

func newModuleScope(rc *renderContext, module *ModuleTemplate, prefix string, parent *scope) *scope {
	return &scope{rc: rc, module: module, prefix: prefix, parent: parent}
}

// taskScope derives a scope for rendering a task's cmd or task-local vars.
// Its parent is the owning module's scope, so super from inside a task sees
// the enclosing module, not the task frame again.
func (s *scope) taskScope(taskName string, taskVars *dsl.Map[dsl.Value], preset map[string]dsl.Value) *scope {
	m := s.moduleScope()
	return &scope{
		rc:       m.rc,
		module:   m.module,
		prefix:   m.prefix,
		taskName: taskName,
		taskVars: taskVars,
		preset:   preset,
		parent:   m,
	}
}

// moduleScope strips any task bindings, leaving the plain module frame.
// A task scope's parent is always its owning module's frame.
func (s *scope) moduleScope() *scope {
	if s.taskName == "" && s.taskVars == nil && s.preset == nil {
		return s
	}
	return s.parent
}

// canonical joins the scope's prefix with name.
func (s *scope) canonical(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "." + name
}

// varKey identifies a var for memoization and cycle tracking. It is built
// from the canonical prefix, not the module identity: the same module
// resolved under two prefixes has distinct super chains, so its vars must
// memoize separately.
func (s *scope) varKey(name string) string {
	if s.taskName != "" {
		return s.prefix + "#" + s.taskName + "#" + name
	}
	return s.prefix + "#" + name
}

// resolveVar looks up name as a variable in this scope only (no parent
// delegation): preset values first, then task-local vars, then module vars.
// Lazy values are rendered on first access and memoized per module.
func (s *scope) resolveVar(name string) (dsl.Value, bool, error) {
	if s.preset != nil {
		if v, ok := s.preset[name]; ok {
			return v, true, nil
		}
	}
	if s.taskVars != nil {
		if raw, ok := s.taskVars.Get(name); ok {
			v, err := s.renderVar(name, raw, s)
			return v, true, err
		}
	}
	if raw, ok := s.module.Vars.Get(name); ok {
		v, err := s.renderVar(name, raw, s.moduleScope())
		return v, true, err
	}
	return nil, false, nil
}

// renderVar renders a raw var value in the given scope, memoized by varKey.
// A var that is re-entered while still rendering is a cycle. Task references
// made while rendering are remembered per var and replayed on memo hits, so
// every task that reads the value gets the dependency edges.
func (s *scope) renderVar(name string, raw dsl.Value, in *scope) (dsl.Value, error) {
	key := in.varKey(name)
	if v, ok := s.rc.renderedVars[key]; ok {
		for _, dep := range s.rc.varDeps[key] {
			s.rc.recordDep(dep)
		}
		return v, nil
	}
	if s.rc.pendingVars[key] {
		return nil, fmt.Errorf("%w: %s", dsl.ErrCircularVariable, s.rc.varCyclePath(key, in.canonical(name)))
	}
	s.rc.pendingVars[key] = true
	s.rc.varStack = append(s.rc.varStack, varFrame{key: key, name: in.canonical(name)})
	defer func() {
		delete(s.rc.pendingVars, key)
		s.rc.varStack = s.rc.varStack[:len(s.rc.varStack)-1]
	}()

	s.rc.accumulators = append(s.rc.accumulators, newDepSet())
	v, err := renderValue(raw, in)
	deps := s.rc.accumulators[len(s.rc.accumulators)-1]
	s.rc.accumulators = s.rc.accumulators[:len(s.rc.accumulators)-1]
	if err != nil {
		return nil, err
	}
	s.rc.renderedVars[key] = v
	s.rc.varDeps[key] = deps.names
	for _, dep := range deps.names {
		s.rc.recordDep(dep)
	}
	return v, nil
}

// resolveTask returns a lazy reference to the named task in this scope's
// module. Nothing is rendered until the reference is stringified or inlined.
func (s *scope) resolveTask(name string) (*taskRef, bool) {
	t, ok := s.module.Tasks.Get(name)
	if !ok {
		return nil, false
	}
	return &taskRef{
		rc:     s.rc,
		scope:  s.moduleScope(),
		name:   name,
		task:   t,
		caller: s,
	}, true
}

// resolveModule returns a scope for the named nested module. The child's
// parent is this module's frame, so super inside the child climbs back out.
func (s *scope) resolveModule(name string) (*scope, bool) {
	m, ok := s.module.Modules.Get(name)
	if !ok {
		return nil, false
	}
	base := s.moduleScope()
	return newModuleScope(s.rc, m, base.canonical(name), base), true
}

// lookup resolves a bare name: vars, then tasks, then nested modules, then
// the parent scope. The boolean reports whether anything matched.
func (s *scope) lookup(name string) (any, bool, error) {
	if v, ok, err := s.resolveVar(name); ok || err != nil {
		return v, ok, err
	}
	if ref, ok := s.resolveTask(name); ok {
		return ref, true, nil
	}
	if child, ok := s.resolveModule(name); ok {
		return child, true, nil
	}
	if s.parent != nil {
		return s.parent.lookup(name)
	}
	return nil, false, nil
}
