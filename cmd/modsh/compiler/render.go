package compiler

import (
	"fmt"
	"strings"

	"modsh/cmd/modsh/dsl"
	"modsh/cmd/modsh/dslyaml"
)

// TaskNode is one rendered task body, destined to become a shell function.
// Name is the canonical dot-joined path from the entry module; Requires
// lists the canonical names of tasks referenced while rendering the body.
type TaskNode struct {
	Name     string
	Body     string
	Hash     string
	Desc     string
	Requires []string
}

// MainEntry maps an entry-module task to the function that implements it.
// The two differ when the task's body deduplicated onto another task.
type MainEntry struct {
	Name string
	Fn   string
	Desc string
}

// Script is the fully rendered program: every unique task body plus the
// entry-module tasks exposed on the command line.
type Script struct {
	Nodes   []*TaskNode
	Entries []MainEntry
	// Dedup maps every canonical task name to the canonical name of the
	// node that carries its body.
	Dedup map[string]string
}

// BashName converts a canonical task name to its shell function name.
func BashName(canonical string) string {
	return strings.ReplaceAll(canonical, ".", ":")
}

type varFrame struct {
	key  string
	name string
}

// renderContext carries all state for one rendering pass: memoized vars,
// finished task nodes, in-progress sets for cycle detection, the dedup
// index, and a stack of dependency accumulators (one per task body being
// rendered).
type renderContext struct {
	nodes        []*TaskNode
	nodeByName   map[string]*TaskNode
	renderedVars map[string]dsl.Value
	// varDeps keeps the task references recorded while a var rendered, so
	// later tasks reusing the memoized value still get the edges.
	varDeps map[string][]string

	pendingTasks map[string]bool
	taskStack    []string
	pendingVars  map[string]bool
	varStack     []varFrame

	hashToName  map[string]string
	nameToDedup map[string]string

	accumulators []*depSet
}

func newRenderContext() *renderContext {
	return &renderContext{
		nodeByName:   make(map[string]*TaskNode),
		renderedVars: make(map[string]dsl.Value),
		varDeps:      make(map[string][]string),
		pendingTasks: make(map[string]bool),
		pendingVars:  make(map[string]bool),
		hashToName:   make(map[string]string),
		nameToDedup:  make(map[string]string),
	}
}

// depSet is an insertion-ordered set of canonical task names.
type depSet struct {
	names []string
	seen  map[string]bool
}

func newDepSet() *depSet {
	return &depSet{seen: make(map[string]bool)}
}

func (d *depSet) add(name string) {
	if d.seen[name] {
		return
	}
	d.seen[name] = true
	d.names = append(d.names, name)
}

func (rc *renderContext) recordDep(canonical string) {
	if len(rc.accumulators) == 0 {
		return
	}
	rc.accumulators[len(rc.accumulators)-1].add(canonical)
}

func (rc *renderContext) varCyclePath(key, name string) string {
	start := 0
	for i, f := range rc.varStack {
		if f.key == key {
			start = i
			break
		}
	}
	parts := make([]string, 0, len(rc.varStack)-start+1)
	for _, f := range rc.varStack[start:] {
		parts = append(parts, f.name)
	}
	parts = append(parts, name)
	return strings.Join(parts, " -> ")
}

func (rc *renderContext) taskCyclePath(canonical string) string {
	start := 0
	for i, n := range rc.taskStack {
		if n == canonical {
			start = i
			break
		}
	}
	parts := append([]string{}, rc.taskStack[start:]...)
	parts = append(parts, canonical)
	return strings.Join(parts, " -> ")
}

// Render renders every task of the entry module and everything they reach.
func Render(entry *ModuleTemplate) (*Script, error) {
	rc := newRenderContext()
	root := newModuleScope(rc, entry, "", nil)

	var entries []MainEntry
	for _, name := range entry.Tasks.Keys() {
		t, _ := entry.Tasks.Get(name)
		ref := &taskRef{rc: rc, scope: root, name: name, task: t}
		rep, err := rc.ensureTask(ref)
		if err != nil {
			return nil, err
		}
		entries = append(entries, MainEntry{Name: name, Fn: BashName(rep), Desc: t.Desc})
	}

	return &Script{Nodes: rc.nodes, Entries: entries, Dedup: rc.nameToDedup}, nil
}

// taskRef is a lazy handle on a task. Resolution only locates the task;
// rendering happens when the reference is stringified or inlined.
type taskRef struct {
	rc     *renderContext
	scope  *scope // module scope of the owning module
	name   string
	task   *TaskTemplate
	caller *scope
}

// stringValue renders the task (once), records it as a dependency of the
// body currently being rendered, and returns the shell function name.
func (ref *taskRef) stringValue() (string, error) {
	canonical := ref.scope.canonical(ref.name)
	rep, err := ref.rc.ensureTask(ref)
	if err != nil {
		return "", err
	}
	ref.rc.recordDep(canonical)
	return BashName(rep), nil
}

// inline renders the task's body in place, without emitting a function or
// recording a dependency. References made inside the inlined body still
// attach to the calling task's dependency set. Arguments override the
// task's resolved values.
func (ref *taskRef) inline(args map[string]any) (any, error) {
	canonical := ref.scope.canonical(ref.name)
	if ref.rc.pendingTasks[canonical] {
		return nil, fmt.Errorf("%w: %s", dsl.ErrCircularTask, ref.rc.taskCyclePath(canonical))
	}
	ref.rc.pendingTasks[canonical] = true
	ref.rc.taskStack = append(ref.rc.taskStack, canonical)
	defer func() {
		delete(ref.rc.pendingTasks, canonical)
		ref.rc.taskStack = ref.rc.taskStack[:len(ref.rc.taskStack)-1]
	}()

	overrides := make(map[string]dsl.Value, len(args))
	for k, v := range args {
		dv, err := toValue(v, ref.caller)
		if err != nil {
			return nil, err
		}
		overrides[k] = dv
	}
	body, err := renderTaskBody(ref, overrides)
	if err != nil {
		return nil, err
	}
	return dsl.String(body), nil
}

// ensureTask renders the referenced task into a node, deduplicating by body
// hash, and returns the canonical name of the node carrying the body.
func (rc *renderContext) ensureTask(ref *taskRef) (string, error) {
	canonical := ref.scope.canonical(ref.name)
	if rep, ok := rc.nameToDedup[canonical]; ok {
		return rep, nil
	}
	if rc.pendingTasks[canonical] {
		return "", fmt.Errorf("%w: %s", dsl.ErrCircularTask, rc.taskCyclePath(canonical))
	}
	rc.pendingTasks[canonical] = true
	rc.taskStack = append(rc.taskStack, canonical)
	rc.accumulators = append(rc.accumulators, newDepSet())
	defer func() {
		delete(rc.pendingTasks, canonical)
		rc.taskStack = rc.taskStack[:len(rc.taskStack)-1]
	}()

	body, err := renderTaskBody(ref, nil)
	deps := rc.accumulators[len(rc.accumulators)-1]
	rc.accumulators = rc.accumulators[:len(rc.accumulators)-1]
	if err != nil {
		return "", err
	}

	h := dslyaml.Hash([]byte(body))
	if rep, ok := rc.hashToName[h]; ok {
		rc.nameToDedup[canonical] = rep
		return rep, nil
	}
	rc.hashToName[h] = canonical
	rc.nameToDedup[canonical] = canonical
	node := &TaskNode{
		Name:     canonical,
		Body:     body,
		Hash:     h,
		Desc:     ref.task.Desc,
		Requires: deps.names,
	}
	rc.nodes = append(rc.nodes, node)
	rc.nodeByName[canonical] = node
	return canonical, nil
}

// renderTaskBody renders a task's command, following its uses chain.
// Overrides (from inline arguments) win over everything the chain sets.
func renderTaskBody(ref *taskRef, overrides map[string]dsl.Value) (string, error) {
	layers, err := resolveUsesChain(ref)
	if err != nil {
		return "", err
	}
	final := layers[len(layers)-1]

	if len(layers) == 1 && len(overrides) == 0 {
		// Plain task: task-local vars stay lazy.
		sc := final.scope.taskScope(final.name, final.task.Vars, nil)
		return renderString(final.task.Cmd, sc)
	}

	// Chained (or overridden) task: each layer's vars render eagerly in
	// that layer's own module, innermost first, with outer layers
	// overriding. The merged values become the preset of the final body.
	preset := make(map[string]dsl.Value)
	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		if l.task.Vars == nil {
			continue
		}
		sc := l.scope.taskScope(l.name, nil, preset)
		for _, k := range l.task.Vars.Keys() {
			raw, _ := l.task.Vars.Get(k)
			v, err := renderValue(raw, sc)
			if err != nil {
				return "", err
			}
			preset[k] = v
		}
	}
	for k, v := range overrides {
		preset[k] = v
	}
	sc := final.scope.taskScope(final.name, nil, preset)
	return renderString(final.task.Cmd, sc)
}

type chainLayer struct {
	scope *scope
	name  string
	task  *TaskTemplate
}

// resolveUsesChain follows a task's uses references down to a task with a
// command. Layers are ordered outermost (the referenced task) first.
func resolveUsesChain(ref *taskRef) ([]chainLayer, error) {
	layers := []chainLayer{{scope: ref.scope, name: ref.name, task: ref.task}}
	seen := map[string]bool{ref.scope.canonical(ref.name): true}
	cur := layers[0]
	for cur.task.Uses != "" {
		next, err := resolveTaskPath(cur.scope, cur.task.Uses)
		if err != nil {
			return nil, err
		}
		canonical := next.scope.canonical(next.name)
		if seen[canonical] {
			return nil, fmt.Errorf("%w: %s", dsl.ErrCircularTask, canonical)
		}
		seen[canonical] = true
		cur = chainLayer{scope: next.scope, name: next.name, task: next.task}
		layers = append(layers, cur)
	}
	if !cur.task.HasCmd {
		return nil, fmt.Errorf("%w: %q has neither cmd nor uses",
			dsl.ErrSchema, cur.scope.canonical(cur.name))
	}
	return layers, nil
}

// resolveTaskPath resolves a dotted path like "build" or "core.build" to a
// task, walking nested modules for every segment but the last. The
// namespace words of the expression syntax are accepted too:
// "modules.core.tasks.build" names the same task as "core.build".
func resolveTaskPath(sc *scope, path string) (*taskRef, error) {
	segs := strings.Split(path, ".")
	cur := sc.moduleScope()
	for _, seg := range segs[:len(segs)-1] {
		if seg == "modules" || seg == "tasks" {
			continue
		}
		next, ok := cur.resolveModule(seg)
		if !ok {
			return nil, fmt.Errorf("%w: %q in %q", dsl.ErrModuleNotFound, seg, path)
		}
		cur = next
	}
	last := segs[len(segs)-1]
	ref, ok := cur.resolveTask(last)
	if !ok {
		return nil, fmt.Errorf("%w: %q", dsl.ErrTaskNotFound, cur.canonical(last))
	}
	return ref, nil
}
