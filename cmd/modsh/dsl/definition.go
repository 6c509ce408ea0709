package dsl

// ModuleDefinition is the raw parsed form of one module: exactly what the
// source file declares, before inheritance and feature selection are applied.
// Keys in Vars, Tasks and Modules may still carry a feature suffix
// ("name[feature]"); the resolver selects variants when it flattens the
// definition into a template.
type ModuleDefinition struct {
	// Uses references a parent module to inherit from: a path relative to
	// the defining file, or a registry alias. Empty means no parent.
	Uses string

	Vars    *Map[Value]
	Tasks   *Map[*TaskDefinition]
	Modules *Map[*ModuleDefinition]
}

// TaskDefinition is one named command template.
// A task must declare Cmd or Uses; the parser rejects anything else.
type TaskDefinition struct {
	// Cmd is the command template. A YAML list form is already joined with
	// newlines by the parser.
	Cmd string

	// HasCmd distinguishes an explicitly empty cmd from an absent one.
	HasCmd bool

	Desc string

	// Vars are per-task variable overrides, keys possibly feature-tagged.
	Vars *Map[Value]

	// Uses delegates to another task (a reference expression such as
	// "base" or "modules.log.tasks.info"); the referenced task's cmd is
	// the one ultimately rendered.
	Uses string
}
