package compiler

import "modsh/cmd/modsh/dsl"

// ModuleTemplate is a fully flattened module: inheritance applied, feature
// variants selected, nested modules resolved. Templates are immutable once
// the resolver returns them and may be shared between cache entries, so
// overlays always work on clones.
type ModuleTemplate struct {
	Vars    *dsl.Map[dsl.Value]
	Tasks   *dsl.Map[*TaskTemplate]
	Modules *dsl.Map[*ModuleTemplate]

	// Ancestors holds the content hashes of every module consumed through
	// the uses chain.
	Ancestors map[string]struct{}

	// Source is the resolved path of the defining file; inline nested
	// modules inherit their parent's source.
	Source string

	// Hash is the module identity: the defining file's content hash, with
	// a name suffix for inline nested modules.
	Hash string
}

// TaskTemplate is one flattened task: its cmd template, feature-selected
// variable overrides, and an optional delegation target.
type TaskTemplate struct {
	Cmd    string
	HasCmd bool
	Desc   string
	Vars   *dsl.Map[dsl.Value]
	Uses   string
	Source string
}
