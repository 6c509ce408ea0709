package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"modsh/cmd/modsh/dsl"
	"modsh/cmd/modsh/dslyaml"
)

// Compiler compiles a module file into a standalone bash script. Loading
// and parsing are cached, so a module referenced from several places is
// read and parsed once.
type Compiler struct {
	loader       *Loader
	parser       *dslyaml.Parser
	features     map[string]bool
	registryDirs []string
	logger       *log.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithFeatures enables the given feature flags.
func WithFeatures(features []string) Option {
	return func(c *Compiler) {
		for _, f := range features {
			c.features[f] = true
		}
	}
}

// WithRegistryDirs sets the directories searched for module aliases.
func WithRegistryDirs(dirs []string) Option {
	return func(c *Compiler) { c.registryDirs = dirs }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *Compiler) { c.logger = l }
}

// New returns a Compiler with fresh caches.
func New(opts ...Option) *Compiler {
	c := &Compiler{
		loader:   NewLoader(),
		parser:   dslyaml.NewParser(),
		features: make(map[string]bool),
		logger:   log.New(os.Stderr),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Result is the outcome of a compilation.
type Result struct {
	Script  string
	Tasks   int        // unique task functions emitted
	Entries []MainEntry // entry-module tasks, in declaration order
}

// Compile loads, resolves and renders the module at entryPath and emits the
// final script.
func (c *Compiler) Compile(entryPath string) (*Result, error) {
	lm, err := c.loadModule(entryPath, ".")
	if err != nil {
		return nil, err
	}

	resolver := NewResolver(c.loadModule, c.features)
	tpl, err := resolver.Resolve(lm)
	if err != nil {
		return nil, err
	}

	script, err := Render(tpl)
	if err != nil {
		return nil, err
	}
	src := EmitScript(script)

	ls := c.loader.Stats()
	ps := c.parser.Stats()
	c.logger.Debug("compiled module",
		"path", lm.Path,
		"tasks", len(script.Nodes),
		"reads", ls.Reads, "readHits", ls.Hits,
		"parses", ps.Parses, "parseHits", ps.Hits)

	return &Result{Script: src, Tasks: len(script.Nodes), Entries: script.Entries}, nil
}

// Inspect resolves the module at entryPath without rendering, for listing
// its tasks.
func (c *Compiler) Inspect(entryPath string) (*ModuleTemplate, error) {
	lm, err := c.loadModule(entryPath, ".")
	if err != nil {
		return nil, err
	}
	return NewResolver(c.loadModule, c.features).Resolve(lm)
}

// loadModule loads and parses a module reference. Path-like references
// (anything with a separator or a YAML extension) resolve relative to
// fromDir; bare names are looked up as aliases in the registry directories.
func (c *Compiler) loadModule(ref, fromDir string) (*LoadedModule, error) {
	path, err := c.resolveRef(ref, fromDir)
	if err != nil {
		return nil, err
	}
	src, canonical, err := c.loader.Load(path)
	if err != nil {
		return nil, err
	}
	def, hash, err := c.parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", canonical, err)
	}
	return &LoadedModule{Def: def, Hash: hash, Path: canonical}, nil
}

func (c *Compiler) resolveRef(ref, fromDir string) (string, error) {
	if isPathRef(ref) {
		if filepath.IsAbs(ref) {
			return ref, nil
		}
		return filepath.Join(fromDir, ref), nil
	}
	for _, dir := range c.registryDirs {
		for _, ext := range []string{".yml", ".yaml"} {
			p := filepath.Join(dir, ref+ext)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no module %q in %s",
		dsl.ErrModuleNotFound, ref, strings.Join(c.registryDirs, ", "))
}

func isPathRef(ref string) bool {
	if strings.ContainsRune(ref, os.PathSeparator) || strings.ContainsRune(ref, '/') {
		return true
	}
	switch filepath.Ext(ref) {
	case ".yml", ".yaml":
		return true
	}
	return strings.HasPrefix(ref, ".")
}
