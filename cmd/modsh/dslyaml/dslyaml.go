// Package dslyaml parses DSL source text into the raw module AST.
//
// Parsing walks yaml.v3 nodes directly instead of decoding into tagged
// structs: mapping order must be preserved (declaration order drives
// deduplication and cycle reporting downstream), and task values are
// polymorphic (a plain string is shorthand for {cmd: ...}).
package dslyaml

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"modsh/cmd/modsh/dsl"

	"gopkg.in/yaml.v3"
)

// Parser caches parsed definitions by content hash so that identical source
// text reached through multiple import sites is validated once.
type Parser struct {
	cache map[string]*dsl.ModuleDefinition
	stats Stats
}

// Stats counts cache behavior; Parses is the number of actual parse runs.
type Stats struct {
	Parses int
	Hits   int
}

// NewParser returns a Parser with an empty cache.
func NewParser() *Parser {
	return &Parser{cache: make(map[string]*dsl.ModuleDefinition)}
}

// Stats returns the cache counters accumulated so far.
func (p *Parser) Stats() Stats {
	return p.stats
}

// Hash returns the content hash used as the parse cache key (and as the
// module identity for resolver caching and cycle detection).
func Hash(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])[:16]
}

// Parse turns DSL text into a ModuleDefinition, returning the definition and
// its content hash. Identical input is parsed once and served from cache.
func (p *Parser) Parse(src []byte) (*dsl.ModuleDefinition, string, error) {
	hash := Hash(src)
	if def, ok := p.cache[hash]; ok {
		p.stats.Hits++
		return def, hash, nil
	}
	p.stats.Parses++

	def, err := parse(src)
	if err != nil {
		return nil, "", err
	}
	p.cache[hash] = def
	return def, hash, nil
}

func parse(src []byte) (*dsl.ModuleDefinition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", dsl.ErrSyntax, err)
	}
	if len(doc.Content) == 0 {
		// An empty file is a valid module with nothing in it.
		return emptyModule(), nil
	}
	root := resolveAlias(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: module must be a mapping at the top level (line %d)",
			dsl.ErrSchema, root.Line)
	}
	return parseModule(root, "<module>")
}

func emptyModule() *dsl.ModuleDefinition {
	return &dsl.ModuleDefinition{
		Vars:    dsl.NewMap[dsl.Value](),
		Tasks:   dsl.NewMap[*dsl.TaskDefinition](),
		Modules: dsl.NewMap[*dsl.ModuleDefinition](),
	}
}

// parseModule parses a mapping node into a ModuleDefinition. path identifies
// the module in error messages ("<module>", "<module>.modules.log", ...).
func parseModule(node *yaml.Node, path string) (*dsl.ModuleDefinition, error) {
	def := emptyModule()

	for key, val := range mappingPairs(node) {
		val = resolveAlias(val)
		switch key.Value {
		case "uses":
			s, err := scalarString(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: 'uses' %v", dsl.ErrSchema, path, err)
			}
			def.Uses = s

		case "vars":
			vars, err := parseValueMap(val, path+".vars")
			if err != nil {
				return nil, err
			}
			def.Vars = vars

		case "tasks":
			if val.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%w: %s: 'tasks' must be a mapping (line %d)",
					dsl.ErrSchema, path, val.Line)
			}
			for tkey, tval := range mappingPairs(val) {
				task, err := parseTask(resolveAlias(tval), path+".tasks."+tkey.Value)
				if err != nil {
					return nil, err
				}
				def.Tasks.Set(tkey.Value, task)
			}

		case "modules":
			if val.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("%w: %s: 'modules' must be a mapping (line %d)",
					dsl.ErrSchema, path, val.Line)
			}
			for mkey, mval := range mappingPairs(val) {
				sub := resolveAlias(mval)
				if sub.Kind != yaml.MappingNode {
					return nil, fmt.Errorf("%w: %s.modules.%s: nested module must be a mapping (line %d)",
						dsl.ErrSchema, path, mkey.Value, sub.Line)
				}
				child, err := parseModule(sub, path+".modules."+mkey.Value)
				if err != nil {
					return nil, err
				}
				def.Modules.Set(mkey.Value, child)
			}

		default:
			return nil, fmt.Errorf("%w: %s: unknown key %q (line %d)",
				dsl.ErrSchema, path, key.Value, key.Line)
		}
	}
	return def, nil
}

// parseTask parses one task entry. A plain string is shorthand for
// {cmd: <string>}; otherwise a mapping with cmd/desc/vars/uses keys.
func parseTask(node *yaml.Node, path string) (*dsl.TaskDefinition, error) {
	if node.Kind == yaml.ScalarNode {
		s, err := scalarString(node)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", dsl.ErrSchema, path, err)
		}
		return &dsl.TaskDefinition{Cmd: s, HasCmd: true}, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s: task must be a string or a mapping (line %d)",
			dsl.ErrSchema, path, node.Line)
	}

	task := &dsl.TaskDefinition{}
	for key, val := range mappingPairs(node) {
		val = resolveAlias(val)
		switch key.Value {
		case "cmd":
			cmd, err := parseCmd(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: 'cmd' %v", dsl.ErrSchema, path, err)
			}
			task.Cmd = cmd
			task.HasCmd = true

		case "desc":
			s, err := scalarString(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: 'desc' %v", dsl.ErrSchema, path, err)
			}
			task.Desc = s

		case "vars":
			vars, err := parseValueMap(val, path+".vars")
			if err != nil {
				return nil, err
			}
			task.Vars = vars

		case "uses":
			s, err := scalarString(val)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: 'uses' %v", dsl.ErrSchema, path, err)
			}
			task.Uses = s

		default:
			return nil, fmt.Errorf("%w: %s: unknown key %q (line %d)",
				dsl.ErrSchema, path, key.Value, key.Line)
		}
	}

	if !task.HasCmd && task.Uses == "" {
		return nil, fmt.Errorf("%w: %s: task must declare 'cmd' or 'uses'", dsl.ErrSchema, path)
	}
	return task, nil
}

// parseCmd accepts the scalar form or the list form (joined by newlines).
func parseCmd(node *yaml.Node) (string, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return scalarString(node)
	case yaml.SequenceNode:
		lines := make([]string, 0, len(node.Content))
		for i, item := range node.Content {
			s, err := scalarString(resolveAlias(item))
			if err != nil {
				return "", fmt.Errorf("[%d] %v", i, err)
			}
			lines = append(lines, s)
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "", fmt.Errorf("must be a string or a list of strings (line %d)", node.Line)
	}
}

func parseValueMap(node *yaml.Node, path string) (*dsl.Map[dsl.Value], error) {
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s must be a mapping (line %d)", dsl.ErrSchema, path, node.Line)
	}
	out := dsl.NewMap[dsl.Value]()
	for key, val := range mappingPairs(node) {
		v, err := parseValue(resolveAlias(val), path+"."+key.Value)
		if err != nil {
			return nil, err
		}
		out.Set(key.Value, v)
	}
	return out, nil
}

// parseValue converts a YAML node into a template value: template string,
// literal scalar, or ordered list / map of values.
func parseValue(node *yaml.Node, path string) (dsl.Value, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		return parseScalar(node)

	case yaml.SequenceNode:
		list := make(dsl.List, 0, len(node.Content))
		for i, item := range node.Content {
			v, err := parseValue(resolveAlias(item), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil

	case yaml.MappingNode:
		dict := dsl.NewDict()
		for key, val := range mappingPairs(node) {
			v, err := parseValue(resolveAlias(val), path+"."+key.Value)
			if err != nil {
				return nil, err
			}
			dict.Set(key.Value, v)
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("%w: %s: unsupported value (line %d)", dsl.ErrSchema, path, node.Line)
	}
}

func parseScalar(node *yaml.Node) (dsl.Value, error) {
	switch node.Tag {
	case "!!int":
		n, err := strconv.ParseInt(node.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer %q (line %d)", dsl.ErrSchema, node.Value, node.Line)
		}
		return dsl.Int(n), nil
	case "!!float":
		f, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid float %q (line %d)", dsl.ErrSchema, node.Value, node.Line)
		}
		return dsl.Float(f), nil
	case "!!bool":
		b, err := strconv.ParseBool(node.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid boolean %q (line %d)", dsl.ErrSchema, node.Value, node.Line)
		}
		return dsl.Bool(b), nil
	case "!!null":
		return dsl.String(""), nil
	default:
		return dsl.String(node.Value), nil
	}
}

func scalarString(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("must be a string (line %d)", node.Line)
	}
	return node.Value, nil
}

// mappingPairs iterates the alternating key/value content list of a mapping
// node in declaration order.
func mappingPairs(node *yaml.Node) func(yield func(*yaml.Node, *yaml.Node) bool) {
	return func(yield func(*yaml.Node, *yaml.Node) bool) {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if !yield(node.Content[i], node.Content[i+1]) {
				return
			}
		}
	}
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}
