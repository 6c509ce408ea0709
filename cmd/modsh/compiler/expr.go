package compiler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"modsh/cmd/modsh/dsl"
)

var exprPattern = regexp.MustCompile(`\{\{(.*?)\}\}`)

// undefined is what super resolves to past the root scope. Any attribute
// access on it stays undefined, and it stringifies to the empty string.
type undefined struct{}

// renderString interpolates every {{...}} expression in s.
func renderString(s string, sc *scope) (string, error) {
	var outerErr error
	out := exprPattern.ReplaceAllStringFunc(s, func(m string) string {
		if outerErr != nil {
			return ""
		}
		inner := m[2 : len(m)-2]
		v, err := evalExpr(inner, sc)
		if err != nil {
			outerErr = err
			return ""
		}
		str, err := stringify(v, sc)
		if err != nil {
			outerErr = err
			return ""
		}
		return str
	})
	if outerErr != nil {
		return "", outerErr
	}
	return out, nil
}

// renderValue renders a raw definition value. Strings get interpolated; a
// string that is exactly one expression keeps the evaluated value's type.
// Lists and dicts render element-wise; other scalars pass through.
func renderValue(raw dsl.Value, sc *scope) (dsl.Value, error) {
	switch v := raw.(type) {
	case dsl.String:
		s := string(v)
		if inner, ok := soleExpression(s); ok {
			ev, err := evalExpr(inner, sc)
			if err != nil {
				return nil, err
			}
			return toValue(ev, sc)
		}
		out, err := renderString(s, sc)
		if err != nil {
			return nil, err
		}
		return dsl.String(out), nil
	case dsl.List:
		out := make(dsl.List, len(v))
		for i, e := range v {
			r, err := renderValue(e, sc)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case dsl.Dict:
		out := dsl.NewDict()
		for _, k := range v.Keys() {
			e, _ := v.Get(k)
			r, err := renderValue(e, sc)
			if err != nil {
				return nil, err
			}
			out.Set(k, r)
		}
		return out, nil
	default:
		return raw, nil
	}
}

// soleExpression reports whether s consists of exactly one {{...}} expression
// (surrounding whitespace allowed) and returns its inner text.
func soleExpression(s string) (string, bool) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "{{") || !strings.HasSuffix(t, "}}") {
		return "", false
	}
	inner := t[2 : len(t)-2]
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return "", false
	}
	return inner, true
}

// stringify converts an evaluated expression result to its text form.
// Stringifying a task reference is the moment it becomes a dependency.
func stringify(v any, sc *scope) (string, error) {
	switch t := v.(type) {
	case undefined:
		return "", nil
	case *taskRef:
		return t.stringValue()
	case *scope:
		return "", nil
	case dsl.Value:
		return dsl.Text(t), nil
	case string:
		return t, nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("%w: cannot render %T", dsl.ErrSchema, v)
	}
}

func toValue(v any, sc *scope) (dsl.Value, error) {
	if dv, ok := v.(dsl.Value); ok {
		return dv, nil
	}
	s, err := stringify(v, sc)
	if err != nil {
		return nil, err
	}
	return dsl.String(s), nil
}

// --- expression parsing and evaluation ---

// evalExpr evaluates a single dotted-path expression like
// "vars.name", "tasks.build.inline(target=vars.bin)", or "super.tasks.run".
func evalExpr(src string, sc *scope) (any, error) {
	p := &exprParser{src: src}
	p.skipSpace()
	v, err := p.path(sc)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, fmt.Errorf("%w: trailing input in expression %q", dsl.ErrSyntax, src)
	}
	return v, nil
}

type exprParser struct {
	src string
	pos int
}

func (p *exprParser) eof() bool { return p.pos >= len(p.src) }

func (p *exprParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *exprParser) ident() (string, error) {
	start := p.pos
	for !p.eof() {
		c := rune(p.src[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' || c == '-' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return "", fmt.Errorf("%w: expected identifier at offset %d in %q", dsl.ErrSyntax, start, p.src)
	}
	return p.src[start:p.pos], nil
}

// path evaluates segment('.'segment)* left to right against sc.
func (p *exprParser) path(sc *scope) (any, error) {
	name, err := p.ident()
	if err != nil {
		return nil, err
	}
	cur, err := rootSegment(name, sc)
	if err != nil {
		return nil, err
	}
	for {
		p.skipSpace()
		if p.peek() != '.' {
			return cur, nil
		}
		p.pos++
		p.skipSpace()
		name, err := p.ident()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() == '(' {
			args, err := p.callArgs(sc)
			if err != nil {
				return nil, err
			}
			cur, err = callMethod(cur, name, args)
			if err != nil {
				return nil, err
			}
			continue
		}
		cur, err = attribute(cur, name)
		if err != nil {
			return nil, err
		}
	}
}

func (p *exprParser) callArgs(sc *scope) (map[string]any, error) {
	p.pos++ // consume '('
	args := make(map[string]any)
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
		return args, nil
	}
	for {
		p.skipSpace()
		key, err := p.ident()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != '=' {
			return nil, fmt.Errorf("%w: expected '=' after argument %q in %q", dsl.ErrSyntax, key, p.src)
		}
		p.pos++
		p.skipSpace()
		v, err := p.argValue(sc)
		if err != nil {
			return nil, err
		}
		args[key] = v
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
			p.pos++
			return args, nil
		default:
			return nil, fmt.Errorf("%w: expected ',' or ')' in %q", dsl.ErrSyntax, p.src)
		}
	}
}

// argValue parses a literal (quoted string, number, bool) or a path
// expression evaluated in the calling scope.
func (p *exprParser) argValue(sc *scope) (any, error) {
	switch c := p.peek(); {
	case c == '"' || c == '\'':
		return p.quoted(c)
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		start := p.pos
		v, err := p.path(sc)
		if err != nil {
			return nil, err
		}
		// Bare words true/false are literals, not lookups.
		switch p.src[start:p.pos] {
		case "true":
			return dsl.Bool(true), nil
		case "false":
			return dsl.Bool(false), nil
		}
		return v, nil
	}
}

func (p *exprParser) quoted(q byte) (any, error) {
	p.pos++
	start := p.pos
	for !p.eof() && p.src[p.pos] != q {
		p.pos++
	}
	if p.eof() {
		return nil, fmt.Errorf("%w: unterminated string in %q", dsl.ErrSyntax, p.src)
	}
	s := p.src[start:p.pos]
	p.pos++
	return dsl.String(s), nil
}

func (p *exprParser) number() (any, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	dot := false
	for !p.eof() {
		c := p.src[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !dot {
			dot = true
			p.pos++
			continue
		}
		break
	}
	lit := p.src[start:p.pos]
	if dot {
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", dsl.ErrSyntax, lit)
		}
		return dsl.Float(f), nil
	}
	i, err := strconv.ParseInt(lit, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad number %q", dsl.ErrSyntax, lit)
	}
	return dsl.Int(i), nil
}

// rootSegment resolves the first path segment. The namespace words vars,
// tasks and modules restrict the next lookup; super climbs to the parent
// scope; anything else is a bare-name lookup.
func rootSegment(name string, sc *scope) (any, error) {
	switch name {
	case "super":
		p := sc.moduleScope().parent
		if p == nil {
			return undefined{}, nil
		}
		return p, nil
	case "vars", "tasks", "modules":
		return &namespace{kind: name, scope: sc}, nil
	}
	v, ok, err := sc.lookup(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", dsl.ErrVariableNotFound, name)
	}
	return v, nil
}

// namespace is the intermediate value of a bare "vars", "tasks" or "modules"
// segment, pending the member name.
type namespace struct {
	kind  string
	scope *scope
}

func attribute(cur any, name string) (any, error) {
	switch t := cur.(type) {
	case undefined:
		return undefined{}, nil
	case *namespace:
		return t.member(name)
	case *scope:
		return scopeAttribute(t, name)
	case dsl.Dict:
		if v, ok := t.Get(name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("%w: %q", dsl.ErrVariableNotFound, name)
	case *taskRef:
		return nil, fmt.Errorf("%w: task reference has no attribute %q", dsl.ErrSyntax, name)
	default:
		return nil, fmt.Errorf("%w: %T has no attribute %q", dsl.ErrSyntax, cur, name)
	}
}

func (n *namespace) member(name string) (any, error) {
	switch n.kind {
	case "vars":
		v, ok, err := n.scope.resolveVar(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %q", dsl.ErrVariableNotFound, name)
		}
		return v, nil
	case "tasks":
		ref, ok := n.scope.resolveTask(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", dsl.ErrTaskNotFound, n.scope.canonical(name))
		}
		return ref, nil
	default: // modules
		m, ok := n.scope.resolveModule(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", dsl.ErrModuleNotFound, n.scope.canonical(name))
		}
		return m, nil
	}
}

// scopeAttribute resolves a member on a module scope reached through a path
// (modules.x or super). Namespace words stay available; bare names resolve
// within that module only, without climbing to its parent.
func scopeAttribute(sc *scope, name string) (any, error) {
	switch name {
	case "super":
		p := sc.moduleScope().parent
		if p == nil {
			return undefined{}, nil
		}
		return p, nil
	case "vars", "tasks", "modules":
		return &namespace{kind: name, scope: sc}, nil
	}
	if v, ok, err := sc.resolveVar(name); ok || err != nil {
		return v, err
	}
	if ref, ok := sc.resolveTask(name); ok {
		return ref, nil
	}
	if m, ok := sc.resolveModule(name); ok {
		return m, nil
	}
	return nil, fmt.Errorf("%w: %q in %q", dsl.ErrVariableNotFound, name, sc.prefix)
}

func callMethod(cur any, name string, args map[string]any) (any, error) {
	ref, ok := cur.(*taskRef)
	if !ok {
		return nil, fmt.Errorf("%w: %T has no method %q", dsl.ErrSyntax, cur, name)
	}
	if name != "inline" {
		return nil, fmt.Errorf("%w: task reference has no method %q", dsl.ErrSyntax, name)
	}
	return ref.inline(args)
}
