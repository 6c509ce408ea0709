package compiler

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"modsh/cmd/modsh/dsl"
)

const preamble = "#!/usr/bin/env bash\n\nset -euo pipefail\n"

// EmitScript turns a rendered script into bash source: the preamble, a help
// function listing the entry tasks, one function per unique task body with
// dependency functions first, and a dispatcher.
func EmitScript(s *Script) string {
	var b strings.Builder
	b.WriteString(preamble)
	b.WriteString("\n")

	emitHelp(&b, s.Entries)

	mains := make(map[string]bool, len(s.Entries))
	for _, e := range s.Entries {
		mains[e.Fn] = true
	}
	for _, n := range s.Nodes {
		if !mains[BashName(n.Name)] {
			emitFunction(&b, s, n)
		}
	}
	for _, n := range s.Nodes {
		if mains[BashName(n.Name)] {
			emitFunction(&b, s, n)
		}
	}

	emitDispatcher(&b, s.Entries)
	return b.String()
}

func emitHelp(b *strings.Builder, entries []MainEntry) {
	b.WriteString("help() {\n")
	b.WriteString("  echo \"Usage: $0 <task>\"\n")
	if len(entries) > 0 {
		b.WriteString("  echo\n")
		b.WriteString("  echo \"Tasks:\"\n")
		width := 0
		for _, e := range entries {
			if len(e.Name) > width {
				width = len(e.Name)
			}
		}
		for _, e := range entries {
			if e.Desc != "" {
				fmt.Fprintf(b, "  echo \"  %-*s  %s\"\n", width, e.Name, shellEscape(e.Desc))
			} else {
				fmt.Fprintf(b, "  echo \"  %s\"\n", e.Name)
			}
		}
	}
	b.WriteString("}\n\n")
}

func emitFunction(b *strings.Builder, s *Script, n *TaskNode) {
	if len(n.Requires) > 0 {
		fns := make([]string, 0, len(n.Requires))
		seen := make(map[string]bool)
		for _, dep := range n.Requires {
			fn := BashName(s.Dedup[dep])
			if !seen[fn] {
				seen[fn] = true
				fns = append(fns, fn)
			}
		}
		fmt.Fprintf(b, "# requires: %s\n", strings.Join(fns, " "))
	}
	fmt.Fprintf(b, "%s() {\n", BashName(n.Name))
	body := strings.TrimRight(n.Body, "\n")
	if strings.TrimSpace(body) == "" {
		// bash rejects a function with an empty body.
		b.WriteString("  :\n")
	} else {
		for _, line := range strings.Split(body, "\n") {
			if line == "" {
				b.WriteString("\n")
			} else {
				b.WriteString("  " + line + "\n")
			}
		}
	}
	b.WriteString("}\n\n")
}

func emitDispatcher(b *strings.Builder, entries []MainEntry) {
	b.WriteString("case \"${1:-}\" in\n")
	for _, e := range entries {
		fmt.Fprintf(b, "  %s)\n    shift\n    %s \"$@\"\n    ;;\n", dispatchPattern(e.Name), e.Fn)
	}
	b.WriteString("  \"\")\n    help\n    ;;\n")
	b.WriteString("  *)\n    help\n    exit 1\n    ;;\n")
	b.WriteString("esac\n")
}

// dispatchPattern quotes a task name for use as a case pattern when it
// contains characters the shell would otherwise interpret.
func dispatchPattern(name string) string {
	if strings.ContainsAny(name, " \t*?[]|&;()<>\"'\\$") {
		return "\"" + shellEscape(name) + "\""
	}
	return name
}

// shellEscape escapes a string for interpolation inside double quotes.
func shellEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "$", "\\$", "`", "\\`")
	return r.Replace(s)
}

// Verify parses src as bash and reports syntax errors. It guards against a
// task command that breaks out of its function body.
func Verify(src string) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	if _, err := parser.Parse(strings.NewReader(src), "script"); err != nil {
		return fmt.Errorf("%w: generated script does not parse: %v", dsl.ErrSyntax, err)
	}
	return nil
}
