package compiler

import (
	"errors"
	"fmt"
	"testing"

	"modsh/cmd/modsh/dsl"
	"modsh/cmd/modsh/dslyaml"
)

// memLoad serves modules from an in-memory map keyed by reference.
func memLoad(files map[string]string) LoadFunc {
	parser := dslyaml.NewParser()
	return func(ref, fromDir string) (*LoadedModule, error) {
		src, ok := files[ref]
		if !ok {
			return nil, fmt.Errorf("%w: %q", dsl.ErrModuleNotFound, ref)
		}
		def, hash, err := parser.Parse([]byte(src))
		if err != nil {
			return nil, err
		}
		return &LoadedModule{Def: def, Hash: hash, Path: ref}, nil
	}
}

func resolveEntry(t *testing.T, files map[string]string, entry string, features ...string) (*ModuleTemplate, error) {
	t.Helper()
	enabled := make(map[string]bool)
	for _, f := range features {
		enabled[f] = true
	}
	load := memLoad(files)
	lm, err := load(entry, ".")
	if err != nil {
		t.Fatalf("load entry: %v", err)
	}
	return NewResolver(load, enabled).Resolve(lm)
}

func mustResolve(t *testing.T, files map[string]string, entry string, features ...string) *ModuleTemplate {
	t.Helper()
	tpl, err := resolveEntry(t, files, entry, features...)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return tpl
}

func TestResolveInheritance(t *testing.T) {
	files := map[string]string{
		"base.yml": `
vars:
  x: "1"
  y: base-y
tasks:
  build:
    cmd: make build
  test:
    cmd: make test
`,
		"child.yml": `
uses: base.yml
vars:
  x: "2"
tasks:
  build:
    cmd: go build ./...
`,
	}
	tpl := mustResolve(t, files, "child.yml")

	if v, _ := tpl.Vars.Get("x"); dsl.Text(v) != "2" {
		t.Errorf("x = %q, want %q", dsl.Text(v), "2")
	}
	if v, _ := tpl.Vars.Get("y"); dsl.Text(v) != "base-y" {
		t.Errorf("y = %q, want %q", dsl.Text(v), "base-y")
	}
	build, ok := tpl.Tasks.Get("build")
	if !ok || build.Cmd != "go build ./..." {
		t.Errorf("build.Cmd = %q, want the overriding command", build.Cmd)
	}
	if _, ok := tpl.Tasks.Get("test"); !ok {
		t.Error("inherited task test missing")
	}
	if len(tpl.Ancestors) != 1 {
		t.Errorf("ancestors = %d, want 1", len(tpl.Ancestors))
	}
}

func TestResolveInheritanceKeepsBaseOrder(t *testing.T) {
	files := map[string]string{
		"base.yml": `
vars:
  a: "1"
  b: "2"
`,
		"child.yml": `
uses: base.yml
vars:
  b: "3"
  c: "4"
`,
	}
	tpl := mustResolve(t, files, "child.yml")
	got := tpl.Vars.Keys()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys = %v, want %v", got, want)
		}
	}
	if v, _ := tpl.Vars.Get("b"); dsl.Text(v) != "3" {
		t.Errorf("b = %q, want override value", dsl.Text(v))
	}
}

func TestResolveDoesNotMutateParent(t *testing.T) {
	files := map[string]string{
		"base.yml": `
vars:
  x: "1"
`,
		"child.yml": `
uses: base.yml
vars:
  x: "2"
`,
	}
	enabled := map[string]bool{}
	load := memLoad(files)
	r := NewResolver(load, enabled)

	childLM, err := load("child.yml", ".")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Resolve(childLM); err != nil {
		t.Fatalf("resolve child: %v", err)
	}

	baseLM, err := load("base.yml", ".")
	if err != nil {
		t.Fatal(err)
	}
	base, err := r.Resolve(baseLM)
	if err != nil {
		t.Fatalf("resolve base: %v", err)
	}
	if v, _ := base.Vars.Get("x"); dsl.Text(v) != "1" {
		t.Errorf("base x = %q after resolving child, want %q", dsl.Text(v), "1")
	}
}

func TestResolveFeatureSelection(t *testing.T) {
	src := map[string]string{
		"mod.yml": `
vars:
  mode: plain
  mode[fast]: turbo
tasks:
  build:
    cmd: make
  build[fast]:
    cmd: make -j8
`,
	}

	plain := mustResolve(t, src, "mod.yml")
	if v, _ := plain.Vars.Get("mode"); dsl.Text(v) != "plain" {
		t.Errorf("mode = %q, want %q", dsl.Text(v), "plain")
	}
	if task, _ := plain.Tasks.Get("build"); task.Cmd != "make" {
		t.Errorf("build.Cmd = %q, want %q", task.Cmd, "make")
	}

	fast := mustResolve(t, src, "mod.yml", "fast")
	if v, _ := fast.Vars.Get("mode"); dsl.Text(v) != "turbo" {
		t.Errorf("mode = %q, want %q", dsl.Text(v), "turbo")
	}
	if task, _ := fast.Tasks.Get("build"); task.Cmd != "make -j8" {
		t.Errorf("build.Cmd = %q, want %q", task.Cmd, "make -j8")
	}
}

func TestResolveNestedModules(t *testing.T) {
	files := map[string]string{
		"mod.yml": `
modules:
  db:
    vars:
      port: "5432"
    tasks:
      start:
        cmd: pg_ctl start
    modules:
      admin:
        tasks:
          shell:
            cmd: psql
`,
	}
	tpl := mustResolve(t, files, "mod.yml")
	db, ok := tpl.Modules.Get("db")
	if !ok {
		t.Fatal("nested module db missing")
	}
	if _, ok := db.Tasks.Get("start"); !ok {
		t.Error("db.start missing")
	}
	admin, ok := db.Modules.Get("admin")
	if !ok {
		t.Fatal("nested module db.admin missing")
	}
	if _, ok := admin.Tasks.Get("shell"); !ok {
		t.Error("db.admin.shell missing")
	}
	if db.Hash == tpl.Hash || admin.Hash == db.Hash {
		t.Error("nested modules must carry distinct hashes")
	}
}

func TestResolveCircularModule(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		entry string
	}{
		{
			name:  "self",
			files: map[string]string{"a.yml": "uses: a.yml\n"},
			entry: "a.yml",
		},
		{
			name: "mutual",
			files: map[string]string{
				"a.yml": "uses: b.yml\n",
				"b.yml": "uses: a.yml\n",
			},
			entry: "a.yml",
		},
		{
			name: "long chain",
			files: map[string]string{
				"a.yml": "uses: b.yml\n",
				"b.yml": "uses: c.yml\n",
				"c.yml": "uses: a.yml\n",
			},
			entry: "a.yml",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveEntry(t, tt.files, tt.entry)
			if !errors.Is(err, dsl.ErrCircularModule) {
				t.Errorf("err = %v, want ErrCircularModule", err)
			}
		})
	}
}

func TestResolveDiamondSharesCache(t *testing.T) {
	files := map[string]string{
		"base.yml": `
vars:
  root: "1"
`,
		"left.yml":  "uses: base.yml\n",
		"right.yml": "uses: base.yml\n",
		"top.yml": `
uses: left.yml
modules:
  r:
    uses: right.yml
`,
	}
	tpl := mustResolve(t, files, "top.yml")
	if v, _ := tpl.Vars.Get("root"); dsl.Text(v) != "1" {
		t.Errorf("root = %q, want %q", dsl.Text(v), "1")
	}
	r, ok := tpl.Modules.Get("r")
	if !ok {
		t.Fatal("module r missing")
	}
	if v, _ := r.Vars.Get("root"); dsl.Text(v) != "1" {
		t.Errorf("r.root = %q, want %q", dsl.Text(v), "1")
	}
}
