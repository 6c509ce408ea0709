package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"modsh/cmd/modsh/dsl"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCompileEndToEnd(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"base.yml": `
vars:
  bin: app
tasks:
  build:
    cmd: "go build -o {{vars.bin}} ."
`,
		"project.yml": `
uses: base.yml
tasks:
  run:
    desc: build and start
    cmd: "{{tasks.build}} && ./{{vars.bin}}"
`,
	})

	c := New()
	res, err := c.Compile(filepath.Join(dir, "project.yml"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if res.Tasks != 2 {
		t.Errorf("tasks = %d, want 2", res.Tasks)
	}
	for _, want := range []string{"build() {", "run() {", "go build -o app ."} {
		if !strings.Contains(res.Script, want) {
			t.Errorf("script missing %q", want)
		}
	}
	if err := Verify(res.Script); err != nil {
		t.Errorf("verify: %v", err)
	}
}

func TestCompileRelativeUses(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"shared/base.yml": `
tasks:
  clean:
    cmd: rm -rf dist
`,
		"app/project.yml": `
uses: ../shared/base.yml
tasks:
  build:
    cmd: "{{tasks.clean}} && make"
`,
	})

	res, err := New().Compile(filepath.Join(dir, "app", "project.yml"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(res.Script, "clean() {") {
		t.Error("inherited task missing from script")
	}
}

func TestCompileRegistryAlias(t *testing.T) {
	registry := writeFiles(t, map[string]string{
		"golang.yml": `
tasks:
  build:
    cmd: go build ./...
`,
	})
	dir := writeFiles(t, map[string]string{
		"project.yml": `
uses: golang
tasks:
  all:
    cmd: "{{tasks.build}}"
`,
	})

	c := New(WithRegistryDirs([]string{registry}))
	res, err := c.Compile(filepath.Join(dir, "project.yml"))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !strings.Contains(res.Script, "go build ./...") {
		t.Error("aliased module not resolved")
	}
}

func TestCompileUnknownAlias(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"project.yml": "uses: nadda\n",
	})
	_, err := New().Compile(filepath.Join(dir, "project.yml"))
	if !errors.Is(err, dsl.ErrModuleNotFound) {
		t.Errorf("err = %v, want ErrModuleNotFound", err)
	}
}

func TestCompileMissingEntry(t *testing.T) {
	_, err := New().Compile(filepath.Join(t.TempDir(), "absent.yml"))
	if !errors.Is(err, dsl.ErrIO) {
		t.Errorf("err = %v, want ErrIO", err)
	}
}

func TestCompileFeatures(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"project.yml": `
tasks:
  build:
    cmd: make
  build[release]:
    cmd: make release
`,
	})

	plain, err := New().Compile(filepath.Join(dir, "project.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(plain.Script, "make\n") || strings.Contains(plain.Script, "make release") {
		t.Errorf("plain build wrong:\n%s", plain.Script)
	}

	rel, err := New(WithFeatures([]string{"release"})).Compile(filepath.Join(dir, "project.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rel.Script, "make release") {
		t.Errorf("release build wrong:\n%s", rel.Script)
	}
}

func TestCompileSharedBaseLoadedOnce(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"base.yml": `
tasks:
  fmt:
    cmd: gofmt -w .
`,
		"project.yml": `
uses: base.yml
modules:
  sub:
    uses: base.yml
tasks:
  all:
    cmd: "{{tasks.fmt}} && {{sub.fmt}}"
`,
	})

	c := New()
	if _, err := c.Compile(filepath.Join(dir, "project.yml")); err != nil {
		t.Fatalf("compile: %v", err)
	}
	ls := c.loader.Stats()
	if ls.Reads != 2 {
		t.Errorf("reads = %d, want 2 (entry plus base)", ls.Reads)
	}
	if ls.Hits != 1 {
		t.Errorf("hits = %d, want 1 (base reused by sub)", ls.Hits)
	}
}

func TestInspect(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"project.yml": `
tasks:
  build:
    desc: compile
    cmd: make
  test:
    cmd: make test
`,
	})
	tpl, err := New().Inspect(filepath.Join(dir, "project.yml"))
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	got := tpl.Tasks.Keys()
	if len(got) != 2 || got[0] != "build" || got[1] != "test" {
		t.Errorf("tasks = %v", got)
	}
	b, _ := tpl.Tasks.Get("build")
	if b.Desc != "compile" {
		t.Errorf("desc = %q", b.Desc)
	}
}
