package dslyaml

import (
	"errors"
	"reflect"
	"testing"

	"modsh/cmd/modsh/dsl"
)

func mustParse(t *testing.T, src string) *dsl.ModuleDefinition {
	t.Helper()
	def, _, err := NewParser().Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return def
}

func TestParseModule(t *testing.T) {
	def := mustParse(t, `
uses: ./base.yml
vars:
  name: World
  count: 3
  ratio: 1.5
  flag: true
  items: [a, b]
  settings:
    host: localhost
    port: 8080
tasks:
  greet:
    cmd: echo "Hello, {{vars.name}}!"
    desc: Say hello
  short: echo hi
  multi:
    cmd:
      - echo one
      - echo two
  wrapper:
    uses: greet
    vars:
      name: Wrapped
modules:
  log:
    tasks:
      info: echo info
`)

	if def.Uses != "./base.yml" {
		t.Errorf("Uses = %q", def.Uses)
	}
	if want := []string{"name", "count", "ratio", "flag", "items", "settings"}; !reflect.DeepEqual(def.Vars.Keys(), want) {
		t.Errorf("vars order = %v, want %v", def.Vars.Keys(), want)
	}
	if v, _ := def.Vars.Get("count"); v != dsl.Int(3) {
		t.Errorf("count = %#v, want Int(3)", v)
	}
	if v, _ := def.Vars.Get("ratio"); v != dsl.Float(1.5) {
		t.Errorf("ratio = %#v, want Float(1.5)", v)
	}
	if v, _ := def.Vars.Get("flag"); v != dsl.Bool(true) {
		t.Errorf("flag = %#v, want Bool(true)", v)
	}
	if v, _ := def.Vars.Get("items"); !reflect.DeepEqual(v, dsl.List{dsl.String("a"), dsl.String("b")}) {
		t.Errorf("items = %#v", v)
	}
	settings, _ := def.Vars.Get("settings")
	dict, ok := settings.(dsl.Dict)
	if !ok {
		t.Fatalf("settings = %#v, want Dict", settings)
	}
	if want := []string{"host", "port"}; !reflect.DeepEqual(dict.Keys(), want) {
		t.Errorf("settings order = %v, want %v", dict.Keys(), want)
	}

	greet, _ := def.Tasks.Get("greet")
	if greet.Cmd != `echo "Hello, {{vars.name}}!"` || greet.Desc != "Say hello" {
		t.Errorf("greet = %+v", greet)
	}
	short, _ := def.Tasks.Get("short")
	if short.Cmd != "echo hi" || !short.HasCmd {
		t.Errorf("string shorthand = %+v", short)
	}
	multi, _ := def.Tasks.Get("multi")
	if multi.Cmd != "echo one\necho two" {
		t.Errorf("list cmd = %q, want newline-joined", multi.Cmd)
	}
	wrapper, _ := def.Tasks.Get("wrapper")
	if wrapper.Uses != "greet" || wrapper.HasCmd {
		t.Errorf("wrapper = %+v", wrapper)
	}
	if v, _ := wrapper.Vars.Get("name"); v != dsl.String("Wrapped") {
		t.Errorf("wrapper var = %#v", v)
	}

	log, ok := def.Modules.Get("log")
	if !ok {
		t.Fatal("missing nested module 'log'")
	}
	if info, _ := log.Tasks.Get("info"); info.Cmd != "echo info" {
		t.Errorf("nested task = %+v", info)
	}
}

func TestParseFeatureTaggedKeys(t *testing.T) {
	def := mustParse(t, `
vars:
  a: "1"
  a[ssh]: "2"
tasks:
  deploy: echo local
  deploy[docker]: echo docker
`)
	// Feature keys survive parsing untouched; selection is the resolver's job.
	if want := []string{"a", "a[ssh]"}; !reflect.DeepEqual(def.Vars.Keys(), want) {
		t.Errorf("vars keys = %v, want %v", def.Vars.Keys(), want)
	}
	if want := []string{"deploy", "deploy[docker]"}; !reflect.DeepEqual(def.Tasks.Keys(), want) {
		t.Errorf("tasks keys = %v, want %v", def.Tasks.Keys(), want)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"invalid yaml", "tasks: [}", dsl.ErrSyntax},
		{"top level sequence", "- a\n- b", dsl.ErrSchema},
		{"unknown module key", "nope: 1", dsl.ErrSchema},
		{"task missing cmd and uses", "tasks:\n  broken:\n    desc: nothing", dsl.ErrSchema},
		{"task wrong shape", "tasks:\n  broken: [1, 2]", dsl.ErrSchema},
		{"vars wrong shape", "vars: [1]", dsl.ErrSchema},
		{"tasks wrong shape", "tasks: just-a-string", dsl.ErrSchema},
		{"unknown task key", "tasks:\n  t:\n    cmd: x\n    bogus: y", dsl.ErrSchema},
		{"cmd wrong shape", "tasks:\n  t:\n    cmd: {a: b}", dsl.ErrSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewParser().Parse([]byte(tt.src))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseCaching(t *testing.T) {
	p := NewParser()
	src := []byte("tasks:\n  t: echo hi\n")

	def1, hash1, err := p.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	def2, hash2, err := p.Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	if def1 != def2 {
		t.Error("identical source must return the cached definition")
	}
	if hash1 != hash2 {
		t.Errorf("hash mismatch: %s vs %s", hash1, hash2)
	}
	if s := p.Stats(); s.Parses != 1 || s.Hits != 1 {
		t.Errorf("stats = %+v, want 1 parse / 1 hit", s)
	}

	if _, hash3, err := p.Parse([]byte("tasks:\n  t: echo bye\n")); err != nil {
		t.Fatal(err)
	} else if hash3 == hash1 {
		t.Error("different source must hash differently")
	}
	if s := p.Stats(); s.Parses != 2 {
		t.Errorf("stats = %+v, want 2 parses", s)
	}
}

func TestParseEmptySource(t *testing.T) {
	def := mustParse(t, "")
	if def.Tasks.Len() != 0 || def.Vars.Len() != 0 || def.Modules.Len() != 0 {
		t.Errorf("empty source must yield an empty module: %+v", def)
	}
}
