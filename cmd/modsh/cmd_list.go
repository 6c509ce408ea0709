package main

import (
	"fmt"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cobra"

	"modsh/cmd/modsh/compiler"
)

var (
	flagListAll  bool
	flagListPick bool
)

var listCmd = &cobra.Command{
	Use:   "list <module.yml>",
	Short: "List the tasks a module defines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := compiler.New(
			compiler.WithFeatures(flagFeatures),
			compiler.WithRegistryDirs(resolveRegistryDirs(flagRegistryDirs)),
			compiler.WithLogger(logger()),
		)
		tpl, err := c.Inspect(args[0])
		if err != nil {
			return err
		}
		entries := collectTasks(tpl, "", flagListAll)
		if len(entries) == 0 {
			fmt.Println("no tasks found")
			return nil
		}
		if flagListPick {
			return pickTask(entries)
		}
		printTasks(entries)
		return nil
	},
}

// taskEntry is one listable task: its canonical name and description.
type taskEntry struct {
	name   string
	desc   string
	nested bool
}

// collectTasks returns the module's tasks in declaration order. With deep
// set, tasks of nested modules follow, prefixed with their module path.
func collectTasks(tpl *compiler.ModuleTemplate, prefix string, deep bool) []taskEntry {
	var out []taskEntry
	for _, name := range tpl.Tasks.Keys() {
		t, _ := tpl.Tasks.Get(name)
		full := name
		if prefix != "" {
			full = prefix + "." + name
		}
		out = append(out, taskEntry{name: full, desc: t.Desc, nested: prefix != ""})
	}
	if !deep {
		return out
	}
	for _, name := range tpl.Modules.Keys() {
		m, _ := tpl.Modules.Get(name)
		sub := name
		if prefix != "" {
			sub = prefix + "." + name
		}
		out = append(out, collectTasks(m, sub, true)...)
	}
	return out
}

func printTasks(entries []taskEntry) {
	width := 0
	for _, e := range entries {
		if len(e.name) > width {
			width = len(e.name)
		}
	}
	for _, e := range entries {
		style := taskStyle
		if e.nested {
			style = nestedStyle
		}
		pad := width - len(e.name)
		line := style.Render(e.name)
		if e.desc != "" {
			line += fmt.Sprintf("%*s  %s", pad, "", descStyle.Render(e.desc))
		}
		fmt.Println(line)
	}
}

// pickTask opens a fuzzy finder over the tasks and prints the selection's
// function name as it appears in the compiled script.
func pickTask(entries []taskEntry) error {
	idx, err := fuzzyfinder.Find(
		entries,
		func(i int) string {
			if entries[i].desc == "" {
				return entries[i].name
			}
			return entries[i].name + "  " + entries[i].desc
		},
		fuzzyfinder.WithPromptString("Select task: "),
	)
	if err != nil {
		return err
	}
	fmt.Println(compiler.BashName(entries[idx].name))
	return nil
}

func init() {
	listCmd.Flags().BoolVar(&flagListAll, "all", false,
		"include tasks of nested modules")
	listCmd.Flags().BoolVar(&flagListPick, "pick", false,
		"select a task interactively and print its name")
}
