package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var (
	flagInitForce bool
	flagInitYes   bool
)

const initModuleTemplate = `# %s module
# Compile with: %s compile %s

vars:
  name: %s

tasks:
  build:
    desc: %s
    cmd: "echo build {{vars.name}}"

  test:
    desc: run the test suite
    cmd: "echo test {{vars.name}}"
`

var initCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Create a starter module file",
	Long: "Create a starter module file with example tasks.\n\n" +
		"Without --yes an interactive form asks for the project name and the\n" +
		"description of the first task.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := appName + ".yml"
		if len(args) == 1 {
			target = args[0]
		}

		name := filepath.Base(filepath.Dir(mustAbs(target)))
		desc := "build the project"
		if !flagInitYes {
			form := huh.NewForm(huh.NewGroup(
				huh.NewInput().
					Title("Project name").
					Value(&name),
				huh.NewInput().
					Title("What does the build task do?").
					Value(&desc),
			))
			if err := form.Run(); err != nil {
				return err
			}
		}

		if !flagInitForce {
			if _, err := os.Stat(target); err == nil {
				return fmt.Errorf("%s already exists (use --force to overwrite)", target)
			}
		}
		content := fmt.Sprintf(initModuleTemplate, name, appName, target, name, desc)
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
		fmt.Fprintf(os.Stderr, "created %s\n", target)
		fmt.Fprintf(os.Stderr, "Run `%s list %s` to see its tasks.\n", appName, target)
		return nil
	},
}

func mustAbs(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

func init() {
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "overwrite an existing file")
	initCmd.Flags().BoolVarP(&flagInitYes, "yes", "y", false, "skip the interactive form and use defaults")
}
