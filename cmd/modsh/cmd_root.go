package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Compile task modules into standalone shell scripts",
	Long: "Compile task modules into standalone shell scripts.\n\n" +
		"A module is a YAML file declaring variables, tasks and nested modules.\n" +
		"Modules can inherit from other modules via `uses`, referenced by path or\n" +
		"by a registry alias. The compiled script carries one function per task\n" +
		"and a dispatcher, and runs anywhere bash does.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			// `modsh file.yml` is shorthand for `modsh compile file.yml`.
			return runCompile(args[0])
		}
		return cmd.Help()
	},
	Args: cobra.MaximumNArgs(1),
}
