package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"modsh/cmd/modsh/compiler"
)

var (
	flagOutput string
	flagVerify bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <module.yml>",
	Short: "Compile a module into a bash script",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompile(args[0])
	},
}

func runCompile(path string) error {
	c := compiler.New(
		compiler.WithFeatures(flagFeatures),
		compiler.WithRegistryDirs(resolveRegistryDirs(flagRegistryDirs)),
		compiler.WithLogger(logger()),
	)
	res, err := c.Compile(path)
	if err != nil {
		return err
	}
	if flagVerify {
		if err := compiler.Verify(res.Script); err != nil {
			return err
		}
	}
	if flagOutput == "" || flagOutput == "-" {
		_, err := os.Stdout.WriteString(res.Script)
		return err
	}
	if err := os.WriteFile(flagOutput, []byte(res.Script), 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", flagOutput, err)
	}
	logger().Info("wrote script", "path", flagOutput, "tasks", res.Tasks)
	return nil
}

func init() {
	compileCmd.Flags().StringVarP(&flagOutput, "output", "o", "",
		"output file (default: stdout)")
	compileCmd.Flags().BoolVar(&flagVerify, "verify", false,
		"parse the generated script as bash before writing it")
}
