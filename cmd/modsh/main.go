package main

import (
	"os"

	"github.com/charmbracelet/log"

	"modsh/pkg/lib"
)

var (
	flagRegistryDirs []string
	flagFeatures     []string
	flagVerbose      bool
)

func main() {
	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(initCmd)

	rootCmd.PersistentFlags().StringArrayVar(&flagRegistryDirs, "registry-dir", nil,
		"additional registry directory to scan for module aliases (repeatable)")
	rootCmd.PersistentFlags().StringArrayVar(&flagFeatures, "feature", nil,
		"enable a feature flag (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"enable debug logging")

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		lib.Exit(err)
	}
}

// logger returns the process logger, honoring --verbose.
func logger() *log.Logger {
	l := log.New(os.Stderr)
	if flagVerbose {
		l.SetLevel(log.DebugLevel)
	}
	return l
}
