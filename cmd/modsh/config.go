package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// appName is the single source of truth for the application name.
// Derived identifiers (env vars, config paths, messages) are computed from it.
const appName = "modsh"

var (
	envConfigDir    = strings.ToUpper(appName) + "_CONFIG_DIR"
	envRegistryDirs = strings.ToUpper(appName) + "_REGISTRY_DIRS"
)

// resolveConfigDir returns the base config directory for the application.
// Priority: $<APPNAME>_CONFIG_DIR > $XDG_CONFIG_HOME/<appName> > ~/.config/<appName>
func resolveConfigDir() (string, error) {
	if v := os.Getenv(envConfigDir); v != "" {
		return v, nil
	}
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// resolveRegistryDirs returns all directories searched for module aliases.
// Order: configDir/registry → $<APPNAME>_REGISTRY_DIRS → flagDirs
func resolveRegistryDirs(flagDirs []string) []string {
	var dirs []string
	if configDir, err := resolveConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(configDir, "registry"))
	}
	dirs = append(dirs, splitColon(os.Getenv(envRegistryDirs))...)
	dirs = append(dirs, flagDirs...)
	return dirs
}

// splitColon splits a colon-separated string, filtering empty parts.
func splitColon(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ":")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
