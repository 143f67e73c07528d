// Package config maps viper settings onto the pipeline, model client,
// storage and stream configurations.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves a leading ~ to the home directory and expands $VAR and
// ${VAR} references. Paths from config files and flags go through it before
// they reach the filesystem. An unresolvable home directory leaves ~ as is.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}

	path = os.ExpandEnv(path)

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	return path
}
