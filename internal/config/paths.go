// ABOUTME: Standard filesystem paths for arcanum configuration and data
// ABOUTME: Resolves ~/.arcanum/ for global and .arcanum/ for project-local paths

package config

import (
	"os"
	"path/filepath"
)

const dirName = ".arcanum"

// GlobalDir returns the user-global config directory (~/.arcanum/).
func GlobalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", dirName)
	}
	return filepath.Join(home, dirName)
}

// ProjectDir returns the project-local config directory (.arcanum/ under projectRoot).
func ProjectDir(projectRoot string) string {
	return filepath.Join(projectRoot, dirName)
}

// GlobalConfigFile returns the path to the global settings file.
func GlobalConfigFile() string {
	return filepath.Join(GlobalDir(), "config.json")
}

// ProjectConfigFile returns the path to the project-local settings file.
func ProjectConfigFile(projectRoot string) string {
	return filepath.Join(ProjectDir(projectRoot), "config.json")
}

// StoreFile returns the path to the persistent store.
func StoreFile() string {
	return filepath.Join(GlobalDir(), "store.json")
}

// PromptsDirs returns the prompt template directories, project-local first.
func PromptsDirs(projectRoot string) []string {
	return []string{
		filepath.Join(ProjectDir(projectRoot), "prompts"),
		filepath.Join(GlobalDir(), "prompts"),
	}
}

// EnsureDir creates a directory and its parents with owner-only permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o700)
}
