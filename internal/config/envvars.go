// ABOUTME: Environment variable expansion in settings and export of the settings env block
// ABOUTME: Replaces ${VAR} patterns with os.Getenv values; unset vars become empty

package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
)

var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// ResolveEnvVars expands ${VAR} patterns in the string fields of Settings.
func ResolveEnvVars(s *Settings) {
	for _, field := range []*string{&s.Endpoint, &s.Model, &s.APIKey, &s.OutputDir} {
		*field = expandEnv(*field)
	}
	for k, v := range s.Env {
		s.Env[k] = expandEnv(v)
	}
}

// expandEnv replaces ${VAR} with os.Getenv(VAR). Unset vars become "".
func expandEnv(s string) string {
	if s == "" {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// ApplyEnv exports the settings env block into the process environment so
// that, for example, HTTPS_PROXY reaches the HTTP transport. Variables that
// are already set are left alone.
func ApplyEnv(s *Settings) error {
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, set := os.LookupEnv(k); set {
			continue
		}
		if err := os.Setenv(k, s.Env[k]); err != nil {
			return fmt.Errorf("setting %s: %w", k, err)
		}
	}
	return nil
}
