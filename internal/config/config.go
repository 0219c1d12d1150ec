// ABOUTME: Settings loading with global + project config merge and validation
// ABOUTME: JSON files at ~/.arcanum/config.json and .arcanum/config.json

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Settings holds the merged configuration.
type Settings struct {
	Endpoint     string            `json:"endpoint,omitempty" validate:"omitempty,url"`
	Model        string            `json:"model,omitempty"`
	APIKey       string            `json:"api_key,omitempty"`
	OutputDir    string            `json:"output_dir,omitempty"`
	AspectRatio  string            `json:"aspect_ratio,omitempty" validate:"omitempty,aspect_ratio"`
	ImageSize    string            `json:"image_size,omitempty" validate:"omitempty,oneof=1K 2K 4K"`
	GoogleSearch bool              `json:"google_search,omitempty"`
	Theme        string            `json:"theme,omitempty" validate:"omitempty,oneof=light dark system"`
	Verbose      bool              `json:"verbose,omitempty"`
	Env          map[string]string `json:"env,omitempty"`
}

var aspectRatioRe = regexp.MustCompile(`^\d+:\d+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("aspect_ratio", func(fl validator.FieldLevel) bool {
		return aspectRatioRe.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks field formats. Unknown themes, sizes and ratios are rejected.
func (s *Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Load reads, merges and validates global and project-local settings.
// Project settings override global settings. ${VAR} references are expanded.
func Load(projectRoot string) (*Settings, error) {
	return loadPaths(GlobalConfigFile(), ProjectConfigFile(projectRoot))
}

func loadPaths(globalPath, projectPath string) (*Settings, error) {
	global, err := loadFile(globalPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading global config: %w", err)
	}

	project, err := loadFile(projectPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	merged := merge(global, project)
	ResolveEnvVars(merged)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// loadFile reads Settings from a JSON file. A missing file yields empty
// Settings together with the not-exist error.
func loadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &Settings{}, err
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &s, nil
}

// merge overlays non-zero project values onto global values.
func merge(global, project *Settings) *Settings {
	if global == nil {
		global = &Settings{}
	}
	if project == nil {
		return global
	}

	result := *global

	overlay := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	overlay(&result.Endpoint, project.Endpoint)
	overlay(&result.Model, project.Model)
	overlay(&result.APIKey, project.APIKey)
	overlay(&result.OutputDir, project.OutputDir)
	overlay(&result.AspectRatio, project.AspectRatio)
	overlay(&result.ImageSize, project.ImageSize)
	overlay(&result.Theme, project.Theme)
	if project.GoogleSearch {
		result.GoogleSearch = true
	}
	if project.Verbose {
		result.Verbose = true
	}

	if len(global.Env) > 0 || len(project.Env) > 0 {
		result.Env = make(map[string]string, len(global.Env)+len(project.Env))
		for k, v := range global.Env {
			result.Env[k] = v
		}
		for k, v := range project.Env {
			result.Env[k] = v
		}
	}

	return &result
}
