// ABOUTME: Resolves the endpoint, API key and model for a run from every configuration layer
// ABOUTME: Precedence: flags, active provider profile, settings, store, environment, defaults

package config

import (
	"os"
	"strings"

	"github.com/Shizuku-Yume/Arcanum/internal/store"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
)

// Source names the layer a resolved value came from.
type Source string

const (
	SourceFlag     Source = "flag"
	SourceProfile  Source = "profile"
	SourceSettings Source = "settings"
	SourceStore    Source = "store"
	SourceEnv      Source = "env"
	SourceDefault  Source = "default"
	SourceNone     Source = "unset"
)

// apiKeyEnvVars are consulted in order when no other layer has a key.
var apiKeyEnvVars = []string{"ARCANUM_API_KEY", "OPENAI_API_KEY"}

// Flags are the per-invocation overrides from the command line.
type Flags struct {
	Endpoint string
	Model    string
	APIKey   string
}

// ProviderStore is the part of the persistent store the resolver reads.
type ProviderStore interface {
	ActiveProvider() (store.ProviderConfig, bool)
	APIEndpoint() string
	APIKey() string
	ModelID() string
}

// Provider is the resolved connection for a run.
type Provider struct {
	Endpoint string
	Model    string
	APIKey   string

	// Sources records where each field came from, keyed by field name.
	Sources map[string]Source
}

// ResolveProvider picks endpoint, API key and model by precedence. settings
// and st may be nil.
func ResolveProvider(flags Flags, settings *Settings, st ProviderStore) *Provider {
	if settings == nil {
		settings = &Settings{}
	}

	var profile store.ProviderConfig
	if st != nil {
		profile, _ = st.ActiveProvider()
	}

	type layer struct {
		source Source
		value  func() string
	}
	storeValue := func(get func(ProviderStore) string) func() string {
		return func() string {
			if st == nil {
				return ""
			}
			return get(st)
		}
	}
	pick := func(layers ...layer) (string, Source) {
		for _, l := range layers {
			if v := strings.TrimSpace(l.value()); v != "" {
				return v, l.source
			}
		}
		return "", SourceNone
	}

	p := &Provider{Sources: make(map[string]Source, 3)}

	p.Endpoint, p.Sources["endpoint"] = pick(
		layer{SourceFlag, func() string { return flags.Endpoint }},
		layer{SourceProfile, func() string { return profile.Endpoint }},
		layer{SourceSettings, func() string { return settings.Endpoint }},
		layer{SourceStore, storeValue(ProviderStore.APIEndpoint)},
		layer{SourceDefault, func() string { return imagegen.DefaultEndpoint }},
	)

	p.Model, p.Sources["model"] = pick(
		layer{SourceFlag, func() string { return flags.Model }},
		layer{SourceProfile, func() string { return profile.ModelID }},
		layer{SourceSettings, func() string { return settings.Model }},
		layer{SourceStore, storeValue(ProviderStore.ModelID)},
		layer{SourceDefault, func() string { return imagegen.DefaultModelID }},
	)

	keyLayers := []layer{
		{SourceFlag, func() string { return flags.APIKey }},
		{SourceProfile, func() string { return profile.APIKey }},
		{SourceSettings, func() string { return settings.APIKey }},
		{SourceStore, storeValue(ProviderStore.APIKey)},
	}
	for _, name := range apiKeyEnvVars {
		keyLayers = append(keyLayers, layer{SourceEnv, func() string { return os.Getenv(name) }})
	}
	p.APIKey, p.Sources["api_key"] = pick(keyLayers...)

	return p
}
