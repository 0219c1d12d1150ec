// ABOUTME: Fail-soft persistence of credentials, endpoint, model, caches and user preferences
// ABOUTME: Every read returns a documented default and every write only logs on failure

// Package store persists client state between runs. Operations never return
// errors: a failing backend is logged at warn level and reads fall back to
// their zero value (or the default named in their doc comment).
package store

import (
	"encoding/json"
	"strings"
	"sync"

	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
)

const (
	keyAPIKey           = "api-key"
	keyAPIEndpoint      = "api-endpoint"
	keyModelID          = "model-id"
	keyModelCache       = "model-cache"
	keyCustomPrompts    = "custom-prompts"
	keyAPIConfigs       = "api-configs"
	keyActiveProviderID = "active-provider-id"
	keyTheme            = "theme"
	keyGenerationParams = "generation-params"
	keyGoogleSearch     = "google-search"
)

// DefaultTheme is returned by Theme when nothing is stored.
const DefaultTheme = "system"

// StyleTemplate is a user-defined prompt template.
type StyleTemplate struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Prompt      string `json:"prompt"`
}

// ProviderConfig is one saved API provider profile.
type ProviderConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey"`
	ModelID  string `json:"modelId,omitempty"`
}

// GenerationParams are the last-used generation settings.
type GenerationParams struct {
	AspectRatios []string `json:"aspectRatios"`
	Resolution   string   `json:"resolution"`
	Count        int      `json:"count"`
}

// Store is the typed view over a Backend. It is safe for concurrent use.
type Store struct {
	backend Backend
	mu      sync.Mutex

	// cacheMu serializes read-modify-write of the model cache map.
	cacheMu sync.Mutex
}

// New returns a store over backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// NewFile returns a store persisting to the JSON file at path.
func NewFile(path string) *Store {
	return New(NewFileBackend(path))
}

// NewMemory returns a store that forgets everything on exit.
func NewMemory() *Store {
	return New(NewMemoryBackend())
}

func (s *Store) getString(key, fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok, err := s.backend.Get(key)
	if err != nil {
		pilog.Warn("store: reading %s: %v", key, err)
		return fallback
	}
	if !ok || v == "" {
		return fallback
	}
	return v
}

func (s *Store) setString(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Set(key, value); err != nil {
		pilog.Warn("store: saving %s: %v", key, err)
	}
}

func (s *Store) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Remove(key); err != nil {
		pilog.Warn("store: clearing %s: %v", key, err)
	}
}

// getJSON decodes the value under key into v and reports whether it did.
func (s *Store) getJSON(key string, v any) bool {
	raw := s.getString(key, "")
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		pilog.Warn("store: decoding %s: %v", key, err)
		return false
	}
	return true
}

func (s *Store) setJSON(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		pilog.Warn("store: encoding %s: %v", key, err)
		return
	}
	s.setString(key, string(data))
}

// APIKey returns the saved API key, or "".
func (s *Store) APIKey() string       { return s.getString(keyAPIKey, "") }
func (s *Store) SetAPIKey(key string) { s.setString(keyAPIKey, key) }
func (s *Store) ClearAPIKey()         { s.remove(keyAPIKey) }

// APIEndpoint returns the saved custom endpoint, or "".
func (s *Store) APIEndpoint() string            { return s.getString(keyAPIEndpoint, "") }
func (s *Store) SetAPIEndpoint(endpoint string) { s.setString(keyAPIEndpoint, endpoint) }
func (s *Store) ClearAPIEndpoint()              { s.remove(keyAPIEndpoint) }

// ModelID returns the saved model id, or "".
func (s *Store) ModelID() string      { return s.getString(keyModelID, "") }
func (s *Store) SetModelID(id string) { s.setString(keyModelID, id) }
func (s *Store) ClearModelID()        { s.remove(keyModelID) }

// NormalizeEndpoint is the model cache key for endpoint: trimmed, without
// one trailing slash, lower-cased.
func NormalizeEndpoint(endpoint string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(endpoint), "/"))
}

// modelCacheMap returns the whole cache. A corrupt value is treated as empty
// and is replaced on the next write.
func (s *Store) modelCacheMap() map[string][]imagegen.ModelOption {
	var cache map[string][]imagegen.ModelOption
	if !s.getJSON(keyModelCache, &cache) || cache == nil {
		return make(map[string][]imagegen.ModelOption)
	}
	return cache
}

// ModelCache returns the cached model options for endpoint, or nil.
func (s *Store) ModelCache(endpoint string) []imagegen.ModelOption {
	return s.modelCacheMap()[NormalizeEndpoint(endpoint)]
}

// SetModelCache replaces the cached model options for endpoint.
func (s *Store) SetModelCache(endpoint string, models []imagegen.ModelOption) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	cache := s.modelCacheMap()
	cache[NormalizeEndpoint(endpoint)] = models
	s.setJSON(keyModelCache, cache)
}

// ClearModelCache drops the cache for endpoint, or the whole cache when
// endpoint is blank.
func (s *Store) ClearModelCache(endpoint string) {
	if strings.TrimSpace(endpoint) == "" {
		s.remove(keyModelCache)
		return
	}
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	cache := s.modelCacheMap()
	key := NormalizeEndpoint(endpoint)
	if _, ok := cache[key]; !ok {
		return
	}
	delete(cache, key)
	s.setJSON(keyModelCache, cache)
}

// CustomPrompts returns the saved prompt templates, or nil.
func (s *Store) CustomPrompts() []StyleTemplate {
	var prompts []StyleTemplate
	s.getJSON(keyCustomPrompts, &prompts)
	return prompts
}

func (s *Store) SetCustomPrompts(prompts []StyleTemplate) { s.setJSON(keyCustomPrompts, prompts) }

// APIConfigs returns the saved provider profiles, or nil.
func (s *Store) APIConfigs() []ProviderConfig {
	var configs []ProviderConfig
	s.getJSON(keyAPIConfigs, &configs)
	return configs
}

func (s *Store) SetAPIConfigs(configs []ProviderConfig) { s.setJSON(keyAPIConfigs, configs) }

// ActiveProviderID returns the id of the selected provider profile, or "".
func (s *Store) ActiveProviderID() string      { return s.getString(keyActiveProviderID, "") }
func (s *Store) SetActiveProviderID(id string) { s.setString(keyActiveProviderID, id) }

// ActiveProvider returns the profile named by ActiveProviderID.
func (s *Store) ActiveProvider() (ProviderConfig, bool) {
	id := s.ActiveProviderID()
	if id == "" {
		return ProviderConfig{}, false
	}
	for _, c := range s.APIConfigs() {
		if c.ID == id {
			return c, true
		}
	}
	return ProviderConfig{}, false
}

// Theme returns the saved theme, or DefaultTheme.
func (s *Store) Theme() string         { return s.getString(keyTheme, DefaultTheme) }
func (s *Store) SetTheme(theme string) { s.setString(keyTheme, theme) }

// GenerationParams returns the last-used generation settings, or nil when
// none were saved.
func (s *Store) GenerationParams() *GenerationParams {
	var params GenerationParams
	if !s.getJSON(keyGenerationParams, &params) {
		return nil
	}
	return &params
}

func (s *Store) SetGenerationParams(params GenerationParams) { s.setJSON(keyGenerationParams, params) }

// GoogleSearchEnabled returns the saved search-grounding toggle, default false.
func (s *Store) GoogleSearchEnabled() bool {
	var enabled bool
	s.getJSON(keyGoogleSearch, &enabled)
	return enabled
}

func (s *Store) SetGoogleSearchEnabled(enabled bool) { s.setJSON(keyGoogleSearch, enabled) }
