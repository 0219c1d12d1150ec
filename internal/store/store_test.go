// ABOUTME: Tests for the store: defaults, round trips, cache key normalization, fail-soft reads
// ABOUTME: Runs against both the memory and the file backend

package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
)

func newStores(t *testing.T) map[string]*Store {
	t.Helper()
	return map[string]*Store{
		"memory": NewMemory(),
		"file":   NewFile(filepath.Join(t.TempDir(), "nested", "store.json")),
	}
}

func TestStoreDefaults(t *testing.T) {
	t.Parallel()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if s.APIKey() != "" || s.APIEndpoint() != "" || s.ModelID() != "" {
				t.Error("string values must default to empty")
			}
			if s.Theme() != DefaultTheme {
				t.Errorf("Theme() = %q, want %q", s.Theme(), DefaultTheme)
			}
			if s.GenerationParams() != nil {
				t.Error("GenerationParams() must be nil when unset")
			}
			if s.GoogleSearchEnabled() {
				t.Error("GoogleSearchEnabled() must default to false")
			}
			if s.CustomPrompts() != nil || s.APIConfigs() != nil || s.ModelCache("https://x") != nil {
				t.Error("collections must default to nil")
			}
			if _, ok := s.ActiveProvider(); ok {
				t.Error("ActiveProvider() must report false when unset")
			}
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s.SetAPIKey("sk-1")
			s.SetAPIEndpoint("https://openrouter.ai/api/v1")
			s.SetModelID("google/gemini-2.5-flash-image-preview")
			s.SetTheme("dark")
			s.SetGoogleSearchEnabled(true)
			s.SetGenerationParams(GenerationParams{AspectRatios: []string{"1:1", "16:9"}, Resolution: "2K", Count: 2})
			prompts := []StyleTemplate{{ID: "ink", Name: "Ink wash", Prompt: "{prompt}, ink wash painting"}}
			s.SetCustomPrompts(prompts)

			if s.APIKey() != "sk-1" || s.APIEndpoint() != "https://openrouter.ai/api/v1" {
				t.Errorf("got key %q endpoint %q", s.APIKey(), s.APIEndpoint())
			}
			if s.ModelID() != "google/gemini-2.5-flash-image-preview" {
				t.Errorf("ModelID() = %q", s.ModelID())
			}
			if s.Theme() != "dark" || !s.GoogleSearchEnabled() {
				t.Errorf("Theme() = %q, GoogleSearchEnabled() = %v", s.Theme(), s.GoogleSearchEnabled())
			}
			want := &GenerationParams{AspectRatios: []string{"1:1", "16:9"}, Resolution: "2K", Count: 2}
			if got := s.GenerationParams(); !reflect.DeepEqual(got, want) {
				t.Errorf("GenerationParams() = %+v, want %+v", got, want)
			}
			if got := s.CustomPrompts(); !reflect.DeepEqual(got, prompts) {
				t.Errorf("CustomPrompts() = %+v", got)
			}

			s.ClearAPIKey()
			s.ClearAPIEndpoint()
			s.ClearModelID()
			if s.APIKey() != "" || s.APIEndpoint() != "" || s.ModelID() != "" {
				t.Error("clear did not remove values")
			}
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://API.example.com/v1/", "https://api.example.com/v1"},
		{"  https://api.example.com/v1  ", "https://api.example.com/v1"},
		{"https://api.example.com/v1//", "https://api.example.com/v1/"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeEndpoint(tt.in); got != tt.want {
			t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModelCache(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	a := []imagegen.ModelOption{{ID: "m1", Label: "Model One"}}
	b := []imagegen.ModelOption{{ID: "m2", Label: "m2"}}

	s.SetModelCache("https://A.example.com/v1/", a)
	s.SetModelCache("https://b.example.com", b)

	if got := s.ModelCache(" https://a.example.com/v1"); !reflect.DeepEqual(got, a) {
		t.Errorf("cache for a = %+v, want %+v", got, a)
	}

	s.ClearModelCache("HTTPS://A.EXAMPLE.COM/V1")
	if s.ModelCache("https://a.example.com/v1") != nil {
		t.Error("selective clear left the entry")
	}
	if got := s.ModelCache("https://b.example.com/"); !reflect.DeepEqual(got, b) {
		t.Errorf("selective clear removed another entry: %+v", got)
	}

	s.ClearModelCache("")
	if s.ModelCache("https://b.example.com") != nil {
		t.Error("full clear left entries")
	}
}

func TestModelCacheCorruptIsRebuilt(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	_ = backend.Set(keyModelCache, "[not an object")
	s := New(backend)

	if s.ModelCache("https://x") != nil {
		t.Error("corrupt cache must read as empty")
	}
	opts := []imagegen.ModelOption{{ID: "m", Label: "m"}}
	s.SetModelCache("https://x", opts)
	if got := s.ModelCache("https://x"); !reflect.DeepEqual(got, opts) {
		t.Errorf("rebuilt cache = %+v", got)
	}
}

func TestModelCacheConcurrentWrites(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	endpoints := []string{"https://a", "https://b", "https://c", "https://d"}

	var wg sync.WaitGroup
	for _, e := range endpoints {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.SetModelCache(e, []imagegen.ModelOption{{ID: e, Label: e}})
		}()
	}
	wg.Wait()

	for _, e := range endpoints {
		if len(s.ModelCache(e)) != 1 {
			t.Errorf("lost cache entry for %s", e)
		}
	}
}

func TestActiveProvider(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	s.SetAPIConfigs([]ProviderConfig{
		{ID: "p1", Name: "OpenRouter", Endpoint: "https://openrouter.ai/api/v1", APIKey: "k1"},
		{ID: "p2", Name: "Proxy", Endpoint: "https://proxy.local/v1", APIKey: "k2", ModelID: "m"},
	})

	s.SetActiveProviderID("p2")
	got, ok := s.ActiveProvider()
	if !ok || got.Name != "Proxy" || got.ModelID != "m" {
		t.Errorf("ActiveProvider() = %+v, %v", got, ok)
	}

	s.SetActiveProviderID("gone")
	if _, ok := s.ActiveProvider(); ok {
		t.Error("unknown active id must report false")
	}
}

func TestUndecodableValuesFallBack(t *testing.T) {
	t.Parallel()

	backend := NewMemoryBackend()
	_ = backend.Set(keyGoogleSearch, "maybe")
	_ = backend.Set(keyGenerationParams, "{")
	_ = backend.Set(keyCustomPrompts, `{"id":"not a list"}`)
	s := New(backend)

	if s.GoogleSearchEnabled() {
		t.Error("GoogleSearchEnabled() must fall back to false")
	}
	if s.GenerationParams() != nil {
		t.Error("GenerationParams() must fall back to nil")
	}
	if s.CustomPrompts() != nil {
		t.Error("CustomPrompts() must fall back to nil")
	}
}

type failingBackend struct{}

var errBackend = errors.New("disk on fire")

func (failingBackend) Get(string) (string, bool, error) { return "", false, errBackend }
func (failingBackend) Set(string, string) error         { return errBackend }
func (failingBackend) Remove(string) error              { return errBackend }

func TestFailingBackendIsSoft(t *testing.T) {
	t.Parallel()

	s := New(failingBackend{})
	s.SetAPIKey("k")
	s.ClearModelCache("")
	s.SetModelCache("https://x", nil)

	if s.APIKey() != "" {
		t.Error("APIKey() must fall back to empty")
	}
	if s.Theme() != DefaultTheme {
		t.Error("Theme() must fall back to the default")
	}
}

func TestFileBackendPermissions(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "arcanum")
	path := filepath.Join(dir, "store.json")
	s := NewFile(path)
	s.SetAPIKey("secret")

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat store file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("store file mode = %o, want 600", perm)
	}
	dirInfo, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat store dir: %v", err)
	}
	if perm := dirInfo.Mode().Perm(); perm != 0o700 {
		t.Errorf("store dir mode = %o, want 700", perm)
	}

	// A second store over the same file sees the write.
	if got := NewFile(path).APIKey(); got != "secret" {
		t.Errorf("reopened APIKey() = %q", got)
	}
}

func TestFileBackendCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{garbage"), 0o600); err != nil {
		t.Fatal(err)
	}

	b := NewFileBackend(path)
	if _, _, err := b.Get("api-key"); err == nil {
		t.Error("expected parse error from corrupt file")
	}
	if got := New(b).Theme(); got != DefaultTheme {
		t.Errorf("Theme() = %q, want default", got)
	}
}
