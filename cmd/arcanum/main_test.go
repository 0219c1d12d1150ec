// ABOUTME: End-to-end tests of the CLI against an httptest OpenAI-compatible server
// ABOUTME: HOME points at a temp dir so the store and settings are isolated

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/Shizuku-Yume/Arcanum/internal/config"
	"github.com/Shizuku-Yume/Arcanum/internal/media"
	"github.com/Shizuku-Yume/Arcanum/internal/store"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
)

// isolate points HOME at a temp dir and clears API key env vars.
// Tests using it must not run in parallel.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ARCANUM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	return home
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatal(err)
	}
	return media.EncodeDataURI("image/png", buf.Bytes())
}

type fakeAPI struct {
	srv      *httptest.Server
	chats    atomic.Int32
	lists    atomic.Int32
	lastBody atomic.Value // string
}

// newFakeAPI serves chat completions answering with reply, and a model list.
func newFakeAPI(t *testing.T, reply map[string]any) *fakeAPI {
	t.Helper()
	f := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.chats.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.lastBody.Store(string(body))
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"bad key"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{map[string]any{"message": reply}}})
	})
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		f.lists.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"id":"google/gemini-2.5-flash-image-preview","name":"Nano Banana"},{"id":"black-forest-labs/flux-1"}]}`))
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) endpoint() string { return f.srv.URL + "/v1" }

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(""), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_Version(t *testing.T) {
	out, _, err := runCLI(t, "version")
	if err != nil || !strings.HasPrefix(out, "arcanum dev") {
		t.Errorf("version = %q, %v", out, err)
	}
}

func TestGenerate_PrintsReferences(t *testing.T) {
	isolate(t)
	uri := pngDataURI(t)
	api := newFakeAPI(t, map[string]any{
		"content": "",
		"images":  []any{map[string]any{"type": "image_url", "image_url": map[string]any{"url": uri}}},
	})

	out, _, err := runCLI(t, "-endpoint", api.endpoint(), "-key", "sk-test", "-aspect", "16:9", "a", "red", "fox")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != uri {
		t.Errorf("stdout = %q, want the data URI", out)
	}

	body := api.lastBody.Load().(string)
	for _, want := range []string{`"content":"a red fox"`, `"aspect_ratio":"16:9"`} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %s: %s", want, body)
		}
	}

	// The aspect ratio is remembered for the next run.
	if _, _, err := runCLI(t, "-endpoint", api.endpoint(), "-key", "sk-test", "again"); err != nil {
		t.Fatal(err)
	}
	if body := api.lastBody.Load().(string); !strings.Contains(body, `"aspect_ratio":"16:9"`) {
		t.Errorf("stored aspect ratio not reused: %s", body)
	}
}

func TestGenerate_ImageSizeNormalizedFromEverySource(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t, map[string]any{"content": "![img](" + pngDataURI(t) + ")"})
	base := []string{"-endpoint", api.endpoint(), "-key", "sk-test", "-model", "google/gemini-3-pro-image-preview"}

	store.NewFile(config.StoreFile()).SetGenerationParams(store.GenerationParams{AspectRatios: []string{"1:1"}, Resolution: "2k"})
	if _, _, err := runCLI(t, append(base, "a moth")...); err != nil {
		t.Fatal(err)
	}
	if body := api.lastBody.Load().(string); !strings.Contains(body, `"image_size":"2K"`) {
		t.Errorf("stored size not normalized: %s", body)
	}

	if _, _, err := runCLI(t, append(base, "-size", "4k", "a moth")...); err != nil {
		t.Fatal(err)
	}
	if body := api.lastBody.Load().(string); !strings.Contains(body, `"image_size":"4K"`) {
		t.Errorf("flag size not normalized: %s", body)
	}
}

func TestGenerate_SavesConcurrentResults(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t, map[string]any{"content": "![img](" + pngDataURI(t) + ")"})
	dir := filepath.Join(t.TempDir(), "out")

	out, _, err := runCLI(t, "generate", "-endpoint", api.endpoint(), "-key", "sk-test", "-n", "3", "-o", dir, "a lighthouse")
	if err != nil {
		t.Fatal(err)
	}
	if got := api.chats.Load(); got != 3 {
		t.Errorf("chat calls = %d, want 3", got)
	}
	paths := strings.Fields(out)
	if len(paths) != 3 {
		t.Fatalf("printed %d paths, want 3: %q", len(paths), out)
	}
	for _, p := range paths {
		if filepath.Dir(p) != dir || filepath.Ext(p) != ".png" {
			t.Errorf("unexpected path %q", p)
		}
		if _, err := os.Stat(p); err != nil {
			t.Errorf("saved file missing: %v", err)
		}
	}
}

func TestGenerate_TextReplyIsRendered(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t, map[string]any{"content": "I cannot draw that, but here is a **description**."})

	out, stderr, err := runCLI(t, "-endpoint", api.endpoint(), "-key", "sk-test", "something")
	if !errors.Is(err, errReported) {
		t.Fatalf("err = %v, want errReported", err)
	}
	if !strings.Contains(out, "description") || !strings.Contains(stderr, "text instead of an image") {
		t.Errorf("stdout %q stderr %q", out, stderr)
	}
}

func TestGenerate_Style(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t, map[string]any{"content": pngDataURI(t)})

	if _, _, err := runCLI(t, "-endpoint", api.endpoint(), "-key", "sk-test", "-style", "watercolor", "a heron"); err != nil {
		t.Fatal(err)
	}
	if body := api.lastBody.Load().(string); !strings.Contains(body, "a heron, watercolor painting") {
		t.Errorf("style not applied: %s", body)
	}

	if _, _, err := runCLI(t, "-key", "sk-test", "-style", "zzzzqqq", "a heron"); err == nil || !strings.Contains(err.Error(), "unknown style") {
		t.Errorf("err = %v, want unknown style", err)
	}
}

func TestGenerate_Errors(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t, map[string]any{"content": ""})

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no key", []string{"-endpoint", api.endpoint(), "a cat"}, "no API key"},
		{"no prompt", []string{"-endpoint", api.endpoint(), "-key", "sk-test"}, "no prompt"},
		{"bad key hint", []string{"-endpoint", api.endpoint(), "-key", "wrong", "a cat"}, "check the API key"},
		{"missing input image", []string{"-key", "sk-test", "-image", "/nonexistent/in.png", "edit"}, "reading input image"},
		{"no image in reply", []string{"-endpoint", api.endpoint(), "-key", "sk-test", "a cat"}, "no image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestGenerate_UsesStoredKeyAndProvider(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t, map[string]any{"content": pngDataURI(t)})

	if _, _, err := runCLI(t, "config", "provider", "add", "-id", "local", "-endpoint", api.endpoint(), "-key", "sk-test", "-model", "my/image-model", "-use"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, "a dog"); err != nil {
		t.Fatal(err)
	}
	if body := api.lastBody.Load().(string); !strings.Contains(body, `"model":"my/image-model"`) {
		t.Errorf("profile model not used: %s", body)
	}
}

func TestModels_TableAndCache(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t, nil)

	out, _, err := runCLI(t, "models", "-endpoint", api.endpoint(), "-key", "sk-test")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"ID", "google/gemini-2.5-flash-image-preview", "Nano Banana", "black-forest-labs/flux-1", "image+text"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	out, _, err = runCLI(t, "models", "-endpoint", api.endpoint()+"/", "-filter", "flux")
	if err != nil {
		t.Fatal(err)
	}
	if api.lists.Load() != 1 {
		t.Errorf("list calls = %d, want 1 (cached)", api.lists.Load())
	}
	if !strings.Contains(out, "flux-1") || strings.Contains(out, "gemini") {
		t.Errorf("filtered table:\n%s", out)
	}

	if _, _, err := runCLI(t, "models", "-endpoint", api.endpoint(), "-key", "sk-test", "-refresh"); err != nil {
		t.Fatal(err)
	}
	if api.lists.Load() != 2 {
		t.Errorf("list calls = %d, want 2 after -refresh", api.lists.Load())
	}
}

func TestFilterModels(t *testing.T) {
	t.Parallel()

	opts := imagegen.Options([]imagegen.Model{{ID: "openai/gpt-image-1"}, {ID: "google/gemini-3-pro-image", Name: "Nano Banana Pro"}})
	if got := filterModels(opts, ""); len(got) != 2 {
		t.Errorf("empty filter kept %d", len(got))
	}
	got := filterModels(opts, "banana")
	if len(got) != 1 || got[0].ID != "google/gemini-3-pro-image" {
		t.Errorf("filterModels(banana) = %+v", got)
	}
}

func TestConfig_GetSetClear(t *testing.T) {
	isolate(t)

	steps := []struct {
		args    []string
		wantOut string
		wantErr bool
	}{
		{args: []string{"config", "set", "api-key", "sk-abcdef123456"}},
		{args: []string{"config", "get", "api-key"}, wantOut: "********3456"},
		{args: []string{"config", "set", "theme", "dark"}},
		{args: []string{"config", "get", "theme"}, wantOut: "dark"},
		{args: []string{"config", "set", "theme", "neon"}, wantErr: true},
		{args: []string{"config", "set", "google-search", "true"}},
		{args: []string{"config", "get", "google-search"}, wantOut: "true"},
		{args: []string{"config", "set", "google-search", "maybe"}, wantErr: true},
		{args: []string{"config", "clear", "api-key"}},
		{args: []string{"config", "get", "api-key"}, wantOut: ""},
		{args: []string{"config", "clear", "theme"}},
		{args: []string{"config", "get", "theme"}, wantOut: "system"},
		{args: []string{"config", "get", "nope"}, wantErr: true},
		{args: []string{"config", "explain"}, wantOut: "=== Provider ==="},
	}
	for _, s := range steps {
		out, _, err := runCLI(t, s.args...)
		if (err != nil) != s.wantErr {
			t.Fatalf("%v: err = %v, wantErr %v", s.args, err, s.wantErr)
		}
		if s.wantOut != "" && !strings.Contains(out, s.wantOut) {
			t.Errorf("%v: out = %q, want %q", s.args, out, s.wantOut)
		}
		if s.wantOut == "" && !s.wantErr && s.args[1] == "get" && strings.TrimSpace(out) != "" {
			t.Errorf("%v: out = %q, want empty", s.args, out)
		}
	}
}

func TestConfig_Providers(t *testing.T) {
	isolate(t)

	if _, _, err := runCLI(t, "config", "provider", "add", "-id", "a", "-name", "Alpha", "-endpoint", "https://a.example/v1", "-key", "sk-aaaa1111"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, "config", "provider", "use", "a"); err != nil {
		t.Fatal(err)
	}
	out, _, _ := runCLI(t, "config", "provider", "list")
	if !strings.Contains(out, "*a") || !strings.Contains(out, "Alpha") || strings.Contains(out, "sk-aaaa1111") {
		t.Errorf("provider list:\n%s", out)
	}
	out, _, _ = runCLI(t, "config", "explain")
	if !strings.Contains(out, "https://a.example/v1 (profile)") {
		t.Errorf("explain does not show the profile endpoint:\n%s", out)
	}

	if _, _, err := runCLI(t, "config", "provider", "use", "missing"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, _, err := runCLI(t, "config", "provider", "remove", "a"); err != nil {
		t.Fatal(err)
	}
	if out, _, _ := runCLI(t, "config", "get", "active-provider"); strings.TrimSpace(out) != "" {
		t.Errorf("active provider not cleared: %q", out)
	}
}

func TestPrompts(t *testing.T) {
	isolate(t)

	if _, _, err := runCLI(t, "prompts", "add", "-name", "Blueprint", "blueprint", "{prompt}", "as", "a", "blueprint"); err != nil {
		t.Fatal(err)
	}
	out, _, err := runCLI(t, "prompts")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"blueprint", "store", "watercolor", "builtin"} {
		if !strings.Contains(out, want) {
			t.Errorf("prompts list missing %q:\n%s", want, out)
		}
	}

	out, _, err = runCLI(t, "prompts", "show", "blueprint")
	if err != nil || !strings.Contains(out, "{prompt} as a blueprint") {
		t.Errorf("show = %q, %v", out, err)
	}

	if _, _, err := runCLI(t, "prompts", "remove", "blueprint"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, "prompts", "remove", "blueprint"); err == nil {
		t.Error("expected error removing twice")
	}
	if _, _, err := runCLI(t, "prompts", "remove", "watercolor"); err == nil {
		t.Error("builtin templates cannot be removed")
	}
}

func TestParseGenerateFlags(t *testing.T) {
	t.Parallel()

	args, err := parseGenerateFlags([]string{"-image", "a.png", "-image", "https://x/b.jpg", "-n", "2", "two", "words"}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if len(args.images) != 2 || args.images[1] != "https://x/b.jpg" || args.n != 2 || args.prompt != "two words" {
		t.Errorf("parsed %+v", args)
	}
}
