// ABOUTME: Endpoint resolution: maps any user-supplied base URL to the chat or models URL
// ABOUTME: Pure path-segment rules; unparsable input falls back to a fixed /v1 suffix

package httputil

import (
	"fmt"
	"net/url"
	"strings"

	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
)

const (
	chatSuffix   = "/v1/chat/completions"
	modelsSuffix = "/v1/models"
)

// EndpointResolutionError reports a base URL that could not be parsed.
// It never reaches callers: resolution falls back to a suffix rule.
type EndpointResolutionError struct {
	Endpoint string
	Err      error
}

func (e *EndpointResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve endpoint %q: %v", e.Endpoint, e.Err)
}

func (e *EndpointResolutionError) Unwrap() error { return e.Err }

// ResolveChatEndpoint returns the chat-completions URL for a base URL.
func ResolveChatEndpoint(endpoint string) string {
	resolved, err := resolve(endpoint, chatSuffix, chatSegments)
	if err != nil {
		pilog.Warn("endpoint: %v; using default rule", err)
	}
	return resolved
}

// ResolveModelsEndpoint returns the model-listing URL for a base URL.
func ResolveModelsEndpoint(endpoint string) string {
	resolved, err := resolve(endpoint, modelsSuffix, modelsSegments)
	if err != nil {
		pilog.Warn("endpoint: %v; using default rule", err)
	}
	return resolved
}

// resolve applies rewrite to the path segments of endpoint. On parse failure
// it returns the fallback URL together with an *EndpointResolutionError.
func resolve(endpoint, suffix string, rewrite func([]string) ([]string, bool)) (string, error) {
	u, err := parseAbsolute(endpoint)
	if err != nil {
		return strings.TrimSuffix(endpoint, "/") + suffix, &EndpointResolutionError{Endpoint: endpoint, Err: err}
	}

	segments := splitSegments(u.EscapedPath())
	if len(segments) == 0 {
		setPath(u, strings.Split(strings.TrimPrefix(suffix, "/"), "/"))
		return u.String(), nil
	}

	rewritten, changed := rewrite(segments)
	if !changed {
		return u.String(), nil
	}
	setPath(u, rewritten)
	return u.String(), nil
}

// chatSegments rewrites a non-empty path to end in chat/completions.
func chatSegments(segments []string) ([]string, bool) {
	switch segments[len(segments)-1] {
	case "completions":
		return segments, false
	case "chat":
		return append(segments, "completions"), true
	case "models":
		return append(segments[:len(segments)-1], "chat", "completions"), true
	default: // "v1", "api" and anything else
		return append(segments, "chat", "completions"), true
	}
}

// modelsSegments rewrites a non-empty path to end in models.
func modelsSegments(segments []string) ([]string, bool) {
	switch segments[len(segments)-1] {
	case "models":
		return segments, false
	case "completions", "complete", "generate":
		segments = segments[:len(segments)-1]
		if n := len(segments); n > 0 && segments[n-1] == "chat" {
			segments[n-1] = "models"
			return segments, true
		}
		return append(segments, "models"), true
	default: // "v1", "api" and anything else
		return append(segments, "models"), true
	}
}

// parseAbsolute parses endpoint and requires a scheme and a host.
func parseAbsolute(endpoint string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("not an absolute URL")
	}
	return u, nil
}

func splitSegments(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// setPath writes escaped segments back, keeping encoded slashes inside a
// segment.
func setPath(u *url.URL, segments []string) {
	raw := "/" + strings.Join(segments, "/")
	path, err := url.PathUnescape(raw)
	if err != nil {
		u.Path, u.RawPath = raw, ""
		return
	}
	u.Path, u.RawPath = path, raw
}
