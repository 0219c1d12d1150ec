// ABOUTME: Core image generation types: GenerationRequest, Message, Result, Model
// ABOUTME: Shared by the orchestrator, the stream decoder and the image extractor

package imagegen

import (
	"bytes"
	"encoding/json"
)

// GenerationRequest describes one image generation call.
type GenerationRequest struct {
	Prompt             string   `json:"prompt"`
	Images             []string `json:"images,omitempty"` // Input image references, in order
	AspectRatio        string   `json:"aspect_ratio,omitempty"`
	ImageSize          string   `json:"image_size,omitempty"`
	EnableGoogleSearch bool     `json:"enable_google_search,omitempty"`
	Model              string   `json:"model,omitempty"`
	Endpoint           string   `json:"endpoint,omitempty"`
	APIKey             string   `json:"-" validate:"required"`
}

// ProgressFunc receives the cumulative number of response bytes received.
type ProgressFunc func(receivedBytes int64)

// ImageURL is the url holder of a provider image descriptor.
type ImageURL struct {
	URL string `json:"url"`
}

// ImageDescriptor is one entry of a message's images array.
type ImageDescriptor struct {
	Type     string    `json:"type,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// UnmarshalJSON tolerates descriptors of unexpected shape (strings, numbers)
// by leaving them empty rather than failing the whole message.
func (d *ImageDescriptor) UnmarshalJSON(data []byte) error {
	type plain ImageDescriptor
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		*d = ImageDescriptor{}
		return nil
	}
	*d = ImageDescriptor(p)
	return nil
}

// Message is the assistant message assembled from a response. Content is
// append-only across stream deltas; Images and every Extra key are
// last-write-wins.
type Message struct {
	Content string
	Images  []ImageDescriptor
	Extra   map[string]json.RawMessage
}

// SetExtra stores a raw JSON value under key, replacing any previous value.
func (m *Message) SetExtra(key string, value json.RawMessage) {
	if m.Extra == nil {
		m.Extra = make(map[string]json.RawMessage)
	}
	m.Extra[key] = append(json.RawMessage(nil), value...)
}

// UnmarshalJSON decodes a buffered-response message. A content value that is
// not a JSON string (null, an array of parts) leaves Content empty.
func (m *Message) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*m = Message{}
	for key, raw := range fields {
		switch key {
		case "content":
			var s string
			if json.Unmarshal(raw, &s) == nil {
				m.Content = s
			}
		case "images":
			var images []ImageDescriptor
			if json.Unmarshal(raw, &images) == nil {
				m.Images = images
			}
		default:
			m.SetExtra(key, raw)
		}
	}
	return nil
}

// MarshalJSON encodes the message as a flat object.
func (m Message) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(m.Extra)+2)
	for k, v := range m.Extra {
		out[k] = v
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return nil, err
	}
	out["content"] = content
	if m.Images != nil {
		images, err := json.Marshal(m.Images)
		if err != nil {
			return nil, err
		}
		out["images"] = images
	}
	return json.Marshal(out)
}

// Result is the outcome of a successful generation.
type Result struct {
	ImageURLs []string `json:"imageUrls"`

	// Degraded-but-usable details. A non-nil Interrupted means the stream
	// ended on a read failure and ImageURLs came from partial content.
	Interrupted     error `json:"-"`
	SkippedChunks   int   `json:"skipped_chunks,omitempty"`
	ModalityRetried bool  `json:"modality_retried,omitempty"`
}

// Degraded reports whether the result was recovered despite stream problems.
func (r *Result) Degraded() bool {
	return r.Interrupted != nil || r.SkippedChunks > 0
}

// Model is a model descriptor returned by the model-listing endpoint.
type Model struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
	Created int64  `json:"created,omitempty"`
}

// Label returns the display name, falling back to the ID.
func (m Model) Label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// ModelOption is the cached, display-ready form of a Model.
type ModelOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Options converts model descriptors to cacheable options.
func Options(models []Model) []ModelOption {
	opts := make([]ModelOption, len(models))
	for i, m := range models {
		opts[i] = ModelOption{ID: m.ID, Label: m.Label()}
	}
	return opts
}

// isJSONArray reports whether raw holds a JSON array.
func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// ModelList is the body of a model-listing response. Providers put the
// descriptors under either "data" or "models".
type ModelList struct {
	Data   json.RawMessage `json:"data"`
	Models json.RawMessage `json:"models"`
}

// Entries returns the descriptors from "data" when it is an array, else from
// "models" when that is an array, else nil.
func (l *ModelList) Entries() ([]Model, error) {
	var raw json.RawMessage
	switch {
	case isJSONArray(l.Data):
		raw = l.Data
	case isJSONArray(l.Models):
		raw = l.Models
	default:
		return nil, nil
	}
	var models []Model
	if err := json.Unmarshal(raw, &models); err != nil {
		return nil, err
	}
	return models, nil
}
