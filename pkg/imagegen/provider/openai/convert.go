// ABOUTME: Builds the chat-completions payload for an image generation request
// ABOUTME: Plain string content without input images, text + image_url parts otherwise

package openai

import (
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imagePart struct {
	Type     string            `json:"type"`
	ImageURL imagegen.ImageURL `json:"image_url"`
}

type imageConfig struct {
	AspectRatio string `json:"aspect_ratio,omitempty"`
	ImageSize   string `json:"image_size,omitempty"`
}

type toolDef map[string]struct{}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Modalities  []string      `json:"modalities"`
	ImageConfig *imageConfig  `json:"image_config,omitempty"`
	Tools       []toolDef     `json:"tools,omitempty"`
	Stream      bool          `json:"stream"`
}

// buildRequestBody converts a generation request into the provider payload.
// Only Modalities is changed afterwards, by the modality retry.
func buildRequestBody(model string, req *imagegen.GenerationRequest) *chatRequest {
	body := &chatRequest{
		Model:      model,
		Messages:   []chatMessage{{Role: "user", Content: convertContent(req)}},
		Modalities: imagegen.Modalities(model),
		Stream:     true,
	}

	var cfg imageConfig
	if req.AspectRatio != "" {
		cfg.AspectRatio = req.AspectRatio
	}
	if imagegen.IsGemini3ProImage(model) {
		if req.ImageSize != "" {
			cfg.ImageSize = req.ImageSize
		}
		if req.EnableGoogleSearch {
			body.Tools = []toolDef{{"google_search": {}}}
		}
	}
	if cfg != (imageConfig{}) {
		body.ImageConfig = &cfg
	}
	return body
}

func convertContent(req *imagegen.GenerationRequest) any {
	if len(req.Images) == 0 {
		return req.Prompt
	}
	parts := make([]any, 0, len(req.Images)+1)
	parts = append(parts, textPart{Type: "text", Text: req.Prompt})
	for _, img := range req.Images {
		parts = append(parts, imagePart{Type: "image_url", ImageURL: imagegen.ImageURL{URL: img}})
	}
	return parts
}
