// ABOUTME: Defaults and model-id heuristics for output modalities and Gemini 3 options
// ABOUTME: Providers expose no capability data, so detection is a string match on the id

package imagegen

import (
	"regexp"
	"slices"
	"strings"
)

const (
	DefaultEndpoint = "https://openrouter.ai/api/v1"
	DefaultModelID  = "google/gemini-2.5-flash-image-preview"
)

// multimodalRe matches chat models that can answer with both text and images.
var multimodalRe = regexp.MustCompile(`(?i)gemini|gpt-4o|gpt.*image`)

var (
	ModalitiesImage     = []string{"image"}
	ModalitiesImageText = []string{"image", "text"}
)

// IsMultimodal reports whether the model is expected to support image+text output.
func IsMultimodal(modelID string) bool {
	return multimodalRe.MatchString(modelID)
}

// IsGemini3ProImage reports whether the model accepts image_size and the
// google_search tool.
func IsGemini3ProImage(modelID string) bool {
	return strings.Contains(strings.ToLower(modelID), "gemini-3-pro-image")
}

// Modalities returns the output modalities to request first for the model.
func Modalities(modelID string) []string {
	if IsMultimodal(modelID) {
		return slices.Clone(ModalitiesImageText)
	}
	return slices.Clone(ModalitiesImage)
}

// AlternateModalities returns the other candidate set.
func AlternateModalities(current []string) []string {
	if slices.Equal(current, ModalitiesImageText) {
		return slices.Clone(ModalitiesImage)
	}
	return slices.Clone(ModalitiesImageText)
}

// ResolveModel returns the trimmed model id, or DefaultModelID when blank.
func ResolveModel(modelID string) string {
	if id := strings.TrimSpace(modelID); id != "" {
		return id
	}
	return DefaultModelID
}
