// ABOUTME: Turns -image arguments into references the API accepts
// ABOUTME: URLs and data URIs pass through; local files are fitted and inlined as data URIs

package media

import (
	"fmt"
	"os"
	"strings"

	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
)

// LoadInput returns an image reference for ref. http(s) URLs and data URIs
// are returned as-is; anything else is read as a local file.
func LoadInput(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("empty image reference")
	}
	if IsDataURI(ref) || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return "", fmt.Errorf("reading input image: %w", err)
	}
	fitted, info, err := Fit(data, MaxInputDimension, MaxInputBytes)
	if err != nil {
		return "", fmt.Errorf("preparing %s: %w", ref, err)
	}
	if len(fitted) != len(data) {
		pilog.Debug("media: %s resized to %dx%d %s (%d → %d bytes)", ref, info.Width, info.Height, info.Format, len(data), len(fitted))
	}
	return EncodeDataURI(info.MIME(), fitted), nil
}

// LoadInputs applies LoadInput to every reference, keeping order.
func LoadInputs(refs []string) ([]string, error) {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		loaded, err := LoadInput(r)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded)
	}
	return out, nil
}
