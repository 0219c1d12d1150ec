// ABOUTME: Image format sniffing and data URI encoding/decoding
// ABOUTME: Sniffing decodes only the header via image.DecodeConfig (png, jpeg, gif, webp)

package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strings"

	// Register decoders for standard formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// ErrUnknownFormat is returned by Sniff for data that is not a decodable image.
var ErrUnknownFormat = errors.New("unrecognized image format")

// Info describes an image without decoding its pixels.
type Info struct {
	Format string // Decoder name: png, jpeg, gif, webp
	Width  int
	Height int
}

// MIME returns the MIME type for the format.
func (i Info) MIME() string {
	if i.Format == "" {
		return "application/octet-stream"
	}
	return "image/" + i.Format
}

// Extension returns the file extension (with dot) for the format.
func (i Info) Extension() string {
	switch i.Format {
	case "jpeg":
		return ".jpg"
	case "":
		return ".bin"
	default:
		return "." + i.Format
	}
}

// Sniff reads the image header.
func Sniff(data []byte) (Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, ErrUnknownFormat
		}
		return Info{}, fmt.Errorf("reading image header: %w", err)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height}, nil
}

// ExtensionForMIME maps an image MIME type to a file extension, or "" when
// the type is unknown.
func ExtensionForMIME(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	case "image/avif":
		return ".avif"
	case "image/bmp":
		return ".bmp"
	}
	return ""
}

// IsDataURI reports whether ref is a data: URI.
func IsDataURI(ref string) bool {
	return strings.HasPrefix(ref, "data:")
}

// EncodeDataURI returns a base64 data URI for data.
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI returns the payload and MIME type of a data URI. Base64
// payloads tolerate missing padding and whitespace; other payloads are
// percent-decoded.
func DecodeDataURI(ref string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("data URI has no payload separator")
	}

	params := strings.Split(header, ";")
	mime := params[0]
	if mime == "" {
		mime = "text/plain"
	}
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(p, "base64") {
			isBase64 = true
		}
	}

	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return nil, "", fmt.Errorf("decoding data URI: %w", err)
		}
		return []byte(data), mime, nil
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, payload)
	data, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
	if err != nil {
		return nil, "", fmt.Errorf("decoding data URI: %w", err)
	}
	return data, mime, nil
}
