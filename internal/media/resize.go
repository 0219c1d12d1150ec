// ABOUTME: Input image downscaling with format and quality fallback before upload
// ABOUTME: Uses CatmullRom interpolation; falls back to JPEG if PNG exceeds the size limit

package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

const (
	// MaxInputBytes is the largest input image sent inline.
	MaxInputBytes = 4_500_000
	// MaxInputDimension is the largest width or height sent inline.
	MaxInputDimension = 2048
)

// Fit scales image data to fit within maxDim pixels and maxBytes bytes.
// Images already within both limits are returned unchanged.
//
//  1. Decode and resize respecting aspect ratio.
//  2. Encode as PNG; if too large, JPEG at decreasing quality.
//  3. If still too large, scale down further at 0.75, 0.5, 0.35, 0.25.
func Fit(data []byte, maxDim, maxBytes int) ([]byte, Info, error) {
	if len(data) == 0 {
		return nil, Info{}, fmt.Errorf("empty image data")
	}

	info, err := Sniff(data)
	if err != nil {
		return nil, Info{}, err
	}
	if info.Width <= maxDim && info.Height <= maxDim && len(data) <= maxBytes {
		return data, info, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, fmt.Errorf("decoding image: %w", err)
	}

	w, h := fitDimensions(info.Width, info.Height, maxDim)
	var out []byte
	var format string
	for _, scale := range []float64{1, 0.75, 0.5, 0.35, 0.25} {
		sw, sh := max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
		out, format, err = encodeWithFallback(scaleImage(img, sw, sh), maxBytes)
		if err != nil {
			return nil, Info{}, err
		}
		if len(out) <= maxBytes {
			return out, Info{Format: format, Width: sw, Height: sh}, nil
		}
	}

	// Smallest attempt, even if still over the limit.
	return out, Info{Format: format, Width: max(w/4, 1), Height: max(h/4, 1)}, nil
}

// fitDimensions returns dimensions within maxDim preserving aspect ratio.
func fitDimensions(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		return maxDim, max(h*maxDim/w, 1)
	}
	return max(w*maxDim/h, 1), maxDim
}

func scaleImage(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func encodeWithFallback(img image.Image, maxBytes int) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encoding PNG: %w", err)
	}
	if buf.Len() <= maxBytes {
		return buf.Bytes(), "png", nil
	}

	for _, q := range []int{85, 70, 55, 40} {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, "", fmt.Errorf("encoding JPEG: %w", err)
		}
		if buf.Len() <= maxBytes {
			return buf.Bytes(), "jpeg", nil
		}
	}
	return buf.Bytes(), "jpeg", nil
}
