// ABOUTME: Inline terminal preview of saved images (Kitty, iTerm2, half-block fallback)
// ABOUTME: Protocol is picked from terminal environment variables

package ui

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"golang.org/x/image/draw"

	"github.com/Shizuku-Yume/Arcanum/internal/media"
)

// Protocol identifies how images are drawn in the terminal.
type Protocol int

const (
	ProtoHalfBlock Protocol = iota // ANSI true-color ▄ cells
	ProtoKitty                     // Kitty graphics (also Ghostty, WezTerm)
	ProtoITerm2                    // iTerm2 OSC 1337 inline images
)

func (p Protocol) String() string {
	switch p {
	case ProtoKitty:
		return "kitty"
	case ProtoITerm2:
		return "iterm2"
	default:
		return "halfblock"
	}
}

// DetectProtocol inspects the environment for a graphics-capable terminal.
func DetectProtocol(getenv func(string) string) Protocol {
	if getenv == nil {
		getenv = os.Getenv
	}
	prog := strings.ToLower(getenv("TERM_PROGRAM"))
	switch {
	case getenv("KITTY_WINDOW_ID") != "", prog == "kitty":
		return ProtoKitty
	case getenv("GHOSTTY_RESOURCES_DIR") != "", prog == "ghostty":
		return ProtoKitty
	case getenv("WEZTERM_PANE") != "", prog == "wezterm":
		return ProtoKitty
	case getenv("ITERM_SESSION_ID") != "", prog == "iterm.app":
		return ProtoITerm2
	}
	return ProtoHalfBlock
}

// Preview writes data as an inline image at most cols wide.
func Preview(w io.Writer, proto Protocol, data []byte, cols int) error {
	if len(data) == 0 {
		return fmt.Errorf("empty image data")
	}
	cols = max(cols, 1)

	switch proto {
	case ProtoKitty:
		pngData, info, err := asPNG(data)
		if err != nil {
			return err
		}
		c, r := cellSize(info.Width, info.Height, cols)
		_, err = io.WriteString(w, encodeKitty(pngData, c, r)+"\n")
		return err
	case ProtoITerm2:
		_, err := io.WriteString(w, encodeITerm2(data, cols)+"\n")
		return err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding image for preview: %w", err)
	}
	for _, line := range halfBlock(img, cols) {
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// cellSize scales pixel dimensions to cells; a cell is about twice as tall
// as it is wide.
func cellSize(w, h, maxCols int) (int, int) {
	if w < 1 || h < 1 {
		return maxCols, max(maxCols/2, 1)
	}
	cols := min(w, maxCols)
	rows := h * cols / w / 2
	return cols, max(rows, 1)
}

func asPNG(data []byte) ([]byte, media.Info, error) {
	info, err := media.Sniff(data)
	if err != nil {
		return nil, media.Info{}, err
	}
	if info.Format == "png" {
		return data, info, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, media.Info{}, fmt.Errorf("decoding for PNG conversion: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, media.Info{}, fmt.Errorf("encoding PNG: %w", err)
	}
	info.Format = "png"
	return buf.Bytes(), info, nil
}

const kittyChunkSize = 4096

// encodeKitty emits chunked APC sequences; only the first carries the header.
func encodeKitty(pngData []byte, cols, rows int) string {
	encoded := base64.StdEncoding.EncodeToString(pngData)
	var b strings.Builder
	for i := 0; i < len(encoded) || i == 0; i += kittyChunkSize {
		end := min(i+kittyChunkSize, len(encoded))
		more := 0
		if end < len(encoded) {
			more = 1
		}
		if i == 0 {
			fmt.Fprintf(&b, "\x1b_Ga=T,f=100,q=2,c=%d,r=%d,m=%d;%s\x1b\\", cols, rows, more, encoded[i:end])
		} else {
			fmt.Fprintf(&b, "\x1b_Gm=%d;%s\x1b\\", more, encoded[i:end])
		}
	}
	return b.String()
}

func encodeITerm2(data []byte, cols int) string {
	return fmt.Sprintf("\x1b]1337;File=inline=1;size=%d;width=%d:%s\a",
		len(data), cols, base64.StdEncoding.EncodeToString(data))
}

// halfBlock renders two pixel rows per line: background is the top pixel,
// foreground the bottom one.
func halfBlock(img image.Image, maxCols int) []string {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	if w > maxCols {
		h = max(h*maxCols/w, 1)
		w = maxCols
	}

	src := img
	if w != bounds.Dx() || h != bounds.Dy() {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		src = dst
	}
	origin := src.Bounds().Min

	lines := make([]string, 0, (h+1)/2)
	for y := 0; y < h; y += 2 {
		var b strings.Builder
		for x := range w {
			tr, tg, tb := rgbAt(src, origin.X+x, origin.Y+y)
			var br, bg, bb uint8
			if y+1 < h {
				br, bg, bb = rgbAt(src, origin.X+x, origin.Y+y+1)
			}
			fmt.Fprintf(&b, "\x1b[48;2;%d;%d;%dm\x1b[38;2;%d;%d;%dm▄", tr, tg, tb, br, bg, bb)
		}
		b.WriteString("\x1b[0m")
		lines = append(lines, b.String())
	}
	return lines
}

func rgbAt(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}
