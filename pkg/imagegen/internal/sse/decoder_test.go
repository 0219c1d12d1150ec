// ABOUTME: Table-driven tests for the SSE decoder's delta merging and fail-soft behavior
// ABOUTME: Covers DONE frames, malformed lines, unterminated tails, split UTF-8 and read errors

package sse

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
)

func TestDecodeConcatenatesContent(t *testing.T) {
	t.Parallel()

	input := `data: {"choices":[{"delta":{"content":"a"}}]}` + "\n\n" +
		`data: {"choices":[{"delta":{"content":"b"}}]}` + "\n\n" +
		"data: [DONE]\n\n"

	got, err := Decode(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Message.Content != "ab" {
		t.Errorf("Content = %q, want %q", got.Message.Content, "ab")
	}
	if got.Frames != 2 || got.Skipped != 0 || got.Interrupted != nil {
		t.Errorf("Frames=%d Skipped=%d Interrupted=%v", got.Frames, got.Skipped, got.Interrupted)
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		input       string
		wantContent string
		wantImages  []string
		wantExtra   map[string]string
		wantSkipped int
	}{
		{
			name:        "unterminated final line is recovered",
			input:       `data: {"choices":[{"delta":{"content":"x"}}]}` + "\n" + `data: {"choices":[{"delta":{"content":"y"}}]}`,
			wantContent: "xy",
		},
		{
			name: "malformed line is skipped",
			input: `data: {"choices":[{"delta":{"content":"ok"}}]}` + "\n" +
				"data: {not json\n" +
				`data: {"choices":[{"delta":{"content":"!"}}]}` + "\n",
			wantContent: "ok!",
			wantSkipped: 1,
		},
		{
			name: "non data lines ignored",
			input: ": keepalive\nevent: message\nid: 7\n" +
				`data: {"choices":[{"delta":{"content":"z"}}]}` + "\n",
			wantContent: "z",
		},
		{
			name:        "prefix without space is not a frame",
			input:       `data:{"choices":[{"delta":{"content":"no"}}]}` + "\n" + `data: {"choices":[{"delta":{"content":"yes"}}]}` + "\n",
			wantContent: "yes",
		},
		{
			name:        "crlf line endings",
			input:       "data: {\"choices\":[{\"delta\":{\"content\":\"c\"}}]}\r\n\r\ndata: [DONE]\r\n",
			wantContent: "c",
		},
		{
			name: "images last write wins",
			input: `data: {"choices":[{"delta":{"images":[{"type":"image_url","image_url":{"url":"https://a/1.png"}}]}}]}` + "\n" +
				`data: {"choices":[{"delta":{"images":[{"type":"image_url","image_url":{"url":"https://a/2.png"}}]}}]}` + "\n",
			wantImages: []string{"https://a/2.png"},
		},
		{
			name: "null images do not clear",
			input: `data: {"choices":[{"delta":{"images":[{"image_url":{"url":"https://a/1.png"}}]}}]}` + "\n" +
				`data: {"choices":[{"delta":{"images":null,"content":"done"}}]}` + "\n",
			wantContent: "done",
			wantImages:  []string{"https://a/1.png"},
		},
		{
			name: "other delta keys copied with overwrite",
			input: `data: {"choices":[{"delta":{"role":"assistant","reasoning":"r1"}}]}` + "\n" +
				`data: {"choices":[{"delta":{"reasoning":"r2","content":null}}]}` + "\n",
			wantExtra: map[string]string{"role": `"assistant"`, "reasoning": `"r2"`},
		},
		{
			name:  "frame without delta still starts the message",
			input: `data: {"id":"gen-1","usage":{"total_tokens":3}}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Decode(strings.NewReader(tt.input), nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			msg := got.Message
			if msg.Content != tt.wantContent {
				t.Errorf("Content = %q, want %q", msg.Content, tt.wantContent)
			}
			if got.Skipped != tt.wantSkipped {
				t.Errorf("Skipped = %d, want %d", got.Skipped, tt.wantSkipped)
			}
			if len(msg.Images) != len(tt.wantImages) {
				t.Fatalf("got %d images, want %d", len(msg.Images), len(tt.wantImages))
			}
			for i, want := range tt.wantImages {
				if msg.Images[i].ImageURL == nil || msg.Images[i].ImageURL.URL != want {
					t.Errorf("image[%d] = %+v, want %q", i, msg.Images[i], want)
				}
			}
			for k, want := range tt.wantExtra {
				if got := string(msg.Extra[k]); got != want {
					t.Errorf("Extra[%q] = %s, want %s", k, got, want)
				}
			}
		})
	}
}

func TestDecodeEmptyStream(t *testing.T) {
	t.Parallel()

	inputs := map[string]string{
		"empty":            "",
		"only done":        "data: [DONE]\n\n",
		"only unparseable": "data: {oops\ndata: also bad\n",
		"only comments":    ": ping\n\n: ping\n",
		"blank data":       "data: \n\ndata:    \n",
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(strings.NewReader(input), nil)
			if !errors.Is(err, imagegen.ErrEmptyStream) {
				t.Errorf("err = %v, want ErrEmptyStream", err)
			}
		})
	}
}

func TestDecodeSplitUTF8AcrossChunks(t *testing.T) {
	t.Parallel()

	input := `data: {"choices":[{"delta":{"content":"图片✓"}}]}` + "\n"
	got, err := Decode(iotest.OneByteReader(strings.NewReader(input)), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Message.Content != "图片✓" {
		t.Errorf("Content = %q", got.Message.Content)
	}
}

func TestDecodeStripsBOM(t *testing.T) {
	t.Parallel()

	input := "\ufeff" + `data: {"choices":[{"delta":{"content":"bom"}}]}` + "\n"
	got, err := Decode(strings.NewReader(input), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Message.Content != "bom" {
		t.Errorf("Content = %q", got.Message.Content)
	}
}

func TestDecodeReadErrorKeepsPartialContent(t *testing.T) {
	t.Parallel()

	readErr := errors.New("connection reset")
	body := io.MultiReader(
		strings.NewReader(`data: {"choices":[{"delta":{"content":"partial"}}]}`+"\n"),
		iotest.ErrReader(readErr),
	)

	got, err := Decode(body, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Message.Content != "partial" {
		t.Errorf("Content = %q", got.Message.Content)
	}
	if !errors.Is(got.Interrupted, readErr) {
		t.Errorf("Interrupted = %v, want %v", got.Interrupted, readErr)
	}
}

func TestDecodeReadErrorBeforeAnyFrame(t *testing.T) {
	t.Parallel()

	_, err := Decode(iotest.ErrReader(errors.New("reset")), nil)
	if !errors.Is(err, imagegen.ErrEmptyStream) {
		t.Errorf("err = %v, want ErrEmptyStream", err)
	}
}

func TestDecodeReportsRawBytes(t *testing.T) {
	t.Parallel()

	input := `data: {"choices":[{"delta":{"content":"p"}}]}` + "\n"
	var last int64
	calls := 0
	_, err := Decode(iotest.OneByteReader(strings.NewReader(input)), func(n int64) {
		calls++
		last = n
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if last != int64(len(input)) {
		t.Errorf("last progress = %d, want %d", last, len(input))
	}
	if calls != len(input) {
		t.Errorf("progress called %d times, want one call per chunk", calls)
	}
}

// chunkReader returns at most n bytes per Read.
type chunkReader struct {
	r io.Reader
	n int
}

func (c chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}

func TestDecodeLongFrameIsLinear(t *testing.T) {
	t.Parallel()

	payload := "data:image/png;base64," + strings.Repeat("A", 16<<20)
	input := `data: {"choices":[{"delta":{"content":"` + payload + `"}}]}` + "\n\n"

	start := time.Now()
	got, err := Decode(chunkReader{r: strings.NewReader(input), n: 4096}, nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Message.Content != payload {
		t.Errorf("Content length = %d, want %d", len(got.Message.Content), len(payload))
	}
	if elapsed > 5*time.Second {
		t.Errorf("decoding a %d byte frame took %v", len(input), elapsed)
	}
}

func TestDecodeFramesSplitAcrossReads(t *testing.T) {
	t.Parallel()

	input := "data: {\"choices\":[{\"delta\":{\"content\":\"" + strings.Repeat("x", 300) + "\"}}]}\n" +
		": keepalive\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"yz\"}}]}\n"
	got, err := Decode(chunkReader{r: strings.NewReader(input), n: 7}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := strings.Repeat("x", 300) + "yz"; got.Message.Content != want {
		t.Errorf("Content = %q, want %q", got.Message.Content, want)
	}
	if got.Frames != 2 {
		t.Errorf("Frames = %d, want 2", got.Frames)
	}
}
