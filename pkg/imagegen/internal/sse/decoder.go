// ABOUTME: SSE decoder that merges chat-completion deltas into one assembled message
// ABOUTME: Tolerates malformed frames, split UTF-8 sequences and interrupted connections

package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen/internal/progress"
)

const (
	dataPrefix = "data: "
	doneToken  = "[DONE]"
	chunkSize  = 32 * 1024

	previewWidth = 200
)

// Decoded is the outcome of a stream that produced at least one frame.
// Skipped and Interrupted describe degradation the message survived.
type Decoded struct {
	Message     *imagegen.Message
	Frames      int   // data frames that parsed as JSON
	Skipped     int   // data frames dropped as malformed
	Interrupted error // read failure that ended the stream early
}

// streamChunk is the part of a chat.completion.chunk the decoder reads.
type streamChunk struct {
	Choices []struct {
		Delta json.RawMessage `json:"delta"`
	} `json:"choices"`
}

// decoder holds the per-stream state: the unterminated tail of decoded
// text and the accumulator, which stays nil until a frame parses.
type decoder struct {
	pending []byte
	scanned int // prefix of pending known to hold no newline
	msg     *imagegen.Message
	out     Decoded
}

// Decode reads r to the end and assembles the streamed assistant message.
// onChunk, when non-nil, receives the cumulative raw byte count after every
// read. A read error ends the stream without failing it; Decode fails only
// with imagegen.ErrEmptyStream when no frame ever parsed.
func Decode(r io.Reader, onChunk progress.Func) (*Decoded, error) {
	src := transform.NewReader(progress.NewReader(r, onChunk), unicode.UTF8BOM.NewDecoder())

	var d decoder
	buf := make([]byte, chunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			d.feed(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			pilog.Warn("sse: stream interrupted: %v", err)
			d.out.Interrupted = err
			break
		}
	}

	// A connection cut before the final newline still carries a whole frame.
	if len(bytes.TrimSpace(d.pending)) > 0 {
		d.processLine(string(d.pending))
	}
	d.pending = nil

	if d.msg == nil {
		if d.out.Interrupted != nil {
			return nil, fmt.Errorf("%w (stream interrupted: %v)", imagegen.ErrEmptyStream, d.out.Interrupted)
		}
		return nil, imagegen.ErrEmptyStream
	}

	d.out.Message = d.msg
	return &d.out, nil
}

// feed appends decoded text and processes every complete line.
func (d *decoder) feed(text []byte) {
	d.pending = append(d.pending, text...)

	start := 0
	from := d.scanned
	for {
		i := bytes.IndexByte(d.pending[from:], '\n')
		if i < 0 {
			break
		}
		end := from + i
		d.processLine(string(d.pending[start:end]))
		start = end + 1
		from = start
	}

	// Keep only the unterminated tail.
	if start > 0 {
		d.pending = append(d.pending[:0], d.pending[start:]...)
	}
	d.scanned = len(d.pending)
}

// processLine merges one "data: " frame; every other line is ignored.
func (d *decoder) processLine(line string) {
	if !strings.HasPrefix(line, dataPrefix) {
		return
	}
	data := strings.TrimSpace(line[len(dataPrefix):])
	if data == "" || data == doneToken {
		return
	}

	raw := []byte(data)
	if !json.Valid(raw) {
		d.out.Skipped++
		pilog.Warn("sse: skipping malformed chunk: %s", pilog.Preview(data, previewWidth))
		return
	}

	d.out.Frames++
	if d.msg == nil {
		d.msg = &imagegen.Message{}
	}

	delta := firstDelta(raw)
	if delta == nil {
		return
	}
	mergeDelta(d.msg, delta)
}

// firstDelta returns choices[0].delta as a field map, or nil when the frame
// has no object there (role-less keepalives, usage-only frames).
func firstDelta(raw []byte) map[string]json.RawMessage {
	var chunk streamChunk
	if json.Unmarshal(raw, &chunk) != nil || len(chunk.Choices) == 0 {
		return nil
	}
	var delta map[string]json.RawMessage
	if json.Unmarshal(chunk.Choices[0].Delta, &delta) != nil {
		return nil
	}
	return delta
}

// mergeDelta applies one delta: content appends, images replaces, every
// other key replaces its previous value in Extra.
func mergeDelta(msg *imagegen.Message, delta map[string]json.RawMessage) {
	for key, raw := range delta {
		switch key {
		case "content":
			var s string
			if json.Unmarshal(raw, &s) == nil {
				msg.Content += s
			}
		case "images":
			if isNull(raw) {
				continue
			}
			var images []imagegen.ImageDescriptor
			if json.Unmarshal(raw, &images) != nil {
				images = nil
			}
			msg.Images = images
		default:
			msg.SetExtra(key, raw)
		}
	}
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
