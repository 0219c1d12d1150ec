// ABOUTME: Saver writes generated image references (data URIs or URLs) to disk
// ABOUTME: Downloads run concurrently via errgroup; HTML landing pages are followed one level

package save

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	xhttp "github.com/Shizuku-Yume/Arcanum/internal/http"
	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
	"github.com/Shizuku-Yume/Arcanum/internal/media"
)

const (
	// DefaultMaxBytes bounds a single downloaded image.
	DefaultMaxBytes = 32 << 20
	defaultParallel = 4
	userAgent       = "arcanum/1.0"
)

// Saver downloads or decodes image references into Dir.
type Saver struct {
	Dir      string
	Prefix   string // File name prefix; defaults to "arcanum-<timestamp>"
	Client   *http.Client
	MaxBytes int64
	Parallel int
}

// New returns a Saver for dir with default limits.
func New(dir string) *Saver {
	return &Saver{
		Dir:      dir,
		Prefix:   "arcanum-" + time.Now().Format("20060102-150405"),
		Client:   xhttp.DownloadClient(2 * time.Minute),
		MaxBytes: DefaultMaxBytes,
		Parallel: defaultParallel,
	}
}

// Saved records where one reference ended up.
type Saved struct {
	Ref  string
	Path string
	Info media.Info
}

// SaveAll writes every reference, numbering files from 1 in input order.
// The first failure cancels the remaining downloads.
func (s *Saver) SaveAll(ctx context.Context, refs []string) ([]Saved, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	out := make([]Saved, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Parallel, 1))
	for i, ref := range refs {
		g.Go(func() error {
			saved, err := s.save(ctx, i+1, ref)
			if err != nil {
				return fmt.Errorf("image %d: %w", i+1, err)
			}
			out[i] = saved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Saver) save(ctx context.Context, n int, ref string) (Saved, error) {
	data, mime, err := s.fetch(ctx, ref, 0)
	if err != nil {
		return Saved{}, err
	}

	info, sniffErr := media.Sniff(data)
	ext := info.Extension()
	if sniffErr != nil {
		if ext = media.ExtensionForMIME(mime); ext == "" {
			ext = ".bin"
		}
		pilog.Debug("save: cannot sniff image %d (%v), using %s", n, sniffErr, ext)
	}

	path := filepath.Join(s.Dir, fmt.Sprintf("%s-%d%s", s.prefix(), n, ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Saved{}, fmt.Errorf("writing %s: %w", path, err)
	}
	return Saved{Ref: ref, Path: path, Info: info}, nil
}

func (s *Saver) prefix() string {
	if s.Prefix == "" {
		return "arcanum"
	}
	return s.Prefix
}

// fetch returns the bytes and declared MIME type behind ref. depth counts
// followed landing pages.
func (s *Saver) fetch(ctx context.Context, ref string, depth int) ([]byte, string, error) {
	switch {
	case media.IsDataURI(ref):
		return media.DecodeDataURI(ref)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
	default:
		return nil, "", fmt.Errorf("unsupported image reference %q", pilog.Preview(ref, 60))
	}

	data, mime, err := s.download(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	if !isHTML(mime, data) {
		return data, mime, nil
	}
	if depth > 0 {
		return nil, "", fmt.Errorf("%s: landing page links to another page", ref)
	}

	target, err := LandingImage(ref, data)
	if err != nil {
		return nil, "", err
	}
	pilog.Debug("save: %s is a page, following %s", ref, target)
	return s.fetch(ctx, target, depth+1)
}

func (s *Saver) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	limit := s.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("%s exceeds %d bytes", url, limit)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func isHTML(mime string, data []byte) bool {
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	mime = strings.ToLower(mime)
	return strings.HasPrefix(mime, "text/html") || strings.HasPrefix(mime, "application/xhtml")
}
