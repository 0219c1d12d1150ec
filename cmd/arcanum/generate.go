// ABOUTME: The generate command: resolves the provider, runs N concurrent calls, saves and previews
// ABOUTME: Prose replies are rendered as markdown; degraded results are reported as warnings

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/Shizuku-Yume/Arcanum/internal/config"
	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
	"github.com/Shizuku-Yume/Arcanum/internal/media"
	"github.com/Shizuku-Yume/Arcanum/internal/prompts"
	"github.com/Shizuku-Yume/Arcanum/internal/save"
	"github.com/Shizuku-Yume/Arcanum/internal/store"
	"github.com/Shizuku-Yume/Arcanum/internal/ui"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen/provider/openai"
)

// generator is the part of the provider the command uses.
type generator interface {
	Generate(ctx context.Context, req *imagegen.GenerationRequest, onProgress imagegen.ProgressFunc) (*imagegen.Result, error)
}

var errNoAPIKey = errors.New("no API key: run `arcanum config set api-key <key>` or set ARCANUM_API_KEY")

func (a *app) runGenerate(ctx context.Context, argv []string) error {
	args, err := parseGenerateFlags(argv, a.stderr)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if args.version {
		printVersion(a.stdout)
		return nil
	}
	if args.verbose {
		pilog.SetLevel(pilog.LevelDebug)
	}

	prompt, err := a.buildPrompt(args)
	if err != nil {
		return err
	}

	provider := config.ResolveProvider(
		config.Flags{Endpoint: args.endpoint, Model: args.model, APIKey: args.key},
		a.settings, a.store,
	)
	if provider.APIKey == "" {
		return errNoAPIKey
	}
	pilog.Debug("generate: endpoint=%s (%s) model=%s (%s)",
		provider.Endpoint, provider.Sources["endpoint"], provider.Model, provider.Sources["model"])

	images, err := media.LoadInputs(args.images)
	if err != nil {
		return err
	}

	req := &imagegen.GenerationRequest{
		Prompt:             prompt,
		Images:             images,
		AspectRatio:        a.aspectRatio(args.aspect),
		ImageSize:          a.imageSize(args.size),
		EnableGoogleSearch: args.search || a.settings.GoogleSearch || a.store.GoogleSearchEnabled(),
		Model:              provider.Model,
		Endpoint:           provider.Endpoint,
		APIKey:             provider.APIKey,
	}
	count := max(args.n, 1)

	results, err := a.generate(ctx, openai.New(provider.Endpoint), req, count)
	if err != nil {
		return a.reportGenerateError(err)
	}

	a.store.SetGenerationParams(store.GenerationParams{
		AspectRatios: nonEmpty(req.AspectRatio),
		Resolution:   req.ImageSize,
		Count:        count,
	})

	var refs []string
	for i, res := range results {
		a.warnDegraded(i+1, res)
		refs = append(refs, res.ImageURLs...)
	}

	outDir := args.out
	if outDir == "" {
		outDir = a.settings.OutputDir
	}
	if outDir == "" {
		for _, ref := range refs {
			fmt.Fprintln(a.stdout, ref)
		}
		if args.preview {
			a.previewRefs(refs)
		}
		return nil
	}

	saved, err := save.New(outDir).SaveAll(ctx, refs)
	if err != nil {
		return fmt.Errorf("saving images: %w", err)
	}
	for _, s := range saved {
		fmt.Fprintln(a.stdout, s.Path)
		if args.preview {
			a.previewFile(s.Path)
		}
	}
	return nil
}

// buildPrompt joins the arguments (or reads stdin when piped) and applies
// the -style template.
func (a *app) buildPrompt(args generateArgs) (string, error) {
	prompt := args.prompt
	if prompt == "" || prompt == "-" {
		if f, ok := a.stdin.(*os.File); ok && ui.IsTerminal(f) {
			prompt = ""
		} else if a.stdin != nil {
			data, err := io.ReadAll(a.stdin)
			if err != nil {
				return "", fmt.Errorf("reading prompt from stdin: %w", err)
			}
			prompt = strings.TrimSpace(string(data))
		}
	}

	if args.style != "" {
		entry, ok := prompts.Find(a.promptLoader().Load(), args.style)
		if !ok {
			return "", fmt.Errorf("unknown style %q (see `arcanum prompts`)", args.style)
		}
		pilog.Debug("generate: style %s from %s", entry.ID, entry.Source)
		prompt = prompts.Apply(entry.Template, prompt)
	}

	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("no prompt given")
	}
	return prompt, nil
}

// aspectRatio picks the flag, then settings, then the last used ratio.
func (a *app) aspectRatio(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if a.settings.AspectRatio != "" {
		return a.settings.AspectRatio
	}
	if p := a.store.GenerationParams(); p != nil && len(p.AspectRatios) > 0 {
		return p.AspectRatios[0]
	}
	return ""
}

// imageSize picks the flag, then settings, then the last used size, upper
// cased whatever the source.
func (a *app) imageSize(flagValue string) string {
	size := flagValue
	if size == "" {
		size = a.settings.ImageSize
	}
	if size == "" {
		if p := a.store.GenerationParams(); p != nil {
			size = p.Resolution
		}
	}
	return strings.ToUpper(strings.TrimSpace(size))
}

// generate runs count independent calls concurrently; the first failure
// cancels the rest.
func (a *app) generate(ctx context.Context, gen generator, req *imagegen.GenerationRequest, count int) ([]*imagegen.Result, error) {
	results := make([]*imagegen.Result, count)
	received := make([]atomic.Int64, count)

	err := ui.RunWithProgress(ctx, a.stderr, a.interactive, req.Model, count,
		func(ctx context.Context, report func(int64)) error {
			g, ctx := errgroup.WithContext(ctx)
			for i := range count {
				g.Go(func() error {
					res, err := gen.Generate(ctx, req, func(n int64) {
						received[i].Store(n)
						var total int64
						for j := range received {
							total += received[j].Load()
						}
						report(total)
					})
					if err != nil {
						return err
					}
					results[i] = res
					return nil
				})
			}
			return g.Wait()
		})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// reportGenerateError shows prose replies as markdown and adds hints for
// common HTTP failures.
func (a *app) reportGenerateError(err error) error {
	var text *imagegen.TextInsteadOfImageError
	if errors.As(err, &text) {
		fmt.Fprintln(a.stderr, a.styles.Warn.Render("The model answered with text instead of an image:"))
		fmt.Fprintln(a.stdout, ui.RenderMarkdown(text.Text, a.theme, a.stdoutWidth()))
		return errReported
	}

	var status *imagegen.HTTPStatusError
	if errors.As(err, &status) {
		switch status.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w (check the API key)", err)
		case http.StatusNotFound:
			return fmt.Errorf("%w (check the endpoint and model id)", err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w (rate limited, try again later)", err)
		}
	}
	return err
}

func (a *app) warnDegraded(n int, res *imagegen.Result) {
	if res.Interrupted != nil {
		fmt.Fprintln(a.stderr, a.styles.Warn.Render(
			fmt.Sprintf("warning: response %d was cut off (%v); images come from the partial reply", n, res.Interrupted)))
	}
	if res.SkippedChunks > 0 {
		pilog.Warn("response %d: skipped %d malformed stream chunks", n, res.SkippedChunks)
	}
	if res.ModalityRetried {
		pilog.Info("response %d: succeeded after switching output modalities", n)
	}
}

// previewRefs previews inline data URIs; remote URLs need -o.
func (a *app) previewRefs(refs []string) {
	for _, ref := range refs {
		if !media.IsDataURI(ref) {
			pilog.Debug("preview: skipping remote %s (save with -o to preview)", pilog.Preview(ref, 80))
			continue
		}
		data, _, err := media.DecodeDataURI(ref)
		if err != nil {
			pilog.Warn("preview: %v", err)
			continue
		}
		a.preview(data)
	}
}

func (a *app) previewFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		pilog.Warn("preview: %v", err)
		return
	}
	a.preview(data)
}

func (a *app) preview(data []byte) {
	cols := min(a.stdoutWidth(), 80)
	if err := ui.Preview(a.stdout, ui.DetectProtocol(nil), data, cols); err != nil {
		pilog.Warn("preview: %v", err)
	}
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
