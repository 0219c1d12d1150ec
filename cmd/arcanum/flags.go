// ABOUTME: Flag parsing for the generate command using stdlib flag
// ABOUTME: -image is repeatable; the prompt is the remaining arguments joined by spaces

package main

import (
	"flag"
	"io"
	"strings"
)

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

type generateArgs struct {
	model    string
	endpoint string
	key      string
	images   stringList
	aspect   string
	size     string
	search   bool
	n        int
	out      string
	style    string
	preview  bool
	verbose  bool
	version  bool
	prompt   string
}

func parseGenerateFlags(argv []string, stderr io.Writer) (generateArgs, error) {
	var args generateArgs

	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&args.model, "model", "", "Model id (e.g., google/gemini-2.5-flash-image-preview)")
	fs.StringVar(&args.endpoint, "endpoint", "", "API base URL or full chat completions URL")
	fs.StringVar(&args.key, "key", "", "API key (prefer the store or ARCANUM_API_KEY)")
	fs.Var(&args.images, "image", "Input image: file, URL or data URI (repeatable)")
	fs.StringVar(&args.aspect, "aspect", "", "Aspect ratio, e.g. 16:9")
	fs.StringVar(&args.size, "size", "", "Image size for Gemini 3 Pro Image: 1K, 2K or 4K")
	fs.BoolVar(&args.search, "search", false, "Enable Google Search grounding (Gemini 3 Pro Image)")
	fs.IntVar(&args.n, "n", 1, "Number of independent generations to run concurrently")
	fs.StringVar(&args.out, "o", "", "Directory to save images to")
	fs.StringVar(&args.style, "style", "", "Prompt template id or name")
	fs.BoolVar(&args.preview, "preview", false, "Show saved images inline in the terminal")
	fs.BoolVar(&args.verbose, "verbose", false, "Debug logging")
	fs.BoolVar(&args.version, "version", false, "Show version and exit")

	if err := fs.Parse(argv); err != nil {
		return args, err
	}
	args.prompt = strings.TrimSpace(strings.Join(fs.Args(), " "))
	return args, nil
}
