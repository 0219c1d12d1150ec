// ABOUTME: CLI entry point for arcanum: image generation through OpenAI-compatible chat APIs
// ABOUTME: Dispatches subcommands (generate, models, config, prompts, version) before flag parsing

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Shizuku-Yume/Arcanum/internal/config"
	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
	"github.com/Shizuku-Yume/Arcanum/internal/prompts"
	"github.com/Shizuku-Yume/Arcanum/internal/store"
	"github.com/Shizuku-Yume/Arcanum/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errReported means the failure was already shown to the user.
var errReported = errors.New("reported")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()

	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "%s %v\n", ui.NewStyles().Error.Render("error:"), err)
		}
		os.Exit(1)
	}
}

// run dispatches argv to a subcommand; anything else is a generate call.
func run(ctx context.Context, argv []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd, rest := "generate", argv
	if len(argv) > 0 {
		switch argv[0] {
		case "generate", "models", "config", "prompts", "version", "help":
			cmd, rest = argv[0], argv[1:]
		}
	}

	switch cmd {
	case "version":
		printVersion(stdout)
		return nil
	case "help":
		fmt.Fprint(stdout, usage)
		return nil
	}

	a, err := newApp(stdin, stdout, stderr)
	if err != nil {
		return err
	}

	switch cmd {
	case "models":
		return a.runModels(ctx, rest)
	case "config":
		return a.runConfig(rest)
	case "prompts":
		return a.runPrompts(rest)
	default:
		return a.runGenerate(ctx, rest)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "arcanum %s (%s) built %s\n", version, commit, date)
}

const usage = `Usage:
  arcanum [generate] [flags] <prompt>      generate images
  arcanum models [-filter q] [-refresh]    list models of the endpoint
  arcanum config get|set|clear <key> [v]   edit stored values
  arcanum config explain                   show the effective configuration
  arcanum config provider list|add|use|remove
  arcanum prompts [list|show|add|remove]   manage prompt templates
  arcanum version

Run "arcanum <command> -h" for the flags of a command.
`

// app carries what every subcommand needs.
type app struct {
	cwd         string
	settings    *config.Settings
	store       *store.Store
	theme       string
	interactive bool
	stdin       io.Reader
	stdout      io.Writer
	stderr      io.Writer
	styles      ui.Styles
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	settings, err := config.Load(cwd)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ApplyEnv(settings); err != nil {
		return nil, fmt.Errorf("applying config env: %w", err)
	}
	if settings.Verbose {
		pilog.SetLevel(pilog.LevelDebug)
	}

	st := store.NewFile(config.StoreFile())

	theme := settings.Theme
	if theme == "" {
		theme = st.Theme()
	}
	ui.ApplyTheme(theme)

	interactive := false
	if f, ok := stderr.(*os.File); ok {
		interactive = ui.IsTerminal(f)
	}

	return &app{
		cwd:         cwd,
		settings:    settings,
		store:       st,
		theme:       theme,
		interactive: interactive,
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		styles:      ui.NewStyles(),
	}, nil
}

func (a *app) promptLoader() *prompts.Loader {
	return prompts.NewLoader(config.PromptsDirs(a.cwd), a.store)
}

// stdoutWidth returns the terminal width of stdout, or 80.
func (a *app) stdoutWidth() int {
	if f, ok := a.stdout.(*os.File); ok {
		return ui.Width(f)
	}
	return 80
}
