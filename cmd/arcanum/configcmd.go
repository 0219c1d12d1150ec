// ABOUTME: The config command: get/set/clear stored values, explain, and provider profiles
// ABOUTME: Values live in the persistent store; settings files are only read

package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/Shizuku-Yume/Arcanum/internal/config"
	"github.com/Shizuku-Yume/Arcanum/internal/store"
	"github.com/Shizuku-Yume/Arcanum/internal/ui"
)

var configKeys = []string{"api-key", "api-endpoint", "model-id", "theme", "google-search", "active-provider", "generation-params"}

func (a *app) runConfig(argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("usage: arcanum config get|set|clear|explain|provider ...")
	}

	switch argv[0] {
	case "get":
		if len(argv) != 2 {
			return fmt.Errorf("usage: arcanum config get <%s>", strings.Join(configKeys, "|"))
		}
		v, err := a.configGet(argv[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, v)
		return nil
	case "set":
		if len(argv) != 3 {
			return fmt.Errorf("usage: arcanum config set <key> <value>")
		}
		return a.configSet(argv[1], argv[2])
	case "clear":
		if len(argv) < 2 {
			return fmt.Errorf("usage: arcanum config clear <key>")
		}
		return a.configClear(argv[1], argv[2:])
	case "explain":
		p := config.ResolveProvider(config.Flags{}, a.settings, a.store)
		fmt.Fprint(a.stdout, config.Explain(a.settings, p))
		return nil
	case "provider", "providers":
		return a.runProvider(argv[1:])
	}
	return fmt.Errorf("unknown config command %q", argv[0])
}

func (a *app) configGet(key string) (string, error) {
	switch key {
	case "api-key":
		return config.MaskKey(a.store.APIKey()), nil
	case "api-endpoint":
		return a.store.APIEndpoint(), nil
	case "model-id":
		return a.store.ModelID(), nil
	case "theme":
		return a.store.Theme(), nil
	case "google-search":
		return strconv.FormatBool(a.store.GoogleSearchEnabled()), nil
	case "active-provider":
		return a.store.ActiveProviderID(), nil
	case "generation-params":
		p := a.store.GenerationParams()
		if p == nil {
			return "", nil
		}
		data, err := json.Marshal(p)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", unknownKey(key)
}

func (a *app) configSet(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "api-key":
		a.store.SetAPIKey(value)
	case "api-endpoint":
		a.store.SetAPIEndpoint(value)
	case "model-id":
		a.store.SetModelID(value)
	case "theme":
		if !slices.Contains([]string{ui.ThemeDark, ui.ThemeLight, ui.ThemeSystem}, value) {
			return fmt.Errorf("theme must be dark, light or system")
		}
		a.store.SetTheme(value)
	case "google-search":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("google-search: %w", err)
		}
		a.store.SetGoogleSearchEnabled(on)
	case "active-provider":
		return a.useProvider(value)
	default:
		return unknownKey(key)
	}
	return nil
}

func (a *app) configClear(key string, rest []string) error {
	switch key {
	case "api-key":
		a.store.ClearAPIKey()
	case "api-endpoint":
		a.store.ClearAPIEndpoint()
	case "model-id":
		a.store.ClearModelID()
	case "model-cache":
		endpoint := ""
		if len(rest) > 0 {
			endpoint = rest[0]
		}
		a.store.ClearModelCache(endpoint)
	case "theme":
		a.store.SetTheme(store.DefaultTheme)
	case "active-provider":
		a.store.SetActiveProviderID("")
	default:
		return unknownKey(key)
	}
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown key %q (known: %s)", key, strings.Join(configKeys, ", "))
}

func (a *app) runProvider(argv []string) error {
	if len(argv) == 0 || argv[0] == "list" {
		a.listProviders()
		return nil
	}

	switch argv[0] {
	case "add":
		return a.addProvider(argv[1:])
	case "use":
		if len(argv) != 2 {
			return fmt.Errorf("usage: arcanum config provider use <id|none>")
		}
		return a.useProvider(argv[1])
	case "remove", "rm":
		if len(argv) != 2 {
			return fmt.Errorf("usage: arcanum config provider remove <id>")
		}
		return a.removeProvider(argv[1])
	}
	return fmt.Errorf("unknown provider command %q", argv[0])
}

func (a *app) addProvider(argv []string) error {
	var p store.ProviderConfig
	var activate bool

	fs := flag.NewFlagSet("provider add", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&p.ID, "id", "", "Profile id (generated when empty)")
	fs.StringVar(&p.Name, "name", "", "Display name")
	fs.StringVar(&p.Endpoint, "endpoint", "", "API base URL")
	fs.StringVar(&p.APIKey, "key", "", "API key")
	fs.StringVar(&p.ModelID, "model", "", "Default model id")
	fs.BoolVar(&activate, "use", false, "Make this the active provider")
	if err := fs.Parse(argv); errors.Is(err, flag.ErrHelp) {
		return nil
	} else if err != nil {
		return err
	}

	if p.Endpoint == "" {
		return fmt.Errorf("provider add: -endpoint is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Name == "" {
		p.Name = p.ID
	}

	configs := a.store.APIConfigs()
	if i := slices.IndexFunc(configs, func(c store.ProviderConfig) bool { return c.ID == p.ID }); i >= 0 {
		configs[i] = p
	} else {
		configs = append(configs, p)
	}
	a.store.SetAPIConfigs(configs)
	if activate {
		a.store.SetActiveProviderID(p.ID)
	}
	fmt.Fprintln(a.stdout, p.ID)
	return nil
}

func (a *app) useProvider(id string) error {
	if id == "" || id == "none" {
		a.store.SetActiveProviderID("")
		return nil
	}
	if !slices.ContainsFunc(a.store.APIConfigs(), func(c store.ProviderConfig) bool { return c.ID == id }) {
		return fmt.Errorf("no provider %q", id)
	}
	a.store.SetActiveProviderID(id)
	return nil
}

func (a *app) removeProvider(id string) error {
	configs := a.store.APIConfigs()
	n := len(configs)
	kept := slices.DeleteFunc(configs, func(c store.ProviderConfig) bool { return c.ID == id })
	if len(kept) == n {
		return fmt.Errorf("no provider %q", id)
	}
	a.store.SetAPIConfigs(kept)
	if a.store.ActiveProviderID() == id {
		a.store.SetActiveProviderID("")
	}
	return nil
}

func (a *app) listProviders() {
	configs := a.store.APIConfigs()
	if len(configs) == 0 {
		fmt.Fprintln(a.stderr, a.styles.Dim.Render("no providers; add one with `arcanum config provider add -endpoint URL -key KEY`"))
		return
	}
	active := a.store.ActiveProviderID()

	var data [][]string
	for _, c := range configs {
		mark := ""
		if c.ID == active {
			mark = "*"
		}
		data = append(data, []string{mark + c.ID, c.Name, c.Endpoint, c.ModelID, config.MaskKey(c.APIKey)})
	}

	table := tablewriter.NewWriter(a.stdout)
	table.SetHeader([]string{"ID", "NAME", "ENDPOINT", "MODEL", "KEY"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.SetAutoWrapText(false)
	table.AppendBulk(data)
	table.Render()
}
