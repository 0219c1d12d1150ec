// ABOUTME: The models command: lists the endpoint's models as a table, cached per endpoint
// ABOUTME: -filter ranks entries with sahilm/fuzzy; -refresh bypasses the cache

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/sahilm/fuzzy"

	"github.com/Shizuku-Yume/Arcanum/internal/config"
	pilog "github.com/Shizuku-Yume/Arcanum/internal/log"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen"
	"github.com/Shizuku-Yume/Arcanum/pkg/imagegen/provider/openai"
)

// modelLister is the part of the provider the models command uses.
type modelLister interface {
	ListModels(ctx context.Context, endpoint, apiKey string) ([]imagegen.Model, error)
}

func (a *app) runModels(ctx context.Context, argv []string) error {
	var endpoint, key, filter string
	var refresh, clearCache bool

	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&endpoint, "endpoint", "", "API base URL")
	fs.StringVar(&key, "key", "", "API key")
	fs.StringVar(&filter, "filter", "", "Fuzzy filter on model id and name")
	fs.BoolVar(&refresh, "refresh", false, "Ignore the cached list")
	fs.BoolVar(&clearCache, "clear-cache", false, "Clear the cached list for the endpoint and exit")
	if err := fs.Parse(argv); errors.Is(err, flag.ErrHelp) {
		return nil
	} else if err != nil {
		return err
	}
	if filter == "" {
		filter = strings.Join(fs.Args(), " ")
	}

	provider := config.ResolveProvider(config.Flags{Endpoint: endpoint, APIKey: key}, a.settings, a.store)
	if clearCache {
		a.store.ClearModelCache(provider.Endpoint)
		return nil
	}

	opts, err := a.modelOptions(ctx, openai.New(provider.Endpoint), provider, refresh)
	if err != nil {
		return err
	}
	opts = filterModels(opts, filter)
	if len(opts) == 0 {
		fmt.Fprintln(a.stderr, a.styles.Dim.Render("no matching models"))
		return nil
	}
	renderModels(a.stdout, opts, provider.Model)
	return nil
}

// modelOptions returns the cached list for the endpoint, fetching and
// caching it when missing or when refresh is set.
func (a *app) modelOptions(ctx context.Context, lister modelLister, provider *config.Provider, refresh bool) ([]imagegen.ModelOption, error) {
	if !refresh {
		if cached := a.store.ModelCache(provider.Endpoint); len(cached) > 0 {
			pilog.Debug("models: %d cached for %s", len(cached), provider.Endpoint)
			return cached, nil
		}
	}
	if provider.APIKey == "" {
		return nil, errNoAPIKey
	}

	models, err := lister.ListModels(ctx, provider.Endpoint, provider.APIKey)
	if err != nil {
		return nil, err
	}
	opts := imagegen.Options(models)
	a.store.SetModelCache(provider.Endpoint, opts)
	return opts, nil
}

type optionSource []imagegen.ModelOption

func (s optionSource) String(i int) string { return s[i].ID + " " + s[i].Label }
func (s optionSource) Len() int            { return len(s) }

// filterModels keeps fuzzy matches, best first. An empty query keeps all.
func filterModels(opts []imagegen.ModelOption, query string) []imagegen.ModelOption {
	query = strings.TrimSpace(query)
	if query == "" {
		return opts
	}
	matches := fuzzy.FindFrom(query, optionSource(opts))
	out := make([]imagegen.ModelOption, len(matches))
	for i, m := range matches {
		out[i] = opts[m.Index]
	}
	return out
}

func renderModels(w io.Writer, opts []imagegen.ModelOption, current string) {
	var data [][]string
	for _, o := range opts {
		mark := ""
		if o.ID == current {
			mark = "*"
		}
		label := o.Label
		if label == o.ID {
			label = ""
		}
		data = append(data, []string{mark + o.ID, label, strings.Join(imagegen.Modalities(o.ID), "+")})
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "NAME", "MODALITIES"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
