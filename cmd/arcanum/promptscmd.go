// ABOUTME: The prompts command: list, show, add and remove prompt templates
// ABOUTME: add/remove edit the store; disk and builtin templates are read-only here

package main

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/Shizuku-Yume/Arcanum/internal/prompts"
	"github.com/Shizuku-Yume/Arcanum/internal/store"
)

func (a *app) runPrompts(argv []string) error {
	if len(argv) == 0 || argv[0] == "list" {
		a.listPrompts()
		return nil
	}

	switch argv[0] {
	case "show":
		if len(argv) != 2 {
			return fmt.Errorf("usage: arcanum prompts show <id>")
		}
		e, ok := prompts.Find(a.promptLoader().Load(), argv[1])
		if !ok {
			return fmt.Errorf("no prompt template matches %q", argv[1])
		}
		fmt.Fprintf(a.stdout, "%s (%s, %s)\n", a.styles.Accent.Render(e.Name), e.ID, e.Source)
		if e.Description != "" {
			fmt.Fprintln(a.stdout, a.styles.Dim.Render(e.Description))
		}
		fmt.Fprintln(a.stdout)
		fmt.Fprintln(a.stdout, e.Prompt)
		return nil
	case "add":
		return a.addPrompt(argv[1:])
	case "remove", "rm":
		if len(argv) != 2 {
			return fmt.Errorf("usage: arcanum prompts remove <id>")
		}
		return a.removePrompt(argv[1])
	}
	return fmt.Errorf("unknown prompts command %q", argv[0])
}

func (a *app) listPrompts() {
	var data [][]string
	for _, e := range a.promptLoader().Load() {
		data = append(data, []string{e.ID, e.Name, string(e.Source), e.Description})
	}

	table := tablewriter.NewWriter(a.stdout)
	table.SetHeader([]string{"ID", "NAME", "SOURCE", "DESCRIPTION"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}

// addPrompt stores a template: arcanum prompts add -name N <id> <template text>.
func (a *app) addPrompt(argv []string) error {
	var t store.StyleTemplate

	fs := flag.NewFlagSet("prompts add", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&t.Name, "name", "", "Display name (defaults to the id)")
	fs.StringVar(&t.Description, "description", "", "Short description")
	if err := fs.Parse(argv); errors.Is(err, flag.ErrHelp) {
		return nil
	} else if err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: arcanum prompts add [-name N] [-description D] <id> <template text with %s>", prompts.Placeholder)
	}

	t.ID = fs.Arg(0)
	t.Prompt = strings.TrimSpace(strings.Join(fs.Args()[1:], " "))
	if t.Name == "" {
		t.Name = t.ID
	}

	custom := a.store.CustomPrompts()
	if i := slices.IndexFunc(custom, func(c store.StyleTemplate) bool { return c.ID == t.ID }); i >= 0 {
		custom[i] = t
	} else {
		custom = append(custom, t)
	}
	a.store.SetCustomPrompts(custom)
	return nil
}

func (a *app) removePrompt(id string) error {
	custom := a.store.CustomPrompts()
	n := len(custom)
	custom = slices.DeleteFunc(custom, func(c store.StyleTemplate) bool { return c.ID == id })
	if len(custom) == n {
		return fmt.Errorf("no stored prompt template %q", id)
	}
	a.store.SetCustomPrompts(custom)
	return nil
}
