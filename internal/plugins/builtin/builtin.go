// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

// Package builtin provides the plugins that ship with hermod itself:
// introspection commands and a small set of passive handlers. Feature
// plugins live in their own sources; builtins only depend on the engine.
package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hermodbot/hermod/internal/admission"
	"github.com/hermodbot/hermod/internal/classify"
	"github.com/hermodbot/hermod/internal/registry"
)

// SourceID is the registration owner for all builtin definitions.
const SourceID = "builtin"

// Deps are the engine handles the builtins introspect.
type Deps struct {
	Registry  *registry.Registry
	Admission *admission.Controller
	StartedAt time.Time
}

// NewSource returns the builtin plugin source.
func NewSource(deps Deps) registry.Source {
	return registry.NewStaticSource(SourceID, func() ([]*registry.Definition, error) {
		return []*registry.Definition{
			pingDefinition(deps),
			echoDefinition(),
			helpDefinition(deps),
			statsDefinition(deps),
			greeterDefinition(),
		}, nil
	})
}

func pingDefinition(deps Deps) *registry.Definition {
	return &registry.Definition{
		Name:        "ping",
		DisplayName: "Ping",
		Description: "Check that the bot is alive and measure round-trip time.",
		Category:    "info",
		Tags:        []string{"health"},
		Policy: registry.Policy{
			Cooldown: time.Second,
		},
		Handler: func(ctx context.Context, inv *registry.Invocation) error {
			uptime := time.Since(deps.StartedAt).Round(time.Second)
			_, err := inv.Context.Caps.Reply(ctx, fmt.Sprintf("pong, up %s", uptime))
			return err
		},
	}
}

func echoDefinition() *registry.Definition {
	return &registry.Definition{
		Name:        "echo",
		DisplayName: "Echo",
		Description: "Repeat the given text back into the chat.",
		Aliases:     []string{"say"},
		Category:    "utility",
		Handler: func(ctx context.Context, inv *registry.Invocation) error {
			if inv.ArgsText == "" {
				_, err := inv.Context.Caps.Reply(ctx, "Nothing to echo.")
				return err
			}
			_, err := inv.Context.Caps.Reply(ctx, inv.ArgsText)
			return err
		},
	}
}

func helpDefinition(deps Deps) *registry.Definition {
	return &registry.Definition{
		Name:        "help",
		DisplayName: "Help",
		Description: "List commands, or show details for one command.",
		Aliases:     []string{"menu", "commands"},
		Category:    "info",
		Handler: func(ctx context.Context, inv *registry.Invocation) error {
			if inv.ArgsText != "" {
				return helpFor(ctx, deps, inv)
			}
			return helpIndex(ctx, deps, inv)
		},
	}
}

func helpIndex(ctx context.Context, deps Deps, inv *registry.Invocation) error {
	prefix := deps.Registry.Prefix()
	var b strings.Builder
	b.WriteString("Commands by category:\n")
	for _, cat := range deps.Registry.Categories() {
		names := deps.Registry.ByCategory(cat)
		sort.Strings(names)
		fmt.Fprintf(&b, "\n%s: %s%s", cat, prefix, strings.Join(names, ", "+prefix))
	}
	fmt.Fprintf(&b, "\n\nUse %shelp <command> for details.", prefix)
	_, err := inv.Context.Caps.Reply(ctx, b.String())
	return err
}

func helpFor(ctx context.Context, deps Deps, inv *registry.Invocation) error {
	query := strings.TrimSpace(inv.ArgsText)
	matches := deps.Registry.Search(query)
	if len(matches) == 0 {
		_, err := inv.Context.Caps.Reply(ctx, fmt.Sprintf("No command matching %q.", query))
		return err
	}

	def := matches[0]
	prefix := deps.Registry.Prefix()
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s", prefix, def.Name)
	if len(def.Aliases) > 0 {
		fmt.Fprintf(&b, " (aliases: %s)", strings.Join(def.Aliases, ", "))
	}
	if def.Description != "" {
		fmt.Fprintf(&b, "\n%s", def.Description)
	}
	if !def.Enabled {
		fmt.Fprintf(&b, "\nCurrently disabled: %s", def.DisabledReason)
	}
	_, err := inv.Context.Caps.Reply(ctx, b.String())
	return err
}

func statsDefinition(deps Deps) *registry.Definition {
	return &registry.Definition{
		Name:        "stats",
		DisplayName: "Stats",
		Description: "Show per-command usage counters and the daily quota.",
		Category:    "info",
		Policy: registry.Policy{
			OwnerOnly: true,
		},
		Handler: func(ctx context.Context, inv *registry.Invocation) error {
			var b strings.Builder
			b.WriteString("Command usage:\n")

			defs := deps.Registry.All()
			sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
			for _, def := range defs {
				if def.Stats == nil {
					continue
				}
				snap := def.Stats.Snapshot()
				if snap.Calls == 0 && snap.Errors == 0 {
					continue
				}
				fmt.Fprintf(&b, "%s: %d calls, %d errors, %.0fms avg\n",
					def.Name, snap.Calls, snap.Errors, snap.AvgLatencyMs)
			}

			q := deps.Admission.Quota()
			fmt.Fprintf(&b, "\nToday: %d messages, %d broadcasts, %d marketing",
				q.Messages, q.Broadcasts, q.Marketing)

			_, err := inv.Context.Caps.Reply(ctx, b.String())
			return err
		},
	}
}

// greeterDefinition is a passive handler: it answers plain greetings in
// private chats without a command prefix.
func greeterDefinition() *registry.Definition {
	greetings := map[string]bool{
		"hi": true, "hello": true, "hey": true,
	}
	return &registry.Definition{
		Name:        "greeter",
		DisplayName: "Greeter",
		Description: "Respond to plain greetings in private chats.",
		Category:    "utility",
		Priority:    10,
		MessageFilter: func(ic *classify.Context) bool {
			return ic.IsPrivate && ic.Kind == classify.KindText
		},
		OnMessage: func(ctx context.Context, inv *registry.Invocation) (bool, error) {
			word := strings.ToLower(strings.TrimSpace(inv.Context.Body))
			if !greetings[word] {
				return false, nil
			}
			_, err := inv.Context.Caps.Reply(ctx, "Hello! Send "+word+" again or try a command.")
			return true, err
		},
	}
}
