// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package registry

import (
	"regexp"
	"strings"

	"github.com/samber/oops"

	"github.com/hermodbot/hermod/internal/classify"
)

// Match is the result of command resolution.
type Match struct {
	Def          *Definition
	MatchedAlias string
	ArgsText     string
	Args         []string
	Flags        map[string]string
}

func defaultKinds() []classify.Kind {
	return []classify.Kind{classify.KindText}
}

// buildPattern compiles the match pattern for a name and its aliases:
// literal-escaped alternatives anchored at line start behind the prefix,
// requiring whitespace or end-of-string after the matched token,
// case-insensitive. The capture group reports which alias fired.
func buildPattern(prefix, name string, aliases []string) (*regexp.Regexp, error) {
	alts := make([]string, 0, 1+len(aliases))
	alts = append(alts, regexp.QuoteMeta(name))
	for _, a := range aliases {
		if a == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(a))
	}
	expr := `(?i)^` + regexp.QuoteMeta(prefix) + `(` + strings.Join(alts, "|") + `)(?:\s|$)`

	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, oops.Code(CodeInvalidPattern).
			With("name", name).
			Wrap(err)
	}
	return pattern, nil
}

// FindCommand resolves text against the registered, enabled commands in
// registration order. First enabled match wins; that ordering is the
// documented contract, there is no specificity tie-break. Returns nil when
// text does not carry the prefix or nothing matches.
func (r *Registry) FindCommand(text string, kind classify.Kind) *Match {
	if !strings.HasPrefix(text, r.prefix) {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, def := range r.order {
		if !def.Enabled || !def.isCommand() || def.pattern == nil {
			continue
		}
		if !def.supportsKind(kind) {
			continue
		}
		groups := def.pattern.FindStringSubmatch(text)
		if groups == nil {
			continue
		}

		remainder := strings.TrimSpace(text[len(groups[0]):])
		args, flags := parseArgs(remainder)
		argsText := remainder
		if len(flags) > 0 {
			// Flags are parsed out of the remainder text.
			argsText = strings.Join(args, " ")
		}
		return &Match{
			Def:          def,
			MatchedAlias: groups[1],
			ArgsText:     argsText,
			Args:         args,
			Flags:        flags,
		}
	}
	return nil
}

// parseArgs splits the remainder into whitespace-delimited tokens and pulls
// --flag / --flag=value tokens out. A bare --flag maps to "true".
func parseArgs(remainder string) ([]string, map[string]string) {
	if remainder == "" {
		return nil, nil
	}

	var args []string
	var flags map[string]string
	for _, tok := range strings.Fields(remainder) {
		if len(tok) > 2 && strings.HasPrefix(tok, "--") {
			if flags == nil {
				flags = make(map[string]string)
			}
			key, value, found := strings.Cut(tok[2:], "=")
			if !found {
				value = "true"
			}
			flags[key] = value
			continue
		}
		args = append(args, tok)
	}
	return args, flags
}

// Search performs a case-insensitive substring match across name, display
// name, description, aliases, category, and tags. Exact name or alias
// matches rank first; everything else keeps registration order.
func (r *Registry) Search(query string) []*Definition {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var exact, rest []*Definition
	for _, def := range r.order {
		if def.Name == "" {
			continue
		}
		if strings.EqualFold(def.Name, q) || containsFold(def.Aliases, q) {
			exact = append(exact, def)
			continue
		}
		if matchesQuery(def, q) {
			rest = append(rest, def)
		}
	}
	return append(exact, rest...)
}

func containsFold(list []string, q string) bool {
	for _, v := range list {
		if strings.EqualFold(v, q) {
			return true
		}
	}
	return false
}

func matchesQuery(def *Definition, q string) bool {
	if strings.Contains(strings.ToLower(def.Name), q) ||
		strings.Contains(strings.ToLower(def.DisplayName), q) ||
		strings.Contains(strings.ToLower(def.Description), q) ||
		strings.Contains(strings.ToLower(def.Category), q) {
		return true
	}
	for _, a := range def.Aliases {
		if strings.Contains(strings.ToLower(a), q) {
			return true
		}
	}
	for _, t := range def.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}
