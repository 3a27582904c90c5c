// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Hermod Contributors

package classify

import "strings"

// markupReplacer strips the rich-text control characters the transport
// renders, so user input cannot inject formatting into outgoing messages
// that echo it back.
var markupReplacer = strings.NewReplacer(
	"*", "",
	"_", "",
	"~", "",
	"`", "",
	"​", "",
	"‎", "",
	"‏", "",
)

// sanitize strips embedded markup and invisible characters from extracted
// text before it is used as the matching body or echoed to users.
func sanitize(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(markupReplacer.Replace(s))
}
