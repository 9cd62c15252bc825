// Package bind substitutes literal values into query template placeholders.
//
// A placeholder is a SPARQL variable token, ?name. Binding name replaces
// every whole-token occurrence of ?name: ?name_label and ?names are left
// alone. This is plain text substitution over a fixed vocabulary, not a
// templating language.
package bind

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/hubmapy/internal/errs"
)

// placeholderRe matches any ?name token.
var placeholderRe = regexp.MustCompile(`\?([A-Za-z_][A-Za-z0-9_]*)`)

// tokenRe returns the pattern matching ?name as a whole token.
func tokenRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`\?` + regexp.QuoteMeta(name) + `\b`)
}

// Bind replaces each bound placeholder in body with its literal value.
// Placeholders without a binding pass through unchanged. Keys are applied
// in sorted order; values are inserted verbatim and never re-scanned for
// the placeholder being replaced.
func Bind(body string, bindings map[string]string) string {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	out := body
	for _, name := range names {
		if name == "" {
			continue
		}
		out = tokenRe(name).ReplaceAllLiteralString(out, bindings[name])
	}
	return out
}

// Placeholders returns the sorted, distinct placeholder names in body.
func Placeholders(body string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	sort.Strings(names)
	return names
}

// Contains reports whether ?name occurs in body as a whole token.
func Contains(body, name string) bool {
	return tokenRe(name).MatchString(body)
}

// Check fails with MISSING_BINDING if any of the declared placeholders is
// still present in bound.
func Check(bound string, declared []string) error {
	var missing []string
	for _, name := range declared {
		if Contains(bound, name) {
			missing = append(missing, "?"+name)
		}
	}
	if len(missing) > 0 {
		return errs.New(errs.CodeMissingBinding, "bind.check",
			fmt.Sprintf("unbound placeholders: %s", strings.Join(missing, ", ")))
	}
	return nil
}
