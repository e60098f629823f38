package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// maxPasses bounds the decode/sanitize loop for deeply entity-encoded input.
const maxPasses = 8

// Text strips markup from free-text input (names, skills, descriptions,
// notification bodies) and returns plain text. Entities are decoded and the
// result sanitized again until it no longer changes, so encoded markup
// cannot survive as live tags. Input that does not settle is returned in
// its escaped form.
func Text(input string) string {
	if input == "" {
		return ""
	}
	current := input
	for range maxPasses {
		next := html.UnescapeString(StrictPolicy.Sanitize(current))
		if next == current {
			return strings.TrimSpace(next)
		}
		current = next
	}
	return strings.TrimSpace(StrictPolicy.Sanitize(current))
}

// OptionalText applies Text to a nullable field, keeping nil as nil.
func OptionalText(input *string) *string {
	if input == nil {
		return nil
	}
	out := Text(*input)
	return &out
}
