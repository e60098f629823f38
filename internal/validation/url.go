// Package validation checks user-supplied values shared across domains.
package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLError reports why a link was rejected.
type URLError struct {
	Field   string
	Message string
	URL     string
}

func (e URLError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// Link validates an external link such as a job posting or a registration
// form. Empty is allowed; anything else must be an absolute http(s) URL.
func Link(raw, field string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return URLError{Field: field, Message: "invalid URL format", URL: raw}
	}
	if parsed.Scheme == "" {
		return URLError{Field: field, Message: "URL must include a scheme (http:// or https://)", URL: raw}
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return URLError{Field: field, Message: "URL scheme must be http or https", URL: raw}
	}
	if parsed.Host == "" {
		return URLError{Field: field, Message: "URL must include a host", URL: raw}
	}
	return nil
}

// OptionalLink is Link for pointer fields; nil passes.
func OptionalLink(raw *string, field string) error {
	if raw == nil {
		return nil
	}
	return Link(*raw, field)
}
