// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

import "github.com/a-h/templ"

// ResultViewModel holds presentation-ready data for the page shown at the end
// of an authorization handshake. Fragment fields are nil when absent.
type ResultViewModel struct {
	Success bool
	Title   string
	Heading string

	// Message is sanitized HTML rendered from markdown.
	Message templ.Component

	// Provider failure details. StatusCode is zero when the provider was
	// never reached. ProviderBody is the response text with markup stripped.
	StatusCode   int
	ProviderBody templ.Component
	Hint         templ.Component
}
