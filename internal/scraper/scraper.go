// Package scraper drives a live browser page to extract product data from
// storefront pages: variant/image mappings, prices, descriptions and
// collection listings.
package scraper

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidURL       = errors.New("url must start with http:// or https://")
	ErrPageLoadTimeout  = errors.New("page did not load within timeout")
	ErrSelectionTimeout = errors.New("gallery image did not change after selecting variant")
)

// SelectionTimeoutError reports which variant stalled so the caller can see
// where the extraction desynced. It unwraps to ErrSelectionTimeout.
type SelectionTimeoutError struct {
	Variant string
}

func (e *SelectionTimeoutError) Error() string {
	return fmt.Sprintf("variant %q: %v", e.Variant, ErrSelectionTimeout)
}

func (e *SelectionTimeoutError) Unwrap() error {
	return ErrSelectionTimeout
}

// ValidateURL enforces the http/https precondition before any browser cost
// is spent on the URL.
func ValidateURL(rawURL string) error {
	lower := strings.ToLower(rawURL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return ErrInvalidURL
	}
	return nil
}
