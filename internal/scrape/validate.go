package scrape

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidProductURL is returned for links that do not point at a supported store.
var ErrInvalidProductURL = errors.New("invalid product url")

// ValidateProductURL checks that rawURL is an absolute link to an Amazon host.
// Accepted hosts: www.amazon.com, anything containing "amazon.", or ending with "amazon".
func ValidateProductURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProductURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProductURL, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "www.amazon.com" || strings.Contains(host, "amazon.") || strings.HasSuffix(host, "amazon") {
		return nil
	}
	return fmt.Errorf("%w: host %q is not an amazon store", ErrInvalidProductURL, host)
}
