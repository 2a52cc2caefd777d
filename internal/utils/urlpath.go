package utils

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrInvalidURL is returned for links that cannot be handed to the engine
var ErrInvalidURL = errors.New("invalid URL")

// ValidateDownloadURL trims and checks a user supplied link.
// Only absolute http, https, ftp and data URLs are accepted.
func ValidateDownloadURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "ftp":
		if parsed.Host == "" {
			return "", fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
		}
	case "data":
	default:
		return "", fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidURL, rawURL)
	}

	return rawURL, nil
}

// URLFileName returns the unescaped last path segment of a URL
// Example: https://example.com/a/b/file%20name.zip?x=1 -> file name.zip
func URLFileName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" {
		return ""
	}

	name := path.Base(parsed.Path)
	if name == "/" || name == "." {
		return ""
	}
	return name
}
