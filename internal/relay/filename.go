package relay

import (
	"net/url"
	"strings"
)

// FallbackFilename is used when the URL has no usable last path segment.
const FallbackFilename = "file.bin"

// DeriveFilename takes the last segment of the URL's decoded path, ignoring query and
// fragment. Percent escapes are decoded, so "My%20File.pdf" becomes "My File.pdf" and an
// escaped slash splits the segment. A URL ending in a slash yields FallbackFilename.
func DeriveFilename(rawURL string) string {
	p := strings.SplitN(rawURL, "?", 2)[0]
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}

	name := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		name = p[i+1:]
	}

	switch strings.TrimSpace(name) {
	case "", ".", "..":
		return FallbackFilename
	}

	return name
}
