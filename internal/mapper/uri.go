package mapper

import (
	"fmt"
	"net/url"
	"strings"

	"gateway-proxy-go/internal/model"
)

// mapURI joins the encoded URI components of in into an absolute URL.
// Components are used exactly as received; nothing is escaped or unescaped.
func mapURI(in *model.InboundRequest) (*url.URL, error) {
	if in.Path != "" && in.Path[0] != '/' {
		return nil, fmt.Errorf("%w: path %q is not absolute", ErrMalformedURI, in.Path)
	}

	var b strings.Builder
	b.Grow(len(in.Scheme) + len(in.Host) + len(in.Path) + len(in.Query) + 4)
	b.WriteString(in.Scheme)
	b.WriteString("://")
	b.WriteString(in.Host)
	b.WriteString(in.Path)
	if in.Query != "" {
		b.WriteByte('?')
		b.WriteString(in.Query)
	}
	raw := b.String()

	// A request-target never carries a fragment.
	if strings.ContainsRune(raw, '#') {
		return nil, fmt.Errorf("%w: %q contains a fragment", ErrMalformedURI, raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedURI, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute URI", ErrMalformedURI, raw)
	}
	return u, nil
}
