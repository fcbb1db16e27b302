// Package query builds validated requests for the DonorsChoose project
// listing API.
//
// Build is pure: it never performs I/O, and it either returns a complete
// request or an error wrapping ErrInvalidParameter. Nothing is partially
// applied.
//
//	req, err := query.Build(query.Params{
//		Keywords: "canoga park",
//		PageSize: query.MaxPageSize,
//		Filters:  query.Filters{}.Add(query.FilterState, "CA"),
//	})
package query

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultBaseURL is the JSON listing endpoint.
	DefaultBaseURL = "https://api.donorschoose.org/common/json_feed.html"

	// DefaultAPIKey is the public key DonorsChoose issues for testing.
	DefaultAPIKey = "DONORSCHOOSE"

	// MaxPageSize is the hard cap the API places on records per request.
	MaxPageSize = 50
)

// Params describes one listing request.
type Params struct {
	// Keywords is a free-text phrase matched as a whole.
	Keywords string

	// Start is the zero-based offset into the server-side result set.
	Start int

	// PageSize must be between 1 and MaxPageSize.
	PageSize int

	// APIKey defaults to DefaultAPIKey when empty.
	APIKey string

	// Filters are appended in order after validation.
	Filters Filters

	// BoundingBox is nil or exactly {north, west, south, east}.
	BoundingBox []float64

	// Concise requests the reduced field set.
	Concise bool

	// BaseURL overrides DefaultBaseURL.
	BaseURL string
}

// Request is a fully formed GET request descriptor.
type Request struct {
	URL      string
	Start    int
	PageSize int
}

// String returns the request URL.
func (r *Request) String() string {
	return r.URL
}

// Build validates p and returns the request descriptor.
func Build(p Params) (*Request, error) {
	if p.PageSize < 1 || p.PageSize > MaxPageSize {
		return nil, invalid("max", "page size must be between 1 and %d (got %d)", MaxPageSize, p.PageSize)
	}
	if p.Start < 0 {
		return nil, invalid("index", "start offset must not be negative (got %d)", p.Start)
	}
	if n := len(p.BoundingBox); n != 0 && n != 4 {
		return nil, invalid("bounding_box", "need 4 coordinates (north, west, south, east), got %d", n)
	}
	if err := p.Filters.Validate(); err != nil {
		return nil, err
	}

	base := p.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	apiKey := p.APIKey
	if apiKey == "" {
		apiKey = DefaultAPIKey
	}

	var b strings.Builder
	b.WriteString(base)
	if strings.Contains(base, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	b.WriteString("APIKey=")
	b.WriteString(url.QueryEscape(apiKey))
	b.WriteString("&keywords=%22")
	b.WriteString(keywordPhrase(p.Keywords))
	b.WriteString("%22&index=")
	b.WriteString(strconv.Itoa(p.Start))
	b.WriteString("&max=")
	b.WriteString(strconv.Itoa(p.PageSize))

	if p.Concise {
		b.WriteString("&concise=true")
	}

	if len(p.BoundingBox) == 4 {
		for i, name := range []string{"nwLat", "nwLng", "seLat", "seLng"} {
			appendParam(&b, name, strconv.FormatFloat(p.BoundingBox[i], 'f', -1, 64))
		}
	}

	for _, f := range p.Filters {
		appendParam(&b, string(f.Name), f.Value)
	}

	return &Request{
		URL:      b.String(),
		Start:    p.Start,
		PageSize: p.PageSize,
	}, nil
}

// keywordPhrase escapes each whitespace-separated token and joins them with '+'.
func keywordPhrase(keywords string) string {
	tokens := strings.Fields(keywords)
	for i, tok := range tokens {
		tokens[i] = url.QueryEscape(tok)
	}
	return strings.Join(tokens, "+")
}

func appendParam(b *strings.Builder, name, value string) {
	b.WriteByte('&')
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))
}
