package httpclient

import (
	"errors"
	"fmt"
	"strings"
)

// APIVersion is the Discord REST API version targeted by this client.
const APIVersion = 10

// DefaultBaseURL is the API root every Route is resolved against unless the
// client is configured with another BaseURL.
var DefaultBaseURL = fmt.Sprintf("https://discord.com/api/v%d", APIVersion)

// ErrMissingRouteParam is returned when a path template references a
// parameter that was not supplied.
var ErrMissingRouteParam = errors.New("missing route parameter")

// Params holds named path parameters for a Route.
type Params map[string]any

// Route describes a single API call: the HTTP method, the path template and
// the major parameters Discord uses to partition its rate-limit buckets.
type Route struct {
	Method string
	// Path is the unresolved template, e.g. "/channels/{channel_id}/messages".
	Path string

	ChannelID    string
	GuildID      string
	WebhookID    string
	WebhookToken string

	endpoint string
}

// NewRoute resolves the path template with params. String values are
// URL-escaped, other values are formatted with fmt.Sprint.
func NewRoute(method, path string, params Params) (Route, error) {
	endpoint, err := expandPath(path, params)
	if err != nil {
		return Route{}, err
	}

	return Route{
		Method:       method,
		Path:         path,
		ChannelID:    majorParam(params, "channel_id"),
		GuildID:      majorParam(params, "guild_id"),
		WebhookID:    majorParam(params, "webhook_id"),
		WebhookToken: majorParam(params, "webhook_token"),
		endpoint:     endpoint,
	}, nil
}

// MustRoute is like NewRoute but panics on error. Intended for static routes.
func MustRoute(method, path string, params Params) Route {
	r, err := NewRoute(method, path, params)
	if err != nil {
		panic(err)
	}
	return r
}

// Bucket returns the rate-limit bucket key. The method and webhook parameters
// are not part of the key, so GET and POST on the same channel path share a
// bucket.
func (r Route) Bucket() string {
	return r.ChannelID + ":" + r.GuildID + ":" + r.Path
}

// Endpoint returns the resolved path relative to the API root.
func (r Route) Endpoint() string {
	return r.endpoint
}

// URL returns the fully-qualified URL against DefaultBaseURL.
func (r Route) URL() string {
	return r.urlFor(DefaultBaseURL)
}

func (r Route) urlFor(base string) string {
	return strings.TrimSuffix(base, "/") + r.endpoint
}

func (r Route) String() string {
	return r.Method + " " + r.Path
}

func majorParam(params Params, name string) string {
	v, ok := params[name]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// expandPath substitutes every {name} placeholder of the template.
func expandPath(path string, params Params) (string, error) {
	var b strings.Builder
	b.Grow(len(path))

	rest := path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("route %q: unterminated placeholder", path)
		}
		name := rest[open+1 : open+end]

		v, ok := params[name]
		if !ok {
			return "", fmt.Errorf("route %q: %w %q", path, ErrMissingRouteParam, name)
		}

		b.WriteString(rest[:open])
		if s, isString := v.(string); isString {
			b.WriteString(quote(s, "/"))
		} else {
			b.WriteString(fmt.Sprint(v))
		}
		rest = rest[open+end+1:]
	}
}

// quote percent-encodes every byte except unreserved characters and the
// bytes listed in safe.
func quote(s, safe string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || strings.IndexByte(safe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
