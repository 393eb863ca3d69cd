package registry

import (
	"net/url"
	"strings"
)

// DefaultBaseURL is the versioned Resights API base.
const DefaultBaseURL = "https://api.resights.dk/api/v2"

const bearerPrefix = "Bearer "

// AuthContext holds the registry location and credentials. It is validated
// once by NewAuthContext and is read-only afterwards, so a single value may be
// shared by every component and goroutine.
type AuthContext struct {
	baseURL    string
	healthRoot string
	token      string
}

// AuthOption configures an AuthContext.
type AuthOption func(*AuthContext)

// WithHealthRoot overrides the root the liveness probe is served from.
// By default it is the scheme and host of the base URL.
func WithHealthRoot(root string) AuthOption {
	return func(a *AuthContext) {
		if root != "" {
			a.healthRoot = strings.TrimRight(root, "/")
		}
	}
}

// NewAuthContext validates the base URL and token. A missing token is a
// configuration failure; no component can be used without one.
func NewAuthContext(baseURL, token string, opts ...AuthOption) (AuthContext, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return AuthContext{}, newError(KindConfiguration, "auth", "registry API token is not configured", nil)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return AuthContext{}, newError(KindConfiguration, "auth", "registry base URL is invalid", err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return AuthContext{}, newError(KindConfiguration, "auth", "registry base URL must be an absolute http(s) URL", nil)
	}

	a := AuthContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		healthRoot: parsed.Scheme + "://" + parsed.Host,
		token:      token,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&a)
		}
	}
	return a, nil
}

// BaseURL returns the versioned API base without a trailing slash.
func (a AuthContext) BaseURL() string { return a.baseURL }

// HealthRoot returns the root the liveness probe is served from.
func (a AuthContext) HealthRoot() string { return a.healthRoot }

// Valid reports whether the context was built by NewAuthContext.
func (a AuthContext) Valid() bool {
	return a.token != "" && a.baseURL != ""
}

// authorization renders the Authorization header value. Tokens that already
// carry the scheme are used as-is.
func (a AuthContext) authorization() string {
	if strings.HasPrefix(a.token, bearerPrefix) {
		return a.token
	}
	return bearerPrefix + a.token
}

// endpoint joins a relative path onto the base URL.
func (a AuthContext) endpoint(path string) string {
	return a.baseURL + "/" + strings.TrimLeft(path, "/")
}
