package registry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

type recordedRequest struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	ContentType   string
	Body          string
}

// fakeRegistry is an httptest registry serving the versioned API under
// /api/v2 and the liveness probe at the root.
type fakeRegistry struct {
	t      *testing.T
	server *httptest.Server
	mux    *http.ServeMux

	mu       sync.Mutex
	requests []recordedRequest
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	f := &fakeRegistry{t: t, mux: http.NewServeMux()}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			ContentType:   r.Header.Get("Content-Type"),
			Body:          string(body),
		})
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRegistry) baseURL() string {
	return f.server.URL + "/api/v2"
}

// handle registers a canned response for a ServeMux pattern.
func (f *fakeRegistry) handle(pattern string, status int, body string) {
	f.mux.HandleFunc(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (f *fakeRegistry) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeRegistry) client(opts ...ClientOption) *Client {
	f.t.Helper()
	auth, err := NewAuthContext(f.baseURL(), testToken)
	require.NoError(f.t, err)
	client, err := NewClient(auth, opts...)
	require.NoError(f.t, err)
	return client
}

func (f *fakeRegistry) resolver() *Resolver {
	f.t.Helper()
	r, err := NewResolver(f.client())
	require.NoError(f.t, err)
	return r
}

// searchBody is a search response for property abc-123 with two units and
// one building.
const searchBody = `{
	"data": [{
		"id": "abc-123",
		"bfe_number": 6022110,
		"bbr": {
			"units": [
				{"id": "u1", "status": "active", "enh020_unit_usage": 120, "enh026_area_unit_total": 85.5, "enh031_number_rooms": 3},
				{"id": "u2", "status": "inactive", "enh020_unit_usage": 140, "enh026_area_unit_total": 42}
			],
			"buildings": [
				{"id": "b1", "byg021_usage": 130}
			]
		}
	}]
}`
