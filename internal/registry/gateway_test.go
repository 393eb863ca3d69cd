package registry

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/suite"
)

// =============================================================================
// Generic REST Gateway Test Suite
// =============================================================================

type GatewaySuite struct {
	suite.Suite
	registry *fakeRegistry
	gateway  *Gateway
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.registry = newFakeRegistry(s.T())
	var err error
	s.gateway, err = NewGateway(s.registry.client())
	s.Require().NoError(err)
}

func (s *GatewaySuite) TestCall() {
	s.Run("path is joined onto the base and query is sent", func() {
		s.registry.handle("GET /api/v2/company/12345678", http.StatusOK, `{"name":"ACME"}`)

		out, err := s.gateway.Call(context.Background(), CallRequest{
			Method: "get",
			Path:   "/company/12345678",
			Query:  url.Values{"expand": []string{"owners"}},
		})
		s.Require().NoError(err)
		s.JSONEq(`{"name":"ACME"}`, string(out))

		reqs := s.registry.recorded()
		s.Require().Len(reqs, 1)
		s.Equal(http.MethodGet, reqs[0].Method)
		s.Equal("expand=owners", reqs[0].Query)
		s.Equal("Bearer "+testToken, reqs[0].Authorization)
		s.Empty(reqs[0].ContentType)
	})

	s.Run("query in the path is merged with query parameters", func() {
		s.registry.handle("GET /api/v2/persons/lookup", http.StatusOK, `{"hits":[]}`)

		_, err := s.gateway.Call(context.Background(), CallRequest{
			Method: http.MethodGet,
			Path:   "persons/lookup?q=x",
			Query:  url.Values{"a": []string{"b"}},
		})
		s.Require().NoError(err)

		reqs := s.registry.recorded()
		last := reqs[len(reqs)-1]
		s.Equal("/api/v2/persons/lookup", last.Path)
		s.Equal("a=b&q=x", last.Query)
	})

	s.Run("body is JSON encoded", func() {
		s.registry.handle("POST /api/v2/persons/search", http.StatusOK, `{"hits":[]}`)

		_, err := s.gateway.Call(context.Background(), CallRequest{
			Method: http.MethodPost,
			Path:   "persons/search",
			Body:   map[string]any{"name": "Jensen"},
		})
		s.Require().NoError(err)

		reqs := s.registry.recorded()
		last := reqs[len(reqs)-1]
		s.Equal("application/json", last.ContentType)
		s.JSONEq(`{"name":"Jensen"}`, last.Body)
	})
}

func (s *GatewaySuite) TestResponses() {
	s.Run("204 yields the success marker", func() {
		s.registry.handle("DELETE /api/v2/watch/1", http.StatusNoContent, ``)

		out, err := s.gateway.Call(context.Background(), CallRequest{Method: "DELETE", Path: "watch/1"})
		s.Require().NoError(err)
		s.JSONEq(`{"status":"success","message":"Operation successful, no content returned."}`, string(out))
	})

	s.Run("empty 2xx body yields the success marker", func() {
		s.registry.handle("GET /api/v2/empty", http.StatusOK, ``)
		s.registry.handle("GET /api/v2/blank", http.StatusOK, " \n")

		for _, path := range []string{"empty", "blank"} {
			out, err := s.gateway.Call(context.Background(), CallRequest{Method: "GET", Path: path})
			s.Require().NoError(err)
			s.JSONEq(`{"status":"success","message":"Operation successful, no content returned."}`, string(out))
		}
	})

	s.Run("non-JSON 2xx body becomes a JSON string", func() {
		s.registry.handle("GET /api/v2/plain", http.StatusOK, `hello`)

		out, err := s.gateway.Call(context.Background(), CallRequest{Method: "GET", Path: "plain"})
		s.Require().NoError(err)
		s.Equal(`"hello"`, string(out))
	})

	s.Run("any non-2xx is upstream with status and body", func() {
		for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusServiceUnavailable} {
			reg := newFakeRegistry(s.T())
			reg.handle("GET /api/v2/fail", status, `nope`)
			gw, err := NewGateway(reg.client())
			s.Require().NoError(err)

			_, err = gw.Call(context.Background(), CallRequest{Method: "GET", Path: "fail"})
			var re *Error
			s.Require().ErrorAs(err, &re)
			s.Equal(KindUpstream, re.Kind)
			s.Equal(status, re.Status)
			s.Equal("nope", re.Body)
		}
	})
}

func (s *GatewaySuite) TestRejectsBeforeNetwork() {
	for name, req := range map[string]CallRequest{
		"unsupported method": {Method: "HEAD", Path: "x"},
		"empty method":       {Path: "x"},
		"empty path":         {Method: "GET"},
		"unencodable body":   {Method: "POST", Path: "x", Body: map[string]any{"ch": make(chan int)}},
	} {
		s.Run(name, func() {
			_, err := s.gateway.Call(context.Background(), req)
			s.ErrorIs(err, ErrInvalidRequest)
		})
	}
	s.Empty(s.registry.recorded())
}

func (s *GatewaySuite) TestQueryFromMap() {
	values, err := QueryFromMap(map[string]any{
		"q":      "vej",
		"limit":  float64(10),
		"active": true,
		"tag":    []any{"a", "b"},
		"skip":   nil,
	})
	s.Require().NoError(err)
	s.Equal("active=true&limit=10&q=vej&tag=a&tag=b", values.Encode())

	_, err = QueryFromMap(map[string]any{"bad": map[string]any{"x": 1}})
	s.ErrorIs(err, ErrInvalidRequest)

	values, err = QueryFromMap(nil)
	s.NoError(err)
	s.Nil(values)
}
