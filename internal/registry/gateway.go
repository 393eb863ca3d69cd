package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// noContentMarker replaces the body of a 204 or an empty 2xx response.
var noContentMarker = json.RawMessage(`{"status":"success","message":"Operation successful, no content returned."}`)

var gatewayMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// CallRequest describes a passthrough call. Path is relative to the API base.
type CallRequest struct {
	Method string     `json:"method"`
	Path   string     `json:"path"`
	Query  url.Values `json:"query,omitempty"`
	Body   any        `json:"body,omitempty"`
}

// Gateway issues authenticated calls to arbitrary registry endpoints without
// interpreting the payload.
type Gateway struct {
	client *Client
}

// NewGateway returns a gateway forwarding calls through client.
func NewGateway(client *Client) (*Gateway, error) {
	if client == nil {
		return nil, newError(KindConfiguration, "call", "registry client is required", nil)
	}
	return &Gateway{client: client}, nil
}

// Call performs req and returns the response body. A 2xx body that is not
// JSON comes back as a JSON string.
func (g *Gateway) Call(ctx context.Context, req CallRequest) (json.RawMessage, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if !gatewayMethods[method] {
		return nil, newError(KindInvalidRequest, "call", fmt.Sprintf("unsupported method %q: use GET, POST, PUT, PATCH or DELETE", req.Method), nil)
	}
	if strings.TrimSpace(req.Path) == "" {
		return nil, newError(KindInvalidRequest, "call", "endpoint path is required", nil)
	}

	resp, err := g.client.do(ctx, "call", request{
		method:  method,
		url:     g.client.auth.endpoint(req.Path),
		query:   req.Query,
		body:    req.Body,
		timeout: GatewayTimeout,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, upstreamError("call", resp)
	}
	if resp.status == http.StatusNoContent || len(bytes.TrimSpace(resp.body)) == 0 {
		return append(json.RawMessage(nil), noContentMarker...), nil
	}
	return payload("call", resp)
}

// payload returns a JSON body as-is and wraps anything else as a JSON string.
func payload(op string, resp *response) (json.RawMessage, error) {
	if json.Valid(resp.body) {
		return json.RawMessage(resp.body), nil
	}
	text, err := json.Marshal(string(resp.body))
	if err != nil {
		return nil, &Error{Kind: KindTransform, Op: op, Message: "encode response text", Status: resp.status, Err: err}
	}
	return text, nil
}

// QueryFromMap converts decoded JSON query parameters into url.Values. Values
// may be scalars or arrays of scalars; null values are skipped.
func QueryFromMap(params map[string]any) (url.Values, error) {
	if len(params) == 0 {
		return nil, nil
	}
	values := make(url.Values, len(params))
	for key, raw := range params {
		switch v := raw.(type) {
		case nil:
		case []any:
			for _, elem := range v {
				s, ok := scalarString(elem)
				if !ok {
					return nil, newError(KindInvalidRequest, "call", fmt.Sprintf("query parameter %q has a non-scalar element", key), nil)
				}
				values.Add(key, s)
			}
		default:
			s, ok := scalarString(v)
			if !ok {
				return nil, newError(KindInvalidRequest, "call", fmt.Sprintf("query parameter %q must be a scalar or an array of scalars", key), nil)
			}
			values.Set(key, s)
		}
	}
	return values, nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}
