package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// wrapperKeys lists the envelope keys the search result list may sit under,
// in priority order. The first non-empty one wins.
var wrapperKeys = [...]string{"data", "results", "items"}

// Resolver maps BFE numbers to registry property records.
type Resolver struct {
	client *Client
}

// NewResolver builds a resolver on a shared client.
func NewResolver(client *Client) (*Resolver, error) {
	if client == nil {
		return nil, newError(KindConfiguration, "resolve", "registry client is required", nil)
	}
	return &Resolver{client: client}, nil
}

// Resolve returns the registry property id for bfe.
func (r *Resolver) Resolve(ctx context.Context, bfe BFE) (string, error) {
	record, err := r.search(ctx, "resolve", bfe, RecordTimeout)
	if err != nil {
		return "", err
	}
	id, ok := identifier(record["id"])
	if !ok {
		return "", newError(KindTransform, "resolve", fmt.Sprintf("search result for BFE %s has no id", bfe), nil)
	}
	return id, nil
}

// Search returns the first raw search result for bfe. Only the first page
// is consulted and only its first match is returned.
func (r *Resolver) Search(ctx context.Context, bfe BFE) (map[string]any, error) {
	return r.search(ctx, "search", bfe, RecordTimeout)
}

func (r *Resolver) search(ctx context.Context, op string, bfe BFE, timeout time.Duration) (map[string]any, error) {
	if bfe.IsZero() {
		return nil, newError(KindInvalidRequest, op, "BFE number must be a positive integer", nil)
	}
	resp, err := r.client.do(ctx, op, request{
		method:  http.MethodGet,
		url:     r.client.auth.endpoint("properties"),
		query:   url.Values{"bfe_number": []string{bfe.String()}},
		timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, authAwareError(op, resp)
	}

	payload, err := decodeJSON(resp.body)
	if err != nil {
		return nil, &Error{Kind: KindTransform, Op: op, Message: "search response is not valid JSON", Status: resp.status, Err: err}
	}
	first, found := firstResult(payload)
	if !found {
		return nil, newError(KindNotFound, op, fmt.Sprintf("no property found for BFE %s", bfe), nil)
	}
	record, ok := first.(map[string]any)
	if !ok {
		return nil, newError(KindTransform, op, fmt.Sprintf("search result for BFE %s is %s, not an object", bfe, jsonKind(first)), nil)
	}
	if _, ok := identifier(record["id"]); !ok {
		return nil, newError(KindTransform, op, fmt.Sprintf("search result for BFE %s has no id", bfe), nil)
	}
	return record, nil
}

// firstResult extracts the first element of the search result list. The
// wrapper keys are tried in order, then a bare top-level array. An object
// carrying its own id is the record itself.
func firstResult(payload any) (any, bool) {
	switch v := payload.(type) {
	case []any:
		if len(v) > 0 {
			return v[0], true
		}
	case map[string]any:
		for _, key := range wrapperKeys {
			if list, ok := v[key].([]any); ok && len(list) > 0 {
				return list[0], true
			}
		}
		if _, ok := identifier(v["id"]); ok {
			return v, true
		}
	}
	return nil, false
}

// decodeJSON decodes a single JSON document, keeping numbers as json.Number.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON document")
	}
	return v, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case json.Number, float64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
