package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// GraphQLRequest is a GraphQL query with optional variables.
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQLError is one error entry of a GraphQL response envelope.
type GraphQLError struct {
	Message string `json:"message"`
}

// GraphQLResponse is the typed response envelope.
type GraphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

// ErrorMessages joins the error messages for display.
func (r *GraphQLResponse[T]) ErrorMessages() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// graphqlEndpoint derives the GraphQL URL from the REST base URL.
//
// GitHub.com REST base: https://api.github.com/
// GitHub.com GraphQL:   https://api.github.com/graphql
//
// GHES REST base is typically: https://<host>/api/v3/
// GHES GraphQL:                https://<host>/api/graphql
func graphqlEndpoint(base *url.URL) (*url.URL, error) {
	if base == nil {
		return nil, fmt.Errorf("graphql: base url is nil")
	}

	u := *base
	u.RawQuery = ""
	u.Fragment = ""

	path := strings.TrimSuffix(u.Path, "/")
	if strings.HasSuffix(path, "/api/v3") {
		u.Path = "/api/graphql"
		return &u, nil
	}

	u.Path = "/graphql"
	return &u, nil
}

// DoGraphQL executes a GraphQL POST using the same underlying transport
// configuration as the REST client (auth, logging, pacing).
//
// GraphQL-level errors are returned in the response envelope rather than
// as a Go error; callers decide whether partial data is usable.
func DoGraphQL[T any](ctx context.Context, c *Client, req GraphQLRequest) (GraphQLResponse[T], *http.Response, error) {
	var zero GraphQLResponse[T]

	if c == nil || c.REST == nil || c.HTTP == nil {
		return zero, nil, fmt.Errorf("graphql: client is not initialized")
	}

	endpoint, err := graphqlEndpoint(c.REST.BaseURL)
	if err != nil {
		return zero, nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return zero, nil, fmt.Errorf("graphql: failed to marshal request: %w", err)
	}

	if err := c.Wait(ctx); err != nil {
		return zero, nil, err
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return zero, nil, fmt.Errorf("graphql: failed to build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(hreq)
	if err != nil {
		return zero, nil, fmt.Errorf("graphql: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return zero, resp, fmt.Errorf("graphql: failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return zero, resp, fmt.Errorf("graphql: unexpected status %d", resp.StatusCode)
	}

	var out GraphQLResponse[T]
	if err := json.Unmarshal(respBody, &out); err != nil {
		return zero, resp, fmt.Errorf("graphql: failed to decode response: %w", err)
	}

	return out, resp, nil
}
