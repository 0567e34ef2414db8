package repository

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"context"
)

const requestTimeout = 15 * time.Second

// apiClient wraps the http plumbing shared by all repository adapters:
// json encoding, auth, and conversion of non-2xx responses into
// RequestError values.
type apiClient struct {
	baseUrl string
	client  *http.Client

	// Some repositories (zenodo) expect the access token as a query
	// parameter instead of a bearer header.
	queryParamAuth bool
}

func newApiClient(baseUrl string, queryParamAuth bool) *apiClient {
	return &apiClient{
		baseUrl:        baseUrl,
		client:         &http.Client{Timeout: requestTimeout},
		queryParamAuth: queryParamAuth,
	}
}

func (c *apiClient) request(ctx context.Context, method, endpoint, accessToken string, body, result interface{}) error {
	fullEndpoint, err := url.JoinPath(c.baseUrl, endpoint)
	if err != nil {
		return fmt.Errorf("error formatting url for repository endpoint %v: %w", endpoint, err)
	}

	var reqBody io.Reader
	if body != nil {
		data := &bytes.Buffer{}
		if err := json.NewEncoder(data).Encode(body); err != nil {
			return fmt.Errorf("error encoding body for repository endpoint %v: %w", endpoint, err)
		}
		reqBody = data
	}

	req, err := http.NewRequestWithContext(ctx, method, fullEndpoint, reqBody)
	if err != nil {
		return fmt.Errorf("error creating %v request for repository endpoint %v: %w", method, endpoint, err)
	}
	req.Header.Add("Content-Type", "application/json")

	if c.queryParamAuth {
		query := req.URL.Query()
		query.Set("access_token", accessToken)
		req.URL.RawQuery = query.Encode()
	} else {
		req.Header.Add("Authorization", "Bearer "+accessToken)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending %v request to repository endpoint %v: %w", method, endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		data, readErr := io.ReadAll(res.Body)
		if readErr != nil {
			data = nil
		}
		slog.Error("repository returned error", "method", method, "endpoint", endpoint, "code", res.StatusCode, "response", string(data))
		return &RequestError{StatusCode: res.StatusCode, Body: string(data)}
	}

	if result != nil {
		if err := json.NewDecoder(res.Body).Decode(result); err != nil {
			return fmt.Errorf("error parsing %v response from repository endpoint %v: %w", method, endpoint, err)
		}
	}

	return nil
}

func (c *apiClient) get(ctx context.Context, endpoint, accessToken string, result interface{}) error {
	return c.request(ctx, "GET", endpoint, accessToken, nil, result)
}

func (c *apiClient) post(ctx context.Context, endpoint, accessToken string, body, result interface{}) error {
	return c.request(ctx, "POST", endpoint, accessToken, body, result)
}

func (c *apiClient) put(ctx context.Context, endpoint, accessToken string, body, result interface{}) error {
	return c.request(ctx, "PUT", endpoint, accessToken, body, result)
}

func (c *apiClient) delete(ctx context.Context, endpoint, accessToken string) error {
	return c.request(ctx, "DELETE", endpoint, accessToken, nil, nil)
}
