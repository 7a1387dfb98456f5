// Package service provides the HTTP clients for the two systems under
// test: the member service (service A) and the account service
// (service B). The two services are deployed independently and are not
// behind a shared gateway, so each client takes its own base URL.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Doer is the subset of http.Client the service clients depend on.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultTimeout bounds every request issued by the service clients.
const DefaultTimeout = 10 * time.Second

// DefaultHTTPClient returns the http.Client used when none is injected.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// createdResource is the minimal shape of a 201 response body from
// either service: only the generated id matters to the harness.
type createdResource struct {
	ID string `json:"id"`
}

// postJSON issues a POST with a JSON body and decodes the id from a
// created response. Returns the raw status code alongside any id so
// callers can distinguish rejection from transport failure.
func postJSON(ctx context.Context, doer Doer, url string, payload any) (status int, id string, err error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusCreated {
		var created createdResource
		if decErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&created); decErr == nil {
			id = created.ID
		}
	}

	return resp.StatusCode, id, nil
}

// drainAndClose discards the remaining body so the underlying
// connection can be reused.
func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	body.Close()
}

// joinURL joins a base URL and a path without doubling slashes.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
