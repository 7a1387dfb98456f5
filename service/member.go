package service

import (
	"context"
	"fmt"
	"net/http"
)

// MemberPayload is the request body for member creation. Field names
// follow the wire format of the member service.
type MemberPayload struct {
	Nombres            string `json:"nombres"`
	Apellidos          string `json:"apellidos"`
	Identificacion     string `json:"identificacion"`
	Email              string `json:"email"`
	Telefono           string `json:"telefono"`
	Direccion          string `json:"direccion"`
	TipoIdentificacion string `json:"tipoIdentificacion"`
	Activo             bool   `json:"activo"`
}

// MemberClient talks to the member service (service A).
type MemberClient struct {
	baseURL string
	doer    Doer
}

// MemberClientOption configures a MemberClient.
type MemberClientOption func(*MemberClient)

// WithMemberDoer sets a custom HTTP doer.
func WithMemberDoer(d Doer) MemberClientOption {
	return func(c *MemberClient) {
		c.doer = d
	}
}

// NewMemberClient creates a client for the member service at baseURL.
func NewMemberClient(baseURL string, opts ...MemberClientOption) *MemberClient {
	c := &MemberClient{
		baseURL: baseURL,
		doer:    DefaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateMember submits a member-creation request.
// Returns the new member id on 201; any other status is reported via
// the status code with an empty id, and a transport failure via err.
func (c *MemberClient) CreateMember(ctx context.Context, p MemberPayload) (status int, id string, err error) {
	return postJSON(ctx, c.doer, joinURL(c.baseURL, "/api/socios"), p)
}

// DeleteMember attempts to delete the member and returns the raw
// status code. The caller classifies the code; this method succeeds
// for any HTTP response and fails only on transport errors.
func (c *MemberClient) DeleteMember(ctx context.Context, memberID string) (int, error) {
	url := joinURL(c.baseURL, "/api/socios/"+memberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return 0, err
	}
	defer drainAndClose(resp.Body)

	return resp.StatusCode, nil
}
