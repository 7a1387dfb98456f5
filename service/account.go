package service

import (
	"context"
)

// AccountPayload is the request body for account creation against the
// account service. SocioID references a member created in service A;
// the account service records the reference without any cross-service
// transaction, which is exactly the gap the harness exercises.
type AccountPayload struct {
	SocioID      string  `json:"socioId"`
	NumeroCuenta string  `json:"numeroCuenta"`
	Saldo        float64 `json:"saldo"`
	TipoCuenta   string  `json:"tipoCuenta"`
}

// AccountClient talks to the account service (service B).
type AccountClient struct {
	baseURL string
	doer    Doer
}

// AccountClientOption configures an AccountClient.
type AccountClientOption func(*AccountClient)

// WithAccountDoer sets a custom HTTP doer.
func WithAccountDoer(d Doer) AccountClientOption {
	return func(c *AccountClient) {
		c.doer = d
	}
}

// NewAccountClient creates a client for the account service at baseURL.
func NewAccountClient(baseURL string, opts ...AccountClientOption) *AccountClient {
	c := &AccountClient{
		baseURL: baseURL,
		doer:    DefaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateAccount submits an account-creation request.
// Returns the new account id on 201; any other status is reported via
// the status code, a transport failure via err.
func (c *AccountClient) CreateAccount(ctx context.Context, p AccountPayload) (status int, id string, err error) {
	return postJSON(ctx, c.doer, joinURL(c.baseURL, "/cuentas"), p)
}
