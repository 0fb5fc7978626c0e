package api

import (
	"context"
	"net/http"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Registration struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

type TokenResponse struct {
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// Auth is the gateway to the login and registration endpoints.
type Auth struct {
	client *Client
}

func NewAuth(c *Client) *Auth {
	return &Auth{client: c}
}

func (a *Auth) Login(ctx context.Context, in Credentials) Result[TokenResponse] {
	body, err := jsonBody(in)
	if err != nil {
		return Result[TokenResponse]{Err: err}
	}
	return do[TokenResponse](ctx, a.client, http.MethodPost, "/auth/login", body)
}

func (a *Auth) Register(ctx context.Context, in Registration) Result[TokenResponse] {
	body, err := jsonBody(in)
	if err != nil {
		return Result[TokenResponse]{Err: err}
	}
	return do[TokenResponse](ctx, a.client, http.MethodPost, "/auth/register", body)
}
