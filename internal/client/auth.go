package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/IlyaErmolovich/gc-frontend/internal/types"
)

const (
	RegisterPath = "/auth/register"
	LoginPath    = "/auth/login"
	ProfilePath  = "/users/profile"
)

var errNoUser = errors.New("response has no user")

// Register creates an account and returns the new user
func (c *Client) Register(ctx context.Context, username, password string) (*types.User, error) {
	res, err := c.Request(ctx, http.MethodPost, RegisterPath,
		types.Credentials{Username: username, Password: password},
		&RequestOptions{Public: true})
	if err != nil {
		return nil, err
	}
	return decodeUser(res, "decoding register response")
}

// Login exchanges credentials for the user record
func (c *Client) Login(ctx context.Context, username, password string) (*types.User, error) {
	res, err := c.Request(ctx, http.MethodPost, LoginPath,
		types.Credentials{Username: username, Password: password},
		&RequestOptions{Public: true})
	if err != nil {
		return nil, err
	}
	return decodeUser(res, "decoding login response")
}

// GetProfile fetches the full profile of the user identified by the stored record
func (c *Client) GetProfile(ctx context.Context) (*types.User, error) {
	res, err := c.Request(ctx, http.MethodGet, ProfilePath, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeUser(res, "decoding profile response")
}

// UpdateProfile sends the changed profile fields (and optional avatar file) as a multipart PUT
func (c *Client) UpdateProfile(ctx context.Context, form *FormData) (*types.User, error) {
	res, err := c.UploadFormData(ctx, ProfilePath, form, http.MethodPut)
	if err != nil {
		return nil, err
	}
	return decodeUser(res, "decoding profile update response")
}

func decodeUser(res *Response, while string) (*types.User, error) {
	var authResp types.AuthResponse
	if err := res.DecodeJSON(&authResp); err != nil {
		return nil, newInternalError(err, while)
	}
	if authResp.User == nil {
		return nil, newInternalError(errNoUser, while)
	}
	return authResp.User, nil
}
