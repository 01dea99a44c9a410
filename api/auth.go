package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/kv"
	"github.com/unkn0wn-root/dashsync/stepup"
)

// Login exchanges credentials for a session token and stores it.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	r, err := public[struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}](ctx, c, http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password})
	if err != nil {
		return User{}, err
	}
	if r.Token == "" {
		return User{}, errors.New("api: login response carried no token")
	}
	if err := c.store.Set(ctx, kv.KeyToken, r.Token); err != nil {
		return User{}, fmt.Errorf("api: store token: %w", err)
	}
	return r.User, nil
}

// Logout forgets the stored token. The server keeps no session state.
func (c *Client) Logout(ctx context.Context) error {
	return c.store.Delete(ctx, kv.KeyToken)
}

// Me resolves the signed-in user.
func (c *Client) Me(ctx context.Context) (User, error) {
	r, err := call[struct {
		User *User `json:"user"`
	}](ctx, c, http.MethodGet, "/auth/me", nil, nil)
	if err != nil {
		return User{}, err
	}
	if r.User == nil {
		return User{}, fmt.Errorf("api: /auth/me: no user: %w", dashsync.ErrUnauthorized)
	}
	return *r.User, nil
}

// VerifyMasterKey asks the server whether secret is the master key. A
// rejection is a Result with OK=false; only transport and session failures
// are errors.
func (c *Client) VerifyMasterKey(ctx context.Context, secret string) (stepup.Result, error) {
	r, err := call[struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}](ctx, c, http.MethodPost, "/auth/verify-master-key", nil, map[string]string{"masterKey": secret})
	var ae *Error
	if errors.As(err, &ae) && (ae.Status == http.StatusForbidden || ae.Status == http.StatusBadRequest) {
		return stepup.Result{OK: false, Message: ae.Message}, nil
	}
	if err != nil {
		return stepup.Result{}, err
	}
	return stepup.Result{OK: r.Success, Message: r.Message}, nil
}

// MasterKeyVerifier adapts VerifyMasterKey for a stepup.Gate.
func (c *Client) MasterKeyVerifier() stepup.Verifier {
	return stepup.VerifierFunc(c.VerifyMasterKey)
}
