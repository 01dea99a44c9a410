package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

func (c *Client) Settings(ctx context.Context) ([]Setting, error) {
	r, err := call[struct {
		Settings []Setting `json:"settings"`
	}](ctx, c, http.MethodGet, "/admin/settings", nil, nil)
	return r.Settings, err
}

type UpdateSetting struct {
	Key   string `json:"-"`
	Value bool   `json:"value"`
}

func (c *Client) UpdateSetting(ctx context.Context, p UpdateSetting) (Setting, error) {
	r, err := call[struct {
		Setting Setting `json:"setting"`
	}](ctx, c, http.MethodPut, "/admin/settings/"+url.PathEscape(p.Key), nil, p)
	return r.Setting, err
}

func (c *Client) Variables(ctx context.Context) ([]Variable, error) {
	r, err := call[struct {
		Variables []Variable `json:"variables"`
	}](ctx, c, http.MethodGet, "/admin/variables", nil, nil)
	return r.Variables, err
}

type UpsertVariable struct {
	Key   string `json:"-"`
	Value string `json:"value"`
}

func (c *Client) UpsertVariable(ctx context.Context, p UpsertVariable) (Variable, error) {
	r, err := call[struct {
		Variable Variable `json:"variable"`
	}](ctx, c, http.MethodPut, "/admin/variables/"+url.PathEscape(p.Key), nil, p)
	return r.Variable, err
}

// Users lists users matching search; "" lists everyone with dashboard access.
func (c *Client) Users(ctx context.Context, search string) (UsersPage, error) {
	var q url.Values
	if search != "" {
		q = url.Values{"search": {search}}
	}
	return call[UsersPage](ctx, c, http.MethodGet, "/admin/users", q, nil)
}

type UpdateRoles struct {
	UserID int64    `json:"-"`
	Roles  []string `json:"roles"`
}

func (c *Client) UpdateUserRoles(ctx context.Context, p UpdateRoles) (User, error) {
	r, err := call[struct {
		User User `json:"user"`
	}](ctx, c, http.MethodPut, fmt.Sprintf("/admin/users/%d/roles", p.UserID), nil, p)
	return r.User, err
}

// Logs returns one page of the web request log. Pages start at 1.
func (c *Client) Logs(ctx context.Context, page, limit int) (LogsPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	q := url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}}
	return call[LogsPage](ctx, c, http.MethodGet, "/admin/logs", q, nil)
}
