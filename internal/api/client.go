// Package api is the client for the tyre classifieds REST backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tyres_bot/internal/model"
)

const maxBodySize = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the backend. Every method returns an *Error on failure.
// A Client is safe for concurrent use.
type Client struct {
	base    string
	client  HTTPClient
	log     *slog.Logger
	timeout time.Duration
	token   string
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, client HTTPClient, log *slog.Logger) *Client {
	return &Client{
		base:    baseURL,
		client:  client,
		log:     log,
		timeout: 10 * time.Second,
	}
}

// SetTimeout overrides the default 10-second per-request timeout.
// Zero disables it.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// WithToken returns a copy of c that authenticates as the holder of token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// FetchPage returns one page of public listings.
func (c *Client) FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error) {
	if err := req.Validate(); err != nil {
		return model.Page{}, fmt.Errorf("fetch page: %w", err)
	}
	var page model.Page
	err := c.do(ctx, http.MethodGet, "/api/tyres", listQuery(req), nil, &page)
	return page, err
}

// FetchMine returns one page of the authenticated user's own listings.
func (c *Client) FetchMine(ctx context.Context, page, limit int) (model.Page, error) {
	req := model.PageRequest{Page: page, Limit: limit}
	if err := req.Validate(); err != nil {
		return model.Page{}, fmt.Errorf("fetch mine: %w", err)
	}
	var out model.Page
	err := c.do(ctx, http.MethodGet, "/api/tyres/my", listQuery(req), nil, &out)
	return out, err
}

// MineSource adapts FetchMine to the page source used by feeds.
type MineSource struct {
	c *Client
}

// Mine returns a page source over the user's own listings.
func (c *Client) Mine() MineSource {
	return MineSource{c: c}
}

// FetchPage ignores filters and sort; the backend orders own listings itself.
func (m MineSource) FetchPage(ctx context.Context, req model.PageRequest) (model.Page, error) {
	return m.c.FetchMine(ctx, req.Page, req.Limit)
}

// listQuery omits empty filter values and an empty sort.
func listQuery(req model.PageRequest) url.Values {
	q := url.Values{}
	for _, f := range model.Fields() {
		if v := req.Filters[f]; v != "" {
			q.Set(string(f), v)
		}
	}
	if req.Sort != model.SortNone {
		q.Set("sort", string(req.Sort))
	}
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("limit", strconv.Itoa(req.Limit))
	return q
}

// Session is the result of a successful login.
type Session struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{"email": email, "password": password}
	var s Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &s)
	return s, err
}

// FavoriteIDs returns the ids of the user's favourite listings. An
// unauthenticated caller has no favourites.
func (c *Client) FavoriteIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.do(ctx, http.MethodGet, "/api/favorites/ids", nil, nil, &ids)
	if IsUnauthorized(err) {
		return nil, nil
	}
	return ids, err
}

// FetchByIDs returns the listings with the given ids.
func (c *Client) FetchByIDs(ctx context.Context, ids []string) ([]model.Tyre, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out struct {
		Tyres []model.Tyre `json:"tyres"`
	}
	err := c.do(ctx, http.MethodPost, "/api/tyres/by-ids", nil, map[string][]string{"ids": ids}, &out)
	return out.Tyres, err
}

// AddFavorite marks a listing as favourite.
func (c *Client) AddFavorite(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/favorites", nil, map[string]string{"tyreId": id}, nil)
}

// RemoveFavorite unmarks a favourite listing.
func (c *Client) RemoveFavorite(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/favorites/"+url.PathEscape(id), nil, nil, nil)
}

// Renew extends the publication of an own listing.
func (c *Client) Renew(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/tyres/"+url.PathEscape(id)+"/renew", nil, nil, nil)
}

// Activate republishes a deactivated own listing.
func (c *Client) Activate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/tyres/"+url.PathEscape(id)+"/activate", nil, nil, nil)
}

// Deactivate moves an own listing out of the active tab.
func (c *Client) Deactivate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/api/tyres/"+url.PathEscape(id), nil, nil, nil)
}

// Delete removes an own listing.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tyres/"+url.PathEscape(id), nil, nil, nil)
}

// FetchByID returns one listing.
func (c *Client) FetchByID(ctx context.Context, id string) (model.Tyre, error) {
	var t model.Tyre
	err := c.do(ctx, http.MethodGet, "/api/tyres/"+url.PathEscape(id), nil, nil, &t)
	return t, err
}

// Create publishes a listing built from d and returns it.
func (c *Client) Create(ctx context.Context, d model.Draft) (model.Tyre, error) {
	body := model.Draft{"title": d.Title()}
	maps.Copy(body, d)
	var t model.Tyre
	err := c.do(ctx, http.MethodPost, "/api/tyres", nil, body, &t)
	return t, err
}

// Update replaces the fields of an own listing with d and returns the result.
func (c *Client) Update(ctx context.Context, id string, d model.Draft) (model.Tyre, error) {
	body := model.Draft{"title": d.Title()}
	maps.Copy(body, d)
	var t model.Tyre
	err := c.do(ctx, http.MethodPatch, "/api/tyres/"+url.PathEscape(id), nil, body, &t)
	return t, err
}

// Profile returns the signed-in user's account.
func (c *Client) Profile(ctx context.Context) (model.Profile, error) {
	var p model.Profile
	err := c.do(ctx, http.MethodGet, "/api/user/profile", nil, nil, &p)
	return p, err
}

// UpdateProfile saves u and returns the updated account.
func (c *Client) UpdateProfile(ctx context.Context, u model.ProfileUpdate) (model.Profile, error) {
	var p model.Profile
	err := c.do(ctx, http.MethodPut, "/api/user/profile", nil, u, &p)
	return p, err
}

// ChangePassword replaces the signed-in user's password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{
		"currentPassword": current,
		"newPassword":     next,
		"confirmPassword": next,
	}
	return c.do(ctx, http.MethodPut, "/api/user/updatePassword", nil, body, nil)
}

// SendPhoneCode asks the backend to text a confirmation code to phone.
// It returns the backend's message.
func (c *Client) SendPhoneCode(ctx context.Context, phone string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	err := c.do(ctx, http.MethodPost, "/api/phone/send", nil, map[string]string{"phone": phone}, &out)
	return out.Message, err
}

// VerifyPhoneCode confirms the phone number with the code the user received.
func (c *Client) VerifyPhoneCode(ctx context.Context, code string) error {
	return c.do(ctx, http.MethodPost, "/api/phone/verify", nil, map[string]string{"code": code}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	requestID := uuid.NewString()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: NetworkError, RequestID: requestID, Err: fmt.Errorf("encode body: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return &Error{Kind: NetworkError, RequestID: requestID, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "TyresBot/1.0")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Debug("api request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return transportError(err, requestID)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return transportError(fmt.Errorf("read body: %w", err), requestID)
	}

	c.log.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &msg)
		return &Error{Kind: ServerError, Status: resp.StatusCode, Message: msg.Message, RequestID: requestID}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: ServerError, Status: resp.StatusCode, RequestID: requestID, Err: fmt.Errorf("decode body: %w", err)}
	}
	return nil
}
