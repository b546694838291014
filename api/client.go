package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	pathLogin       = "/api/auth/login"
	pathRefresh     = "/api/auth/refresh"
	pathMe          = "/api/auth/me"
	pathLogout      = "/api/auth/logout"
	pathVerify      = "/api/auth/verify"
	pathMycoCore    = "/api/system/mycocore"
	pathNeuroweave  = "/api/neuroweave"
	maxResponseBody = 1 << 20
)

var agentTypePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Config configures a [Client].
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string

	// HTTPClient is copied; its Jar is replaced when nil.
	HTTPClient *http.Client
}

// Client talks to a HyphaeOS backend.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
}

// Profile is the /api/auth/me payload.
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Avatar      string `json:"avatar,omitempty"`
	DeviceID    string `json:"deviceId,omitempty"`
	PinVerified bool   `json:"pinVerified,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Code     string `json:"code,omitempty"`
}

type loginResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// New builds a Client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("api base url required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, err
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.New("api base url must be http or https")
	}

	hc := &http.Client{}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		hc = &copied
	}
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}
	if hc.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc.Jar = jar
	}

	return &Client{
		base:      base,
		http:      hc,
		userAgent: cfg.UserAgent,
	}, nil
}

// BaseURL returns the backend root the client was built for.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Login exchanges primary credentials for a bearer token. code is the optional
// second factor accepted by some backends.
func (c *Client) Login(ctx context.Context, email, password, code string) (string, error) {
	var out loginResponse
	if err := c.do(ctx, http.MethodPost, pathLogin, "", loginRequest{Email: email, Password: password, Code: code}, &out); err != nil {
		return "", err
	}
	if out.Error != "" {
		return "", &Error{Method: http.MethodPost, Path: pathLogin, Status: http.StatusOK, Message: out.Error, kind: ErrRejected}
	}
	if out.Token == "" {
		return "", &Error{Method: http.MethodPost, Path: pathLogin, Status: http.StatusOK, Message: "response missing token", kind: ErrTransport}
	}
	return out.Token, nil
}

// Refresh asks the backend for a new access token using the transport
// credential held in the cookie jar.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	var out refreshResponse
	if err := c.do(ctx, http.MethodPost, pathRefresh, "", struct{}{}, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &Error{Method: http.MethodPost, Path: pathRefresh, Status: http.StatusOK, Message: "response missing access_token", kind: ErrTransport}
	}
	return out.AccessToken, nil
}

// Me fetches the profile bound to token.
func (c *Client) Me(ctx context.Context, token string) (Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, pathMe, token, nil, &out); err != nil {
		return Profile{}, err
	}
	return out, nil
}

// VerifyPin submits the second factor for the session behind token.
func (c *Client) VerifyPin(ctx context.Context, token, code string) error {
	var out errorBody
	if err := c.do(ctx, http.MethodPost, pathVerify, token, verifyRequest{Code: code}, &out); err != nil {
		return err
	}
	if out.Error != "" {
		return &Error{Method: http.MethodPost, Path: pathVerify, Status: http.StatusOK, Message: out.Error, kind: ErrRejected}
	}
	return nil
}

// Logout asks the backend to end the server-side session identified by
// cookies. The jar is not consulted, so a session started after the caller
// captured cookies is left alone.
func (c *Client) Logout(ctx context.Context, cookies []*http.Cookie) error {
	hc := *c.http
	hc.Jar = nil
	return c.exchange(ctx, &hc, cookies, http.MethodPost, pathLogout, "", struct{}{}, nil)
}

// MycoCoreSnapshot returns the raw MycoCore panel snapshot.
func (c *Client) MycoCoreSnapshot(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, pathMycoCore, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// NeuroweaveData returns the raw Neuroweave panel data.
func (c *Client) NeuroweaveData(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, pathNeuroweave, "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AgentLog fetches /api/{agentType} with the bearer token.
func (c *Client) AgentLog(ctx context.Context, agentType, token string) (json.RawMessage, error) {
	if !agentTypePattern.MatchString(agentType) {
		return nil, ErrInvalidAgentType
	}
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/"+agentType, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Cookies returns the transport cookies the jar holds for the backend.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.base)
}

// SetCookies installs previously captured transport cookies.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	c.http.Jar.SetCookies(c.base, cookies)
}

// ClearCookies expires every cookie the jar holds for the backend.
func (c *Client) ClearCookies() {
	current := c.Cookies()
	if len(current) == 0 {
		return
	}
	expired := make([]*http.Cookie, 0, len(current))
	for _, ck := range current {
		expired = append(expired, &http.Cookie{Name: ck.Name, Value: "", Path: "/", MaxAge: -1})
	}
	c.http.Jar.SetCookies(c.base, expired)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	return c.exchange(ctx, c.http, nil, method, path, token, in, out)
}

func (c *Client) exchange(ctx context.Context, hc *http.Client, cookies []*http.Cookie, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	target := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return &Error{Method: method, Path: path, kind: ErrTransport, cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &Error{Method: method, Path: path, Status: resp.StatusCode, kind: ErrTransport, cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		msg := eb.Error
		if msg == "" {
			msg = eb.Detail
		}
		return &Error{Method: method, Path: path, Status: resp.StatusCode, Message: msg, kind: classifyStatus(resp.StatusCode)}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if raw, ok := out.(*json.RawMessage); ok {
			*raw = json.RawMessage("null")
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Method: method, Path: path, Status: resp.StatusCode, Message: "malformed response body", kind: ErrTransport, cause: err}
	}
	return nil
}
