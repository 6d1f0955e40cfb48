// Package paperapi is a client for the PaperMC v2 build metadata and
// download API. Every call makes exactly one HTTP request; retrying is the
// caller's business, guided by IsTransient.
package paperapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public PaperMC API
	DefaultBaseURL = "https://api.papermc.io"
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "paperfetch/1.0"
	// maxErrorBody limits how much of an error response is kept
	maxErrorBody = 512
)

// HTTPClient abstracts HTTP operations for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a PaperMC-compatible API.
type Client struct {
	baseURL   *url.URL
	http      HTTPClient
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c HTTPClient) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) {
		if ua != "" {
			cl.userAgent = ua
		}
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse API URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("API URL %q must use http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("API URL %q has no host", baseURL)
	}

	c := &Client{
		baseURL:   u,
		http:      newDefaultHTTPClient(),
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newDefaultHTTPClient has no overall timeout; each attempt is bounded by
// the context the caller passes in.
func newDefaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Allow up to 10 redirects
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Project fetches project metadata, including the list of versions.
func (c *Client) Project(ctx context.Context, project string) (*Project, error) {
	endpoint := c.endpoint("v2", "projects", project)

	var p Project
	if err := c.getJSON(ctx, endpoint, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, &SchemaError{URL: endpoint, Field: "project_id"}
	}
	if p.Versions == nil {
		return nil, &SchemaError{URL: endpoint, Field: "versions"}
	}
	return &p, nil
}

// Builds lists every build published for a version. A 404 from the API is
// returned as a *StatusError matching ErrNotFound.
func (c *Client) Builds(ctx context.Context, project, version string) ([]Build, error) {
	endpoint := c.endpoint("v2", "projects", project, "versions", version, "builds")

	var resp BuildsResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Builds == nil {
		return nil, &SchemaError{URL: endpoint, Field: "builds"}
	}
	for i, b := range resp.Builds {
		if b.Build <= 0 {
			return nil, &SchemaError{URL: endpoint, Field: fmt.Sprintf("builds[%d].build", i)}
		}
		if _, ok := b.Application(); !ok {
			return nil, &SchemaError{URL: endpoint, Field: fmt.Sprintf("builds[%d].downloads.application.name", i)}
		}
	}
	return resp.Builds, nil
}

// DownloadURL returns the download location of a build's file.
func (c *Client) DownloadURL(project, version string, build int, name string) string {
	return c.endpoint("v2", "projects", project, "versions", version, "builds", strconv.Itoa(build), "downloads", name)
}

// Open starts a GET for url and returns the body along with the advertised
// content length (-1 when unknown). The caller closes the body.
func (c *Client) Open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	resp, err := c.do(ctx, rawURL, "application/octet-stream")
	if err != nil {
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

// getJSON GETs a URL and decodes the response body into result.
func (c *Client) getJSON(ctx context.Context, endpoint string, result any) error {
	resp, err := c.do(ctx, endpoint, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &DecodeError{URL: endpoint, Err: err}
	}
	return nil
}

// do executes a GET and turns non-200 responses into *StatusError.
func (c *Client) do(ctx context.Context, endpoint, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", endpoint, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			Method: http.MethodGet,
			URL:    endpoint,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}

// endpoint joins escaped path segments onto the base URL.
func (c *Client) endpoint(segments ...string) string {
	u := *c.baseURL
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	u.RawPath = strings.TrimRight(c.baseURL.EscapedPath(), "/") + "/" + strings.Join(escaped, "/")
	u.Path = strings.TrimRight(c.baseURL.Path, "/") + "/" + strings.Join(segments, "/")
	return u.String()
}
