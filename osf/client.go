// Package osf provides the OSF domain model, JSON-API decoding and an HTTP
// client for the OSF v2 API.
package osf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/semstreams/pkg/retry"
)

// DefaultBaseURL is the public OSF API.
const DefaultBaseURL = "https://api.osf.io/v2/"

// maxDocumentSize limits a JSON-API response body.
const maxDocumentSize = 32 * 1024 * 1024

// Client is an OSF v2 API client. Requests are retried with exponential
// backoff; client errors other than 429 are not retried.
type Client struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	retryConfig retry.Config
	pageSize    int
	logger      *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithToken sets the personal access token sent as a bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retryConfig = cfg
	}
}

// WithPageSize sets the page[size] query parameter for list requests.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the API at baseURL. An empty baseURL uses
// DefaultBaseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	c := &Client{
		baseURL:     baseURL,
		retryConfig: retry.DefaultConfig(),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root, always ending in a slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetRegistration fetches a registration.
func (c *Client) GetRegistration(ctx context.Context, id string) (*Registration, error) {
	doc, err := c.get(ctx, c.endpoint(string(KindRegistration), id))
	if err != nil {
		return nil, err
	}
	r, err := doc.Resource()
	if err != nil {
		return nil, err
	}
	return RegistrationFromResource(r)
}

// GetNode fetches a node.
func (c *Client) GetNode(ctx context.Context, id string) (*Node, error) {
	doc, err := c.get(ctx, c.endpoint(string(KindNode), id))
	if err != nil {
		return nil, err
	}
	r, err := doc.Resource()
	if err != nil {
		return nil, err
	}
	return NodeFromResource(r)
}

// GetUser fetches a user.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	doc, err := c.get(ctx, c.endpoint("users", id))
	if err != nil {
		return nil, err
	}
	r, err := doc.Resource()
	if err != nil {
		return nil, err
	}
	return UserFromResource(r)
}

// GetLicense fetches a license.
func (c *Client) GetLicense(ctx context.Context, id string) (*License, error) {
	doc, err := c.get(ctx, c.endpoint("licenses", id))
	if err != nil {
		return nil, err
	}
	r, err := doc.Resource()
	if err != nil {
		return nil, err
	}
	return LicenseFromResource(r)
}

// ListContributors lists the contributors of a node or registration with
// their users embedded.
func (c *Client) ListContributors(ctx context.Context, kind Kind, id string) ([]*Contributor, error) {
	u := c.endpoint(string(kind), id, "contributors") + "?embed=users"
	return collect(ctx, c, u, ContributorFromResource)
}

// ListChildren lists the child registrations of a registration.
func (c *Client) ListChildren(ctx context.Context, id string) ([]*Registration, error) {
	return collect(ctx, c, c.endpoint(string(KindRegistration), id, "children"), RegistrationFromResource)
}

// ListNodeChildren lists the child components of a node.
func (c *Client) ListNodeChildren(ctx context.Context, id string) ([]*Node, error) {
	return collect(ctx, c, c.endpoint(string(KindNode), id, "children"), NodeFromResource)
}

// ListWikis lists wiki pages.
func (c *Client) ListWikis(ctx context.Context, kind Kind, id string) ([]*Wiki, error) {
	return collect(ctx, c, c.endpoint(string(kind), id, "wikis"), WikiFromResource)
}

// ListComments lists comments, replies included, as a flat list.
func (c *Client) ListComments(ctx context.Context, kind Kind, id string) ([]*Comment, error) {
	return collect(ctx, c, c.endpoint(string(kind), id, "comments"), CommentFromResource)
}

// ListFiles lists the top level of the node's osfstorage provider.
func (c *Client) ListFiles(ctx context.Context, kind Kind, id string) ([]*File, error) {
	return collect(ctx, c, c.endpoint(string(kind), id, "files", "osfstorage"), FileFromResource)
}

// ListFolder lists the contents of a folder.
func (c *Client) ListFolder(ctx context.Context, folder *File) ([]*File, error) {
	if folder.FilesURL == "" {
		return nil, nil
	}
	return collect(ctx, c, folder.FilesURL, FileFromResource)
}

// ListInstitutions lists affiliated institutions.
func (c *Client) ListInstitutions(ctx context.Context, kind Kind, id string) ([]*Institution, error) {
	return collect(ctx, c, c.endpoint(string(kind), id, "institutions"), InstitutionFromResource)
}

// ListIdentifiers lists external identifiers.
func (c *Client) ListIdentifiers(ctx context.Context, kind Kind, id string) ([]*Identifier, error) {
	return collect(ctx, c, c.endpoint(string(kind), id, "identifiers"), IdentifierFromResource)
}

// Download streams the content at downloadURL to w and returns the number of
// bytes written. Only obtaining the response is retried.
func (c *Client) Download(ctx context.Context, downloadURL string, w io.Writer) (int64, error) {
	resp, err := retry.DoWithResult(ctx, c.retryConfig, func() (*http.Response, error) {
		return c.do(ctx, downloadURL, "*/*")
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", downloadURL, err)
	}
	return n, nil
}

// collect follows links.next from u and converts every resource with conv.
func collect[T any](ctx context.Context, c *Client, u string, conv func(Resource) (T, error)) ([]T, error) {
	var out []T
	next := c.withPageSize(u)
	for pages := 0; next != ""; pages++ {
		doc, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}
		rs, err := doc.Resources()
		if err != nil {
			return nil, err
		}
		for _, r := range rs {
			v, err := conv(r)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		next = doc.Links.Get("next")
		c.logger.Debug("Fetched page", "url", u, "page", pages+1, "items", len(rs), "more", next != "")
	}
	return out, nil
}

// get fetches a JSON-API document with retry.
func (c *Client) get(ctx context.Context, u string) (*Document, error) {
	doc, err := retry.DoWithResult(ctx, c.retryConfig, func() (*Document, error) {
		return c.getOnce(ctx, u)
	})
	if err != nil {
		c.logger.Debug("OSF request failed",
			"url", u,
			"error", err,
			"retryable", !retry.IsNonRetryable(err))
		return nil, err
	}
	return doc, nil
}

func (c *Client) getOnce(ctx context.Context, u string) (*Document, error) {
	resp, err := c.do(ctx, u, "application/vnd.api+json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := DecodeDocument(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, retry.NonRetryable(fmt.Errorf("%s: %w", u, err))
	}
	return doc, nil
}

// do performs a GET and returns the response on 2xx. Other statuses are
// classified: 404 and other 4xx except 429 are not retryable.
func (c *Client) do(ctx context.Context, u, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, retry.NonRetryable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are transient
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, classifyHTTPError(u, resp)
}

func classifyHTTPError(u string, resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, URL: u}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if doc, err := DecodeDocument(bytes.NewReader(body)); err == nil {
		apiErr.Errors = doc.Errors
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return apiErr
	case resp.StatusCode >= 500:
		return apiErr
	default:
		return retry.NonRetryable(apiErr)
	}
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL + strings.Join(escaped, "/") + "/"
}

func (c *Client) withPageSize(u string) string {
	if c.pageSize <= 0 {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "page[size]=" + strconv.Itoa(c.pageSize)
}
