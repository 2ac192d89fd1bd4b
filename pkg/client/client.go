package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/model"
)

// APIError is a non-2xx answer of the sortinghat API
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// Client calls a running sortinghat server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(x *Client) {
		x.httpClient = c
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetUser fetches the profile and sorting of fid
func (c *Client) GetUser(ctx context.Context, fid model.FID) (*model.UserSorting, error) {
	u := c.baseURL + "/api/user?fid=" + url.QueryEscape(fid.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create user request")
	}

	var resp model.UserSorting
	if err := c.do(req, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to get user", goerr.V("fid", fid))
	}
	return &resp, nil
}

// CreateShareLink asks the server to render and store a share image
func (c *Client) CreateShareLink(ctx context.Context, shareReq *model.ShareRequest) (*model.ShareLink, error) {
	body, err := json.Marshal(shareReq)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal share request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/create-share-link", bytes.NewReader(body))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create share request")
	}
	req.Header.Set("Content-Type", "application/json")

	var resp model.ShareLink
	if err := c.do(req, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to create share link", goerr.V("fid", shareReq.FID))
	}
	return &resp, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send request", goerr.V("url", req.URL.String()))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerr.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var body struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
			apiErr.Details = body.Details
		} else {
			apiErr.Message = fmt.Sprintf("API Error: %d", resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return goerr.Wrap(err, "failed to decode response", goerr.V("body", string(data)))
	}
	return nil
}
