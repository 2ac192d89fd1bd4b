package adapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
)

const (
	neynarBaseURL = "https://api.neynar.com"

	DefaultCastPages = 3
	DefaultCastLimit = 150
)

var (
	ErrNeynarDisabled = goerr.New("neynar api key is not set")
	ErrUserNotFound   = goerr.New("user not found")
)

// Neynar is the interface of the Farcaster social graph API
type Neynar interface {
	// GetUser fetches the profile of fid
	GetUser(ctx context.Context, fid model.FID) (*model.Profile, error)
	// GetRecentCastTexts fetches up to pages*limit recent cast texts. Pagination
	// stops at the first failed page, and casts collected so far are returned.
	GetRecentCastTexts(ctx context.Context, fid model.FID, pages, limit int) []string
}

type NeynarClient struct {
	apiKey       string
	baseURL      string
	castFIDParam string
	httpClient   *http.Client
}

type NeynarOption func(*NeynarClient)

func WithNeynarBaseURL(baseURL string) NeynarOption {
	return func(c *NeynarClient) {
		c.baseURL = baseURL
	}
}

// WithCastFIDParam sets the query parameter name carrying the FID of the user
// casts endpoint
func WithCastFIDParam(name string) NeynarOption {
	return func(c *NeynarClient) {
		c.castFIDParam = name
	}
}

func WithNeynarHTTPClient(client *http.Client) NeynarOption {
	return func(c *NeynarClient) {
		c.httpClient = client
	}
}

// NewNeynar creates a Neynar client. An empty apiKey is accepted, and every
// call then returns without sending a request.
func NewNeynar(apiKey string, opts ...NeynarOption) *NeynarClient {
	c := &NeynarClient{
		apiKey:       apiKey,
		baseURL:      neynarBaseURL,
		castFIDParam: "fid",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type neynarUser struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PfpURL      string `json:"pfp_url"`
	Profile     struct {
		Bio struct {
			Text string `json:"text"`
		} `json:"bio"`
	} `json:"profile"`
}

type neynarUserBulkResponse struct {
	Users []neynarUser `json:"users"`
}

type neynarCastsResponse struct {
	Casts []struct {
		Text string `json:"text"`
	} `json:"casts"`
	Next *struct {
		Cursor string `json:"cursor"`
	} `json:"next"`
}

func (c *NeynarClient) GetUser(ctx context.Context, fid model.FID) (*model.Profile, error) {
	if c.apiKey == "" {
		logging.From(ctx).Error("cannot fetch user from neynar: api key is not set")
		return nil, ErrNeynarDisabled
	}
	if err := fid.Validate(); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("fids", fid.String())

	var resp neynarUserBulkResponse
	if err := c.get(ctx, "/v2/farcaster/user/bulk", q, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to fetch user", goerr.V("fid", fid))
	}

	if len(resp.Users) == 0 {
		logging.From(ctx).Warn("no user data found in neynar response", "fid", fid)
		return nil, goerr.Wrap(ErrUserNotFound, "empty user list", goerr.V("fid", fid))
	}

	user := resp.Users[0]
	return &model.Profile{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		PfpURL:      user.PfpURL,
		Bio:         user.Profile.Bio.Text,
	}, nil
}

func (c *NeynarClient) GetRecentCastTexts(ctx context.Context, fid model.FID, pages, limit int) []string {
	logger := logging.From(ctx)
	texts := []string{}

	if c.apiKey == "" {
		logger.Error("cannot fetch casts from neynar: api key is not set")
		return texts
	}
	if err := fid.Validate(); err != nil {
		logger.Error("invalid fid for cast fetch", "error", err)
		return texts
	}

	logger.Info("fetching casts", "fid", fid, "pages", pages, "limit", limit)

	var cursor string
	for i := 0; i < pages; i++ {
		q := url.Values{}
		q.Set(c.castFIDParam, fid.String())
		q.Set("limit", strconv.Itoa(limit))
		q.Set("include_replies", "false")
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var resp neynarCastsResponse
		if err := c.get(ctx, "/v2/farcaster/feed/user/casts", q, &resp); err != nil {
			logger.Error("failed to fetch casts page, stop pagination", "page", i+1, "error", err)
			break
		}

		fetched := 0
		for _, cast := range resp.Casts {
			if cast.Text == "" {
				continue
			}
			texts = append(texts, cast.Text)
			fetched++
		}
		logger.Debug("fetched casts page", "page", i+1, "count", fetched)

		if resp.Next == nil || resp.Next.Cursor == "" {
			logger.Debug("no next cursor, stop pagination", "page", i+1)
			break
		}
		cursor = resp.Next.Cursor
	}

	logger.Info("finished fetching casts", "fid", fid, "total", len(texts))
	return texts
}

func (c *NeynarClient) get(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api_key", c.apiKey)
	req.Header.Set("x-neynar-experimental", "false")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to send request", goerr.V("path", path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return goerr.New("neynar API returned error",
			goerr.V("path", path),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode response", goerr.V("path", path))
	}

	return nil
}
