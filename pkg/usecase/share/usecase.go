package share

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/sortinghat/pkg/adapter"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/repository"
	"github.com/m-mizutani/sortinghat/pkg/utils/logging"
)

const (
	imageContentType = "image/png"
	maxImageBytes    = 10 << 20
)

var (
	ErrAppURLNotConfigured = goerr.New("APP_URL is not configured.")
)

// UpstreamError is returned when the image endpoint answers with a non-2xx
// status. Status and Body are relayed to the caller as they are.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Failed to generate OG image: %s", e.Body)
}

// UseCase renders, stores and links share images
type UseCase struct {
	appURL     string
	storage    adapter.Storage
	repo       repository.Repository
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*UseCase)

// WithRepository records every stored share image in repo
func WithRepository(repo repository.Repository) Option {
	return func(uc *UseCase) {
		uc.repo = repo
	}
}

// WithHTTPClient sets the client used to call the image endpoint
func WithHTTPClient(client *http.Client) Option {
	return func(uc *UseCase) {
		uc.httpClient = client
	}
}

// WithClock replaces the time source of image file names
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates a share UseCase. An empty appURL is accepted here and reported
// on every CreateShareLink call.
func New(appURL string, storage adapter.Storage, opts ...Option) *UseCase {
	uc := &UseCase{
		appURL:     strings.TrimSuffix(appURL, "/"),
		storage:    storage,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// CreateShareLink renders the share image through the app's own image
// endpoint, uploads it and returns the links. Every call creates a new object.
func (u *UseCase) CreateShareLink(ctx context.Context, req *model.ShareRequest) (*model.ShareArtifact, error) {
	logger := logging.From(ctx).With("fid", req.FID, "house", req.House)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	if u.appURL == "" {
		return nil, ErrAppURLNotConfigured
	}

	img, err := u.fetchImage(ctx, req)
	if err != nil {
		return nil, err
	}

	fileName := model.ShareImageFileName(req.FID, u.now())
	key := model.ShareImageKey(fileName)

	publicURL, err := u.storage.Put(ctx, key, imageContentType, img)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to upload share image", goerr.V("key", key))
	}

	pageURL, err := url.Parse(u.appURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid app url", goerr.V("app_url", u.appURL))
	}
	q := pageURL.Query()
	q.Set("image", fileName)
	pageURL.RawQuery = q.Encode()

	artifact := &model.ShareArtifact{
		ImageBytes:       img,
		StorageKey:       key,
		PublicImageURL:   publicURL,
		ShareablePageURL: pageURL.String(),
		ImageFileName:    fileName,
	}
	logger.Info("share image stored", "key", key, "size", len(img))

	if u.repo != nil {
		record := &model.ShareRecord{
			ID:             model.NewRecordID(),
			FID:            req.FID,
			House:          req.House,
			StorageKey:     key,
			PublicImageURL: publicURL,
			CreatedAt:      u.now(),
		}
		if err := u.repo.PutShare(ctx, record); err != nil {
			logger.Warn("failed to record share", "error", err)
		}
	}

	return artifact, nil
}

func (u *UseCase) fetchImage(ctx context.Context, req *model.ShareRequest) ([]byte, error) {
	ogURL, err := url.Parse(u.appURL + "/api/og")
	if err != nil {
		return nil, goerr.Wrap(err, "invalid app url", goerr.V("app_url", u.appURL))
	}

	q := ogURL.Query()
	q.Set("house", string(req.House))
	q.Set("displayName", req.DisplayName)
	if req.PfpURL != "" {
		q.Set("pfpUrl", req.PfpURL)
	}
	q.Set("fid", req.FID.String())
	ogURL.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, ogURL.String(), nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create image request")
	}

	resp, err := u.httpClient.Do(httpReq)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call image endpoint", goerr.V("url", ogURL.String()))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read image response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logging.From(ctx).Warn("image endpoint returned error",
			"status", resp.StatusCode,
			"body", string(body))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
