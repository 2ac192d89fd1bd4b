package share_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sortinghat/pkg/model"
	"github.com/m-mizutani/sortinghat/pkg/repository"
	"github.com/m-mizutani/sortinghat/pkg/usecase/share"
)

var fakePNG = []byte("\x89PNG\r\n\x1a\nfake")

type mockStorage struct {
	mu           sync.Mutex
	keys         []string
	contentTypes []string
	data         [][]byte
	err          error
}

func (m *mockStorage) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	m.contentTypes = append(m.contentTypes, contentType)
	m.data = append(m.data, data)
	return "https://cdn.example.com/" + key, nil
}

type ogServer struct {
	*httptest.Server
	mu      sync.Mutex
	queries []url.Values
}

func newOGServer(t *testing.T, status int, body []byte) *ogServer {
	t.Helper()
	s := &ogServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()

		if r.URL.Path != "/api/og" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func validRequest() *model.ShareRequest {
	return &model.ShareRequest{
		House:       model.HouseSlytherin,
		DisplayName: "Draco",
		PfpURL:      "https://img.example/d.png",
		FID:         42,
	}
}

func TestCreateShareLink(t *testing.T) {
	og := newOGServer(t, http.StatusOK, fakePNG)
	storage := &mockStorage{}
	repo := repository.NewMemory()
	uc := share.New(og.URL, storage,
		share.WithHTTPClient(og.Client()),
		share.WithRepository(repo),
	)

	ctx := context.Background()
	artifact, err := uc.CreateShareLink(ctx, validRequest())
	gt.NoError(t, err)

	gt.True(t, regexp.MustCompile(`^share-image-42-\d+\.png$`).MatchString(artifact.ImageFileName))
	gt.True(t, regexp.MustCompile(`image=share-image-42-\d+\.png$`).MatchString(artifact.ShareablePageURL))
	gt.Equal(t, artifact.StorageKey, "what-x-are-you/"+artifact.ImageFileName)
	gt.Equal(t, artifact.PublicImageURL, "https://cdn.example.com/"+artifact.StorageKey)
	gt.Equal(t, artifact.ImageBytes, fakePNG)

	gt.A(t, storage.keys).Length(1)
	gt.Equal(t, storage.contentTypes[0], "image/png")
	gt.Equal(t, storage.data[0], fakePNG)

	gt.A(t, og.queries).Length(1)
	q := og.queries[0]
	gt.Equal(t, q.Get("house"), "Slytherin")
	gt.Equal(t, q.Get("displayName"), "Draco")
	gt.Equal(t, q.Get("pfpUrl"), "https://img.example/d.png")
	gt.Equal(t, q.Get("fid"), "42")

	records, err := repo.ListSharesByFID(ctx, 42)
	gt.NoError(t, err)
	gt.A(t, records).Length(1)
	gt.Equal(t, records[0].StorageKey, artifact.StorageKey)
}

func TestCreateShareLinkNeverDeduplicates(t *testing.T) {
	og := newOGServer(t, http.StatusOK, fakePNG)
	storage := &mockStorage{}

	ts := time.UnixMilli(1700000000000)
	uc := share.New(og.URL+"/", storage,
		share.WithHTTPClient(og.Client()),
		share.WithClock(func() time.Time {
			ts = ts.Add(time.Millisecond)
			return ts
		}),
	)

	first, err := uc.CreateShareLink(context.Background(), validRequest())
	gt.NoError(t, err)
	second, err := uc.CreateShareLink(context.Background(), validRequest())
	gt.NoError(t, err)

	gt.A(t, storage.keys).Length(2)
	gt.True(t, first.StorageKey != second.StorageKey)
	gt.Equal(t, first.ImageFileName, "share-image-42-1700000000001.png")
}

func TestCreateShareLinkOmitsEmptyPfp(t *testing.T) {
	og := newOGServer(t, http.StatusOK, fakePNG)
	uc := share.New(og.URL, &mockStorage{}, share.WithHTTPClient(og.Client()))

	req := validRequest()
	req.PfpURL = ""
	_, err := uc.CreateShareLink(context.Background(), req)
	gt.NoError(t, err)

	_, ok := og.queries[0]["pfpUrl"]
	gt.False(t, ok)
}

func TestCreateShareLinkErrors(t *testing.T) {
	t.Run("missing parameters", func(t *testing.T) {
		storage := &mockStorage{}
		uc := share.New("https://app.example", storage)

		req := validRequest()
		req.DisplayName = ""
		_, err := uc.CreateShareLink(context.Background(), req)
		gt.True(t, errors.Is(err, model.ErrInvalidShareRequest))
		gt.A(t, storage.keys).Length(0)
	})

	t.Run("app url not configured", func(t *testing.T) {
		uc := share.New("", &mockStorage{})
		_, err := uc.CreateShareLink(context.Background(), validRequest())
		gt.True(t, errors.Is(err, share.ErrAppURLNotConfigured))
	})

	t.Run("image endpoint fails", func(t *testing.T) {
		og := newOGServer(t, http.StatusBadGateway, []byte("renderer down"))
		storage := &mockStorage{}
		uc := share.New(og.URL, storage, share.WithHTTPClient(og.Client()))

		_, err := uc.CreateShareLink(context.Background(), validRequest())
		var upstream *share.UpstreamError
		gt.True(t, errors.As(err, &upstream))
		gt.Equal(t, upstream.Status, http.StatusBadGateway)
		gt.Equal(t, upstream.Body, "renderer down")
		gt.Equal(t, upstream.Error(), "Failed to generate OG image: renderer down")
		gt.A(t, storage.keys).Length(0)
	})

	t.Run("upload fails", func(t *testing.T) {
		og := newOGServer(t, http.StatusOK, fakePNG)
		storage := &mockStorage{err: errors.New("bucket gone")}
		repo := repository.NewMemory()
		uc := share.New(og.URL, storage,
			share.WithHTTPClient(og.Client()),
			share.WithRepository(repo),
		)

		_, err := uc.CreateShareLink(context.Background(), validRequest())
		gt.Error(t, err)

		records, err := repo.ListSharesByFID(context.Background(), 42)
		gt.NoError(t, err)
		gt.A(t, records).Length(0)
	})
}
