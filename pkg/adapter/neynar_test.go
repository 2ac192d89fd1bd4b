package adapter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/sortinghat/pkg/adapter"
	"github.com/m-mizutani/sortinghat/pkg/model"
)

type castsPage struct {
	texts  []string
	cursor string
	status int
}

func newCastsServer(t *testing.T, pages []castsPage, calls *int32, cursors *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/v2/farcaster/feed/user/casts")
		gt.Equal(t, r.Header.Get("api_key"), "test-key")
		gt.Equal(t, r.URL.Query().Get("include_replies"), "false")

		n := atomic.AddInt32(calls, 1)
		if cursors != nil {
			*cursors = append(*cursors, r.URL.Query().Get("cursor"))
		}

		idx := int(n) - 1
		if idx >= len(pages) {
			idx = len(pages) - 1
		}
		page := pages[idx]
		if page.status != 0 {
			w.WriteHeader(page.status)
			fmt.Fprint(w, `{"message":"boom"}`)
			return
		}

		casts := make([]map[string]string, 0, len(page.texts))
		for _, text := range page.texts {
			casts = append(casts, map[string]string{"text": text})
		}
		body := map[string]any{"casts": casts}
		if page.cursor != "" {
			body["next"] = map[string]string{"cursor": page.cursor}
		}
		gt.NoError(t, json.NewEncoder(w).Encode(body))
	}))
}

func TestGetRecentCastTextsStopsWithoutCursor(t *testing.T) {
	var calls int32
	var cursors []string
	srv := newCastsServer(t, []castsPage{
		{texts: []string{"first", "", "second"}, cursor: "c1"},
		{texts: []string{"third"}},
	}, &calls, &cursors)
	defer srv.Close()

	client := adapter.NewNeynar("test-key", adapter.WithNeynarBaseURL(srv.URL))
	texts := client.GetRecentCastTexts(context.Background(), 4407, 3, 150)

	gt.Equal(t, texts, []string{"first", "second", "third"})
	gt.Equal(t, atomic.LoadInt32(&calls), int32(2))
	gt.Equal(t, cursors, []string{"", "c1"})
}

func TestGetRecentCastTextsHonorsPageCap(t *testing.T) {
	var calls int32
	srv := newCastsServer(t, []castsPage{
		{texts: []string{"always", "full"}, cursor: "more"},
	}, &calls, nil)
	defer srv.Close()

	client := adapter.NewNeynar("test-key", adapter.WithNeynarBaseURL(srv.URL))
	texts := client.GetRecentCastTexts(context.Background(), 4407, 3, 2)

	gt.A(t, texts).Length(6)
	gt.Equal(t, atomic.LoadInt32(&calls), int32(3))
}

func TestGetRecentCastTextsStopsOnFailedPage(t *testing.T) {
	var calls int32
	srv := newCastsServer(t, []castsPage{
		{texts: []string{"kept"}, cursor: "c1"},
		{status: http.StatusInternalServerError},
		{texts: []string{"never"}},
	}, &calls, nil)
	defer srv.Close()

	client := adapter.NewNeynar("test-key", adapter.WithNeynarBaseURL(srv.URL))
	texts := client.GetRecentCastTexts(context.Background(), 4407, 3, 150)

	gt.Equal(t, texts, []string{"kept"})
	gt.Equal(t, atomic.LoadInt32(&calls), int32(2))
}

func TestGetRecentCastTextsCustomFIDParam(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Query().Get("fids"), "4407")
		gt.Equal(t, r.URL.Query().Get("fid"), "")
		fmt.Fprint(w, `{"casts":[{"text":"hello"}]}`)
	}))
	defer srv.Close()

	client := adapter.NewNeynar("test-key",
		adapter.WithNeynarBaseURL(srv.URL),
		adapter.WithCastFIDParam("fids"),
	)
	texts := client.GetRecentCastTexts(context.Background(), 4407, 3, 150)
	gt.Equal(t, texts, []string{"hello"})
}

func TestNeynarWithoutAPIKeySendsNothing(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := adapter.NewNeynar("", adapter.WithNeynarBaseURL(srv.URL))
	ctx := context.Background()

	texts := client.GetRecentCastTexts(ctx, 4407, 3, 150)
	gt.A(t, texts).Length(0)

	profile, err := client.GetUser(ctx, 4407)
	gt.Error(t, err).Is(adapter.ErrNeynarDisabled)
	gt.Nil(t, profile)

	gt.Equal(t, atomic.LoadInt32(&calls), int32(0))
}

func TestGetUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gt.Equal(t, r.URL.Path, "/v2/farcaster/user/bulk")
		switch r.URL.Query().Get("fids") {
		case "4407":
			fmt.Fprint(w, `{"users":[{"username":"alice","display_name":"Alice","pfp_url":"http://x/a.png","profile":{"bio":{"text":"curious mind"}}}]}`)
		case "404":
			fmt.Fprint(w, `{"users":[]}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"message":"bad fid"}`)
		}
	}))
	defer srv.Close()

	client := adapter.NewNeynar("test-key", adapter.WithNeynarBaseURL(srv.URL))
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		profile, err := client.GetUser(ctx, 4407)
		gt.NoError(t, err)
		gt.Equal(t, profile, &model.Profile{
			Username:    "alice",
			DisplayName: "Alice",
			PfpURL:      "http://x/a.png",
			Bio:         "curious mind",
		})
	})

	t.Run("empty result", func(t *testing.T) {
		profile, err := client.GetUser(ctx, 404)
		gt.Error(t, err).Is(adapter.ErrUserNotFound)
		gt.Nil(t, profile)
	})

	t.Run("upstream error", func(t *testing.T) {
		profile, err := client.GetUser(ctx, 500)
		gt.Error(t, err)
		gt.Nil(t, profile)
	})
}
