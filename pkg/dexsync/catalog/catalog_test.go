package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts.BaseURL = srv.URL + "/api/v2/"
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestProbeCount(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Count
	}{
		{"integer", `{"count": 367, "next": null, "results": []}`, Count{N: 367, Known: true}},
		{"zero", `{"count": 0, "results": []}`, Count{N: 0, Known: true}},
		{"missing", `{"results": []}`, Count{}},
		{"null", `{"count": null, "results": []}`, Count{}},
		{"string", `{"count": "367", "results": []}`, Count{}},
		{"fraction", `{"count": 3.5, "results": []}`, Count{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit string
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v2/ability", r.URL.Path)
				gotLimit = r.URL.Query().Get("limit")
				fmt.Fprint(w, tt.body)
			}), Options{})

			got, err := c.ProbeCount(context.Background(), "ability")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "1", gotLimit)
		})
	}
}

func TestProbeCount_HTTPError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), Options{})

	_, err := c.ProbeCount(context.Background(), "move")
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.Status)
	assert.Contains(t, httpErr.URL, "/api/v2/move")
}

func TestListAll_SinglePage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/pokemon-species", r.URL.Path)
		assert.Equal(t, "250", r.URL.Query().Get("limit"))
		assert.Equal(t, "0", r.URL.Query().Get("offset"))
		fmt.Fprint(w, `{"count": 3, "next": null, "results": [
			{"name": "bulbasaur", "url": "u1"},
			{"name": "ivysaur", "url": "u2"},
			{"name": "bulbasaur", "url": "u1"},
			{"name": "", "url": "u3"}
		]}`)
	}), Options{PageSize: 250})

	entries, err := c.ListAll(context.Background(), "pokemon-species")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bulbasaur", entries[0].Name)
	assert.Equal(t, "ivysaur", entries[1].Name)
}

func TestListAll_FollowsNext(t *testing.T) {
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/move", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprintf(w, `{"count": 3, "next": "%s/api/v2/move?offset=2&limit=2", "results": [{"name": "pound"}, {"name": "karate-chop"}]}`, srvURL)
		case "2":
			fmt.Fprint(w, `{"count": 3, "next": null, "results": [{"name": "double-slap"}]}`)
		default:
			t.Errorf("unexpected offset %q", r.URL.Query().Get("offset"))
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	c, err := New(Options{BaseURL: srv.URL + "/api/v2", PageSize: 2})
	require.NoError(t, err)

	entries, err := c.ListAll(context.Background(), "move")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"pound", "karate-chop", "double-slap"}, names)
}

func TestListAll_StopsOnRepeatedNext(t *testing.T) {
	var srvURL string
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprintf(w, `{"count": 1, "next": "%s/api/v2/ability?offset=1", "results": [{"name": "stench"}]}`, srvURL)
	}))
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	c, err := New(Options{BaseURL: srv.URL + "/api/v2"})
	require.NoError(t, err)

	entries, err := c.ListAll(context.Background(), "ability")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, int32(2), calls.Load(), "the second page repeats its own next link")
}

func TestDetail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/ability/stench" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.Equal(t, "dexsync-test", r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"id": 1, "name": "stench"}`)
	}), Options{UserAgent: "dexsync-test"})

	raw, err := c.Detail(context.Background(), "ability", "stench")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 1, "name": "stench"}`, string(raw))

	_, err = c.Detail(context.Background(), "ability", "missing")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestRateLimitHonorsContext(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{}`)
	}), Options{RateLimit: 0.001})

	// The first request consumes the single burst token.
	_, err := c.Detail(context.Background(), "move", "pound")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Detail(ctx, "move", "pound")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCountString(t *testing.T) {
	assert.Equal(t, "unknown", Count{}.String())
	assert.Equal(t, "42", Count{N: 42, Known: true}.String())
}
