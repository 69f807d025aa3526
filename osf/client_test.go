package osf_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/osfipm/osf"
	"github.com/c360studio/semstreams/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func newTestClient(t *testing.T, handler http.Handler) *osf.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return osf.NewClient(server.URL+"/v2",
		osf.WithToken("secret"),
		osf.WithRetryConfig(fastRetry()),
		osf.WithHTTPClient(server.Client()))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/vnd.api+json")
	w.WriteHeader(status)
	fmt.Fprint(w, body)
}

func TestClient_GetRegistration(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v2/registrations/y6cx7/", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.api+json", r.Header.Get("Accept"))
		writeJSON(w, http.StatusOK, `{"data": {"id": "y6cx7", "type": "registrations", "attributes": {"title": "Pre-registration", "public": true}}}`)
	}))

	reg, err := client.GetRegistration(context.Background(), "y6cx7")
	require.NoError(t, err)
	assert.Equal(t, "Pre-registration", reg.Title)
	assert.True(t, reg.Public)
}

func TestClient_Pagination(t *testing.T) {
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/registrations/y6cx7/contributors/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "users", r.URL.Query().Get("embed"))
		assert.Equal(t, "2", r.URL.Query().Get("page[size]"))
		writeJSON(w, http.StatusOK, `{
			"data": [
				{"id": "y6cx7-u1", "type": "contributors", "attributes": {"index": 0}},
				{"id": "y6cx7-u2", "type": "contributors", "attributes": {"index": 1}}
			],
			"links": {"next": "`+serverURL+`/v2/page2"}
		}`)
	})
	mux.HandleFunc("/v2/page2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{
			"data": [{"id": "y6cx7-u3", "type": "contributors", "attributes": {"index": 2}}],
			"links": {"next": null}
		}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL

	client := osf.NewClient(server.URL+"/v2/", osf.WithPageSize(2), osf.WithRetryConfig(fastRetry()))
	contributors, err := client.ListContributors(context.Background(), osf.KindRegistration, "y6cx7")
	require.NoError(t, err)

	require.Len(t, contributors, 3)
	for i, c := range contributors {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, fmt.Sprintf("u%d", i+1), c.UserID)
	}
}

func TestClient_NotFound(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, `{"errors": [{"detail": "Not found."}]}`)
	}))

	_, err := client.GetNode(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, osf.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load(), "404 is not retried")

	var apiErr *osf.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "Not found.")
}

func TestClient_RetryClassification(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantErr   bool
	}{
		{"server error then success", []int{http.StatusServiceUnavailable, http.StatusOK}, 2, false},
		{"rate limited then success", []int{http.StatusTooManyRequests, http.StatusOK}, 2, false},
		{"persistent server error", []int{500, 500, 500}, 3, true},
		{"forbidden is fatal", []int{http.StatusForbidden}, 1, true},
		{"bad request is fatal", []int{http.StatusBadRequest}, 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(calls.Add(1)) - 1
				status := tt.statuses[min(n, len(tt.statuses)-1)]
				if status == http.StatusOK {
					writeJSON(w, status, `{"data": {"id": "u1", "type": "users", "attributes": {"full_name": "Ada"}}}`)
					return
				}
				writeJSON(w, status, `{"errors": [{"title": "failure"}]}`)
			}))

			u, err := client.GetUser(context.Background(), "u1")
			assert.Equal(t, tt.wantCalls, calls.Load())
			if tt.wantErr {
				require.Error(t, err)
				assert.NotErrorIs(t, err, osf.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Ada", u.FullName)
		})
	}
}

func TestClient_MalformedBodyNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusOK, `{"data": `)
	}))

	_, err := client.GetLicense(context.Background(), "lic1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ListFolder(t *testing.T) {
	var serverURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/registrations/y6cx7/files/osfstorage/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data": [{
			"id": "d1", "type": "files",
			"attributes": {"name": "raw", "kind": "folder", "materialized_path": "/raw/"},
			"relationships": {"files": {"links": {"related": {"href": "`+serverURL+`/v2/files/d1/files/"}}}}
		}]}`)
	})
	mux.HandleFunc("/v2/files/d1/files/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data": [{"id": "f1", "type": "files", "attributes": {"name": "a.csv", "kind": "file"}}]}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	serverURL = server.URL

	client := osf.NewClient(server.URL+"/v2/", osf.WithRetryConfig(fastRetry()))
	files, err := client.ListFiles(context.Background(), osf.KindRegistration, "y6cx7")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.True(t, files[0].IsFolder())

	contents, err := client.ListFolder(context.Background(), files[0])
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Equal(t, "a.csv", contents[0].Name)

	none, err := client.ListFolder(context.Background(), contents[0])
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClient_Download(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "a,b\n1,2\n")
	}))

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), clientURL(t, client)+"download/f1", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, "a,b\n1,2\n", buf.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"data": null}`)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ListWikis(ctx, osf.KindNode, "n1")
	assert.ErrorIs(t, err, context.Canceled)
}

func clientURL(t *testing.T, c *osf.Client) string {
	t.Helper()
	return c.BaseURL()
}
