package cloudflare

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestKV(t *testing.T, handler http.HandlerFunc) *KVClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	kv, err := NewKV("test-token", "acct", "ns", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return kv
}

func TestCloudflare_KV_Get(t *testing.T) {
	t.Parallel()

	kv := newTestKV(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/accounts/acct/storage/kv/namespaces/ns/values/active_db", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "blue")
	})

	val, err := kv.Get(context.Background(), "active_db")
	require.NoError(t, err)
	require.Equal(t, "blue", val)
}

func TestCloudflare_KV_Get_NotFound(t *testing.T) {
	t.Parallel()

	kv := newTestKV(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := kv.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestCloudflare_KV_Get_ServerError(t *testing.T) {
	t.Parallel()

	kv := newTestKV(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := kv.Get(context.Background(), "active_db")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrKeyNotFound)
}

func TestCloudflare_KV_Put(t *testing.T) {
	t.Parallel()

	var gotBody string
	kv := newTestKV(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/accounts/acct/storage/kv/namespaces/ns/values/active_db", r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotBody = string(body)
	})

	require.NoError(t, kv.Put(context.Background(), "active_db", "green"))
	require.Equal(t, "green", gotBody)
}

func TestCloudflare_KV_New_RequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewKV("", "acct", "ns")
	require.Error(t, err)
	_, err = NewKV("tok", "", "ns")
	require.Error(t, err)
	_, err = NewKV("tok", "acct", "")
	require.Error(t, err)
}
