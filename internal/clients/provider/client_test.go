package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbaxter/finsync/internal/models"
)

func TestPullDecodesSnapshotPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acct-1/snapshot", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"accounts": [{"id":"prov-1","name":"Everyday","type":"checking","balance":125000,"currency":"USD"}],
			"transactions": [{"id":"pt-1","account_id":"prov-1","amount":-4500,"date":"2026-03-10","description":"Cafe","category":"dining","pending":false}],
			"as_of": "2026-03-11T08:00:00Z",
			"next_cursor": "def",
			"has_more": true
		}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	snapshot, next, hasMore, err := client.Pull(context.Background(), "acct-1", "abc")
	require.NoError(t, err)

	assert.Equal(t, "def", next)
	assert.True(t, hasMore)
	require.Len(t, snapshot.Accounts, 1)
	assert.Equal(t, models.Money(125000), snapshot.Accounts[0].Balance)
	require.Len(t, snapshot.Transactions, 1)
	assert.Equal(t, models.Money(-4500), snapshot.Transactions[0].Amount)
	assert.Equal(t, "dining", snapshot.Transactions[0].Category)
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), snapshot.Baseline)
}

func TestPullMapsServerErrorsToProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	_, _, _, err := client.Pull(context.Background(), "acct-1", "")
	require.Error(t, err)
	assert.True(t, models.IsProviderUnavailable(err))
	assert.False(t, models.IsRelinkRequired(err))
}

func TestPullMapsUnauthorizedToRelinkRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "item login required", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")
	_, _, _, err := client.Pull(context.Background(), "acct-1", "")
	require.Error(t, err)
	assert.True(t, models.IsRelinkRequired(err))
	assert.False(t, models.IsProviderUnavailable(err))
}

func TestPullTimeoutIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", WithTimeout(20*time.Millisecond))
	_, _, _, err := client.Pull(context.Background(), "acct-1", "")
	require.Error(t, err)
	assert.True(t, models.IsProviderUnavailable(err))
}

func TestPullContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := NewClient(srv.URL, "test-key")
	_, _, _, err := client.Pull(ctx, "acct-1", "")
	require.Error(t, err)
}
