package credential

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTenantFile(t *testing.T, dir, tenant string, rec fileRecord) {
	t.Helper()
	rec.Tenant = tenant
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, tenant+".json"), data, 0o600))
}

func TestNew_LoadsTenantFilesFromDir(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "acme", fileRecord{
		Type:          TypeAPIKey,
		AccountID:     "acct-1",
		ClientAuthKey: "client-secret-value",
		APIKey:        "sk-ant-apikey0001",
	})

	s, err := New(Options{Dir: dir, RefreshLead: time.Minute})
	require.NoError(t, err)

	cred, err := s.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", cred.AccountID)
	assert.Equal(t, "sk-ant-apikey0001", cred.APIKey)
}

func TestResolve_UnknownTenant(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Options{Dir: dir, RefreshLead: time.Minute})
	require.NoError(t, err)

	_, err = s.Resolve(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUnknownTenant)
}

func TestValidateClientAuth_RejectsWrongKey(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "acme", fileRecord{
		Type:          TypeAPIKey,
		AccountID:     "acct-1",
		ClientAuthKey: "correct-key-value",
		APIKey:        "sk-ant-apikey0002",
	})

	s, err := New(Options{Dir: dir, RefreshLead: time.Minute})
	require.NoError(t, err)

	assert.NoError(t, s.ValidateClientAuth("acme", "correct-key-value"))
	assert.ErrorIs(t, s.ValidateClientAuth("acme", "wrong-key-value"), ErrForbidden)
}

func TestValidateClientAuth_UnknownTenant(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Options{Dir: dir, RefreshLead: time.Minute})
	require.NoError(t, err)

	assert.ErrorIs(t, s.ValidateClientAuth("ghost", "anything"), ErrUnknownTenant)
}

func TestResolve_OAuthCredentialValidBeforeRefreshLead(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "acme", fileRecord{
		Type:          TypeOAuth,
		AccountID:     "acct-2",
		ClientAuthKey: "client-secret-value",
		AccessToken:   "oauth-access-token-value",
		RefreshToken:  "oauth-refresh-token-value",
		ExpiresAt:     time.Now().Add(1 * time.Hour).Unix(),
	})

	s, err := New(Options{Dir: dir, RefreshLead: time.Minute})
	require.NoError(t, err)

	cred, err := s.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "oauth-access-token-value", cred.OAuth.AccessToken)
}

func TestResolve_RefreshFailureFallsBackToOldTokenUntilExpiry(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "acme", fileRecord{
		Type:          TypeOAuth,
		AccountID:     "acct-3",
		ClientAuthKey: "client-secret-value",
		AccessToken:   "oauth-access-token-expiring",
		RefreshToken:  "oauth-refresh-token-expiring",
		ExpiresAt:     time.Now().Add(30 * time.Second).Unix(),
	})

	s, err := New(Options{Dir: dir, RefreshLead: time.Minute, OAuthTokenURL: "http://127.0.0.1:0/oauth/token"})
	require.NoError(t, err)

	// the refresh lead window has been entered (30s < 1m lead) but the
	// token has not hard-expired, so a failed refresh must still return
	// the old, still-technically-live token rather than an error.
	cred, err := s.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "oauth-access-token-expiring", cred.OAuth.AccessToken)
}

func TestResolve_HardExpiredOAuthFails(t *testing.T) {
	dir := t.TempDir()
	writeTenantFile(t, dir, "acme", fileRecord{
		Type:          TypeOAuth,
		AccountID:     "acct-4",
		ClientAuthKey: "client-secret-value",
		AccessToken:   "oauth-access-token-dead",
		RefreshToken:  "oauth-refresh-token-dead",
		ExpiresAt:     time.Now().Add(-1 * time.Minute).Unix(),
	})

	s, err := New(Options{Dir: dir, RefreshLead: time.Minute, OAuthTokenURL: "http://127.0.0.1:0/oauth/token"})
	require.NoError(t, err)

	_, err = s.Resolve(context.Background(), "acme")
	assert.ErrorIs(t, err, ErrUpstreamAuth)
}

// TestResolve_ConcurrentRefreshesAreSingleFlighted is scenario S6: ten
// concurrent resolvers for a tenant whose token is inside the refresh
// lead window must trigger exactly one upstream refresh call, all ten
// must succeed with the new access token, and the on-disk file must
// reflect the refreshed credential.
func TestResolve_ConcurrentRefreshesAreSingleFlighted(t *testing.T) {
	var refreshCalls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"refreshed-access-token","refresh_token":"refreshed-refresh-token","expires_in":3600}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	writeTenantFile(t, dir, "x", fileRecord{
		Type:          TypeOAuth,
		AccountID:     "acct-x",
		ClientAuthKey: "client-secret-value",
		AccessToken:   "oauth-access-token-stale",
		RefreshToken:  "oauth-refresh-token-stale",
		ExpiresAt:     time.Now().Add(30 * time.Second).Unix(),
	})

	s, err := New(Options{Dir: dir, RefreshLead: time.Minute, OAuthTokenURL: srv.URL})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Credential, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Resolve(context.Background(), "x")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "refreshed-access-token", results[i].OAuth.AccessToken)
	}
	assert.Equal(t, int64(1), refreshCalls.Load(), "exactly one upstream refresh call expected")

	raw, err := os.ReadFile(filepath.Join(dir, "x.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "refreshed-access-token")
}

func TestInvalidTenantNameRejected(t *testing.T) {
	dir := t.TempDir()
	s, err := New(Options{Dir: dir, RefreshLead: time.Minute})
	require.NoError(t, err)

	_, err = s.tenantPath("../escape")
	assert.ErrorIs(t, err, ErrInvalidTenantName)
}
