package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-project/launchcore/src/httpclient"
)

func newOAuthFixture(t *testing.T, xblHash, xstsHash string) (OAuthEndpoints, *httptest.Server) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "ms-access",
			"token_type":    "bearer",
			"expires_in":    3600,
			"refresh_token": "ms-refresh",
		})
	})
	mux.HandleFunc("/xbl", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"Token":         "xbl-token",
			"DisplayClaims": map[string]any{"xui": []any{map[string]any{"uhs": xblHash}}},
		})
	})
	mux.HandleFunc("/xsts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"Token":         "xsts-token",
			"DisplayClaims": map[string]any{"xui": []any{map[string]any{"uhs": xstsHash}}},
		})
	})
	mux.HandleFunc("/login_with_xbox", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_token": "game-access"})
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "mc-uuid", "name": "Alex"})
	})
	server := httptest.NewServer(mux)

	endpoints := OAuthEndpoints{
		Token:       server.URL + "/token",
		XBL:         server.URL + "/xbl",
		XSTS:        server.URL + "/xsts",
		GameService: server.URL + "/login_with_xbox",
		Profile:     server.URL + "/profile",
	}
	return endpoints, server
}

func TestAuthenticateOAuthChainSucceeds(t *testing.T) {
	endpoints, server := newOAuthFixture(t, "hash-1", "hash-1")
	defer server.Close()

	client := httpclient.New(0)
	session, err := AuthenticateOAuthChain(client, endpoints, "client-id", "auth-code", "https://redirect.example/cb")
	require.NoError(t, err)
	assert.Equal(t, "game-access", session.AccessToken)
	assert.Equal(t, "mc-uuid", session.UUID)
	assert.Equal(t, "Alex", session.Username)
	assert.Equal(t, "ms-refresh", session.RefreshToken)
}

func TestAuthenticateOAuthChainMismatchedUserHashFails(t *testing.T) {
	endpoints, server := newOAuthFixture(t, "hash-1", "hash-2")
	defer server.Close()

	client := httpclient.New(0)
	session, err := AuthenticateOAuthChain(client, endpoints, "client-id", "auth-code", "https://redirect.example/cb")
	assert.Nil(t, session)
	assert.ErrorIs(t, err, ErrInconsistentUserHash)
}

func TestOAuthChainRefreshConsumesPendingRename(t *testing.T) {
	session := &OAuthChainSession{Username: "Old", PendingRename: "New"}
	require.NoError(t, session.Refresh())
	assert.Equal(t, "New", session.Username)
	assert.Empty(t, session.PendingRename)
}

func TestAuthenticationURLIncludesExpectedParams(t *testing.T) {
	u := AuthenticationURL(DefaultOAuthEndpoints, "client-id", "https://redirect.example/cb", "p@example.com", "nonce-1")
	assert.Contains(t, u, "response_type=code+id_token")
	assert.Contains(t, u, "response_mode=form_post")
	assert.Contains(t, u, "login_hint=p%40example.com")
	assert.Contains(t, u, "nonce=nonce-1")
}
