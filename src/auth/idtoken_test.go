package auth

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIDToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(claims)
	require.NoError(t, err)
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return "header." + payload + ".signature"
}

func TestCheckTokenIDMatches(t *testing.T) {
	token := buildIDToken(t, map[string]any{"nonce": "abc", "email": "p@example.com"})
	ok, err := CheckTokenID(token, "p@example.com", "abc")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckTokenIDMismatch(t *testing.T) {
	token := buildIDToken(t, map[string]any{"nonce": "abc", "email": "p@example.com"})
	ok, err := CheckTokenID(token, "other@example.com", "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckTokenIDMalformed(t *testing.T) {
	_, err := CheckTokenID("not-a-jwt", "e", "n")
	assert.Error(t, err)
}
