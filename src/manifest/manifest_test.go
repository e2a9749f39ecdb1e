package manifest

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-project/launchcore/src/httpclient"
)

const fixture = `{
  "latest": {"release": "1.16.5", "snapshot": "21w07a"},
  "versions": [
    {"id": "1.16.5", "type": "release", "url": "https://example.com/1.16.5.json"},
    {"id": "1.16.4", "type": "release", "url": "https://example.com/1.16.4.json"},
    {"id": "21w07a", "type": "snapshot", "url": "https://example.com/21w07a.json"}
  ]
}`

func TestLoadFromRemoteAndGetVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	m, err := LoadFromRemote(httpclient.New(0), srv.URL)
	require.NoError(t, err)

	v, err := m.GetVersion("release")
	require.NoError(t, err)
	assert.Equal(t, "1.16.5", v.ID)

	v, err = m.GetVersion("1.16.4")
	require.NoError(t, err)
	assert.Equal(t, "1.16.4", v.ID)

	_, err = m.GetVersion("does-not-exist")
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestSearchAliasYieldsExactHit(t *testing.T) {
	m := &Manifest{
		Latest: map[string]string{"release": "1.16.5"},
		Versions: []Descriptor{
			{ID: "1.16.5"}, {ID: "1.16.4"},
		},
	}
	var got []Descriptor
	for d := range m.Search("release") {
		got = append(got, d)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "1.16.5", got[0].ID)
}

func TestSearchSubstringYieldsAllMatches(t *testing.T) {
	m := &Manifest{
		Versions: []Descriptor{
			{ID: "1.16.5"}, {ID: "1.16.4"}, {ID: "1.17"},
		},
	}
	var got []string
	for d := range m.Search("1.16") {
		got = append(got, d.ID)
	}
	assert.ElementsMatch(t, []string{"1.16.5", "1.16.4"}, got)
}
