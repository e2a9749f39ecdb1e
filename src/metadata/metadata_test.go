package metadata

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-project/launchcore/src/httpclient"
	"github.com/kestrel-project/launchcore/src/manifest"
)

func TestMergeDictLaws(t *testing.T) {
	dst := map[string]any{
		"libraries": []any{"C"},
		"nested":    map[string]any{"x": 1.0},
		"scalar":    "child",
	}
	other := map[string]any{
		"libraries": []any{"A", "B"},
		"nested":    map[string]any{"y": 2.0},
		"scalar":    "parent",
		"onlyOther": "kept",
	}
	Merge(dst, other)

	assert.Equal(t, []any{"A", "B", "C"}, dst["libraries"])
	assert.Equal(t, map[string]any{"x": 1.0, "y": 2.0}, dst["nested"])
	assert.Equal(t, "child", dst["scalar"])
	assert.Equal(t, "kept", dst["onlyOther"])
}

func TestMergeIsIdempotent(t *testing.T) {
	m := map[string]any{"libraries": []any{"A"}, "id": "x"}
	clone := map[string]any{"libraries": []any{"A"}, "id": "x"}
	Merge(m, clone)
	assert.Equal(t, clone, m)
}

func TestInstallMetaNoInheritance(t *testing.T) {
	dir := t.TempDir()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "1.16.5", "mainClass": "net.minecraft.client.main.Main"})
	}))
	defer srv.Close()

	m := &manifest.Manifest{Versions: []manifest.Descriptor{{ID: "1.16.5", URL: srv.URL}}}
	r := NewResolver(filepath.Join(dir, "versions"), httpclient.New(0), m)

	doc, err := r.InstallMeta("1.16.5")
	require.NoError(t, err)
	assert.Equal(t, "1.16.5", doc["id"])
	assert.NotContains(t, doc, "inheritsFrom")

	raw, err := os.ReadFile(filepath.Join(dir, "versions", "1.16.5", "1.16.5.json"))
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "1.16.5", onDisk["id"])
}

func TestInstallMetaMergesParent(t *testing.T) {
	dir := t.TempDir()
	versionsDir := filepath.Join(dir, "versions")

	parent := map[string]any{
		"id":        "1.16.5",
		"libraries": []any{"A", "B"},
		"arguments": map[string]any{"jvm": []any{"X"}},
	}
	child := map[string]any{
		"id":           "mod-1.16.5",
		"inheritsFrom": "1.16.5",
		"libraries":    []any{"C"},
		"arguments":    map[string]any{"jvm": []any{"Y"}},
	}
	writeJSONPretty(filepath.Join(versionsDir, "1.16.5", "1.16.5.json"), parent)
	writeJSONPretty(filepath.Join(versionsDir, "mod-1.16.5", "mod-1.16.5.json"), child)

	r := NewResolver(versionsDir, httpclient.New(0), nil)
	doc, err := r.InstallMeta("mod-1.16.5")
	require.NoError(t, err)

	assert.Equal(t, "mod-1.16.5", doc["id"])
	assert.NotContains(t, doc, "inheritsFrom")
	assert.Equal(t, []any{"A", "B", "C"}, doc["libraries"])
	args := doc["arguments"].(map[string]any)
	assert.Equal(t, []any{"X", "Y"}, args["jvm"])
}

func TestInstallMetaCycleIsBounded(t *testing.T) {
	dir := t.TempDir()
	versionsDir := filepath.Join(dir, "versions")

	writeJSONPretty(filepath.Join(versionsDir, "a", "a.json"), map[string]any{"id": "a", "inheritsFrom": "b"})
	writeJSONPretty(filepath.Join(versionsDir, "b", "b.json"), map[string]any{"id": "b", "inheritsFrom": "a"})

	r := NewResolver(versionsDir, httpclient.New(0), nil)
	_, err := r.InstallMeta("a")
	assert.ErrorIs(t, err, ErrInheritanceCycle)
}
