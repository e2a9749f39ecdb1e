// Package metadata loads and resolves the per-version metadata document,
// following inheritsFrom chains and deep-merging parent into child.
package metadata

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/httpclient"
	"github.com/kestrel-project/launchcore/src/manifest"
)

// MaxInheritanceDepth bounds the inheritsFrom recursion to defeat cycles.
const MaxInheritanceDepth = 10

// ErrInheritanceCycle is returned when resolution exceeds MaxInheritanceDepth.
var ErrInheritanceCycle = errors.New("metadata: inheritance depth exceeded, likely a cycle")

// Doc is a resolved or in-progress version metadata document. Represented as
// a generic JSON object because the deep-merge law must operate on arbitrary
// nested maps/lists/scalars, which a fixed struct cannot express for unknown
// keys.
type Doc map[string]any

// Resolver fetches-or-caches version documents and resolves inheritance.
type Resolver struct {
	VersionsDir string
	HTTP        *httpclient.Client
	Manifest    *manifest.Manifest
}

// NewResolver builds a Resolver rooted at versionsDir.
func NewResolver(versionsDir string, client *httpclient.Client, m *manifest.Manifest) *Resolver {
	return &Resolver{VersionsDir: versionsDir, HTTP: client, Manifest: m}
}

func (r *Resolver) docPath(id string) string {
	return filepath.Join(r.VersionsDir, id, id+".json")
}

// loadOrFetch implements §4.4 steps 1-2: read the cached file if present,
// otherwise resolve through the manifest, fetch, and cache it.
func (r *Resolver) loadOrFetch(id string) (Doc, error) {
	path := r.docPath(id)
	if raw, err := os.ReadFile(path); err == nil {
		var doc Doc
		if err := json.Unmarshal(raw, &doc); err == nil {
			return doc, nil
		}
		// Fall through to re-fetch on a corrupt cache file.
	}

	if r.Manifest == nil {
		return nil, errors.Wrapf(manifest.ErrVersionNotFound, "%q (no manifest loaded)", id)
	}
	desc, err := r.Manifest.GetVersion(id)
	if err != nil {
		return nil, errors.Wrapf(manifest.ErrVersionNotFound, "%q", id)
	}

	status, body, err := r.HTTP.JSONRequest(http.MethodGet, desc.URL, nil, nil, false)
	if err != nil {
		return nil, errors.Wrapf(err, "metadata: fetch %q", id)
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("metadata: unexpected status %d fetching %q", status, id)
	}
	doc := Doc(body)

	if err := writeJSONPretty(path, doc); err != nil {
		return nil, errors.Wrapf(err, "metadata: cache %q", id)
	}
	return doc, nil
}

// InstallMeta resolves id into its fully merged document and writes the
// result back to the requested id's cache file.
func (r *Resolver) InstallMeta(id string) (Doc, error) {
	doc, err := r.resolve(id, 0)
	if err != nil {
		return nil, err
	}
	doc["id"] = id
	if err := writeJSONPretty(r.docPath(id), doc); err != nil {
		return nil, errors.Wrap(err, "metadata: write resolved document")
	}
	return doc, nil
}

func (r *Resolver) resolve(id string, depth int) (Doc, error) {
	if depth > MaxInheritanceDepth {
		return nil, errors.Wrapf(ErrInheritanceCycle, "%q", id)
	}

	doc, err := r.loadOrFetch(id)
	if err != nil {
		return nil, err
	}

	parentID, ok := doc["inheritsFrom"].(string)
	if !ok || parentID == "" {
		return doc, nil
	}

	parent, err := r.resolve(parentID, depth+1)
	if err != nil {
		return nil, errors.Wrapf(err, "metadata: resolve parent %q of %q", parentID, id)
	}

	delete(doc, "inheritsFrom")
	Merge(doc, parent)
	return doc, nil
}

// Merge deep-merges other into dst in place: for keys absent from dst, copy;
// for keys present in both as maps, recurse; for keys present in both as
// lists, other (parent) is prepended and dst (child) keeps its own tail; for
// any other collision, dst (the child) wins.
func Merge(dst, other map[string]any) {
	for k, ov := range other {
		dv, present := dst[k]
		if !present {
			dst[k] = ov
			continue
		}
		dm, dok := dv.(map[string]any)
		om, ook := ov.(map[string]any)
		if dok && ook {
			Merge(dm, om)
			continue
		}
		dl, dlok := dv.([]any)
		ol, olok := ov.([]any)
		if dlok && olok {
			merged := make([]any, 0, len(ol)+len(dl))
			merged = append(merged, ol...)
			merged = append(merged, dl...)
			dst[k] = merged
			continue
		}
		// scalar collision: child (dst) wins, leave dst[k] untouched.
	}
}

func writeJSONPretty(path string, doc Doc) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
