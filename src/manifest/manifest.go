// Package manifest loads the remote version manifest and resolves version
// aliases like "release" and "snapshot" to concrete version ids.
package manifest

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/httpclient"
)

const defaultManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

// Descriptor is one version entry in the manifest.
type Descriptor struct {
	ID          string
	Type        string
	URL         string
	Time        string
	ReleaseTime string
}

// Manifest is the immutable, ordered remote index of known versions plus the
// alias map.
type Manifest struct {
	Versions []Descriptor
	Latest   map[string]string // alias -> concrete id, e.g. "release"/"snapshot"
}

// ErrVersionNotFound is returned by GetVersion when neither an alias nor a
// literal id match.
var ErrVersionNotFound = errors.New("manifest: version not found")

// LoadFromRemote fetches the manifest document from url (defaultManifestURL
// if empty).
func LoadFromRemote(client *httpclient.Client, url string) (*Manifest, error) {
	if url == "" {
		url = defaultManifestURL
	}
	status, body, err := client.JSONRequest(http.MethodGet, url, nil, nil, false)
	if err != nil {
		return nil, errors.Wrap(err, "manifest: fetch")
	}
	if status != http.StatusOK {
		return nil, errors.Errorf("manifest: unexpected status %d", status)
	}
	return parse(body)
}

func parse(body map[string]any) (*Manifest, error) {
	m := &Manifest{Latest: map[string]string{}}

	if latest, ok := body["latest"].(map[string]any); ok {
		for k, v := range latest {
			if s, ok := v.(string); ok {
				m.Latest[k] = s
			}
		}
	}

	rawVersions, _ := body["versions"].([]any)
	for _, rv := range rawVersions {
		obj, ok := rv.(map[string]any)
		if !ok {
			continue
		}
		m.Versions = append(m.Versions, Descriptor{
			ID:          str(obj["id"]),
			Type:        str(obj["type"]),
			URL:         str(obj["url"]),
			Time:        str(obj["time"]),
			ReleaseTime: str(obj["releaseTime"]),
		})
	}
	return m, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// resolveAlias translates "release"/"snapshot"-style aliases through Latest.
// The second return value reports whether idOrAlias was indeed an alias.
func (m *Manifest) resolveAlias(idOrAlias string) (string, bool) {
	if resolved, ok := m.Latest[idOrAlias]; ok {
		return resolved, true
	}
	return idOrAlias, false
}

// GetVersion resolves idOrAlias (translating "release"/"snapshot" aliases
// through Latest) and linearly scans Versions for an exact id match.
func (m *Manifest) GetVersion(idOrAlias string) (*Descriptor, error) {
	id, _ := m.resolveAlias(idOrAlias)
	for i := range m.Versions {
		if m.Versions[i].ID == id {
			return &m.Versions[i], nil
		}
	}
	return nil, errors.Wrapf(ErrVersionNotFound, "%q", idOrAlias)
}

// Search returns a lazy, finite, non-restartable iterator over version
// descriptors matching substr: either the exact alias hit, or every version
// whose id contains substr. Consume it before calling Search again; the
// channel is closed once exhausted and cannot be rewound.
func (m *Manifest) Search(substr string) <-chan Descriptor {
	out := make(chan Descriptor)
	go func() {
		defer close(out)
		id, isAlias := m.resolveAlias(substr)
		for _, v := range m.Versions {
			if isAlias {
				if v.ID == id {
					out <- v
					return
				}
				continue
			}
			if strings.Contains(v.ID, substr) {
				out <- v
			}
		}
	}()
	return out
}
