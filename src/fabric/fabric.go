// Package fabric installs the Fabric mod loader: a lightweight alternative
// to the Forge-style processor pipeline in modded, where the loader's
// version profile already declares its own libraries and inherits the
// vanilla version wholesale rather than running post-processors.
package fabric

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/context"
	"github.com/kestrel-project/launchcore/src/download"
	"github.com/kestrel-project/launchcore/src/httpclient"
	"github.com/kestrel-project/launchcore/src/metadata"
)

const loaderProfileURLTemplate = "https://meta.fabricmc.net/v2/versions/loader/%s/%s/profile/json"

var ErrLoaderMetadataFetch = errors.New("fabric: loader metadata fetch failed")

// FetchLoaderProfile downloads the Fabric loader version profile for the
// given Minecraft and loader versions.
func FetchLoaderProfile(client *httpclient.Client, mcVersion, loaderVersion string) (metadata.Doc, error) {
	url := loaderProfileURLFunc(mcVersion, loaderVersion)
	status, body, err := client.JSONRequest(http.MethodGet, url, nil, nil, false)
	if err != nil {
		return nil, errors.Wrap(err, "fabric: fetch loader profile")
	}
	if status != http.StatusOK {
		return nil, errors.Wrapf(ErrLoaderMetadataFetch, "status %d", status)
	}
	return metadata.Doc(body), nil
}

func loaderProfileURL(mcVersion, loaderVersion string) string {
	return fmt.Sprintf(loaderProfileURLTemplate, mcVersion, loaderVersion)
}

// loaderProfileURLFunc is indirected so tests can point it at a fixture
// server instead of the real Fabric meta server.
var loaderProfileURLFunc = loaderProfileURL

// Install fetches the Fabric loader profile for mcVersion/loaderVersion,
// enqueues every library whose downloads.artifact declares both a url and a
// path (the path is used as-is, so no Maven-coordinate derivation is done;
// libraries lacking either are skipped), and persists the profile as the new
// version's metadata document.
// It does not install the vanilla base version; the caller resolves and
// downloads mcVersion separately before launching the Fabric version, since
// the profile's own "inheritsFrom" is what ties the two together.
func Install(client *httpclient.Client, ctx context.Context, mcVersion, loaderVersion string, list *download.List) (metadata.Doc, error) {
	doc, err := FetchLoaderProfile(client, mcVersion, loaderVersion)
	if err != nil {
		return nil, err
	}
	if str(doc["inheritsFrom"]) == "" {
		doc["inheritsFrom"] = mcVersion
	}

	enqueueLibraries(doc, ctx.LibrariesDir, list)

	id := str(doc["id"])
	if id == "" {
		return nil, errors.New("fabric: loader profile missing id")
	}
	if err := writeVersionDoc(ctx.VersionsDir, id, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func enqueueLibraries(doc metadata.Doc, librariesDir string, list *download.List) {
	libs, _ := doc["libraries"].([]any)
	for _, raw := range libs {
		lib, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := str(lib["name"])
		downloads, _ := lib["downloads"].(map[string]any)
		artifact, _ := downloads["artifact"].(map[string]any)
		url := str(artifact["url"])
		path := str(artifact["path"])
		if url == "" || path == "" {
			continue
		}

		size := int64ish(artifact["size"])
		list.Add(download.Entry{
			URL:          url,
			Destination:  filepath.Join(librariesDir, filepath.FromSlash(path)),
			ExpectedSize: size,
			HasSize:      size > 0,
			ExpectedSHA1: str(artifact["sha1"]),
			DisplayName:  name,
		})
	}
}

func writeVersionDoc(versionsDir, id string, doc metadata.Doc) error {
	dir := filepath.Join(versionsDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, id+".json"), raw, 0o644)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func int64ish(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
