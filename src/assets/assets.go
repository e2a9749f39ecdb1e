// Package assets translates a resolved version's asset index into download
// entries and a finalize step that mirrors objects into legacy resource
// layouts.
package assets

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/download"
	"github.com/kestrel-project/launchcore/src/httpclient"
	"github.com/kestrel-project/launchcore/src/metadata"
)

const objectBaseURL = "https://resources.download.minecraft.net"

// Object is one entry in an asset index: a content-addressed file identified
// by its SHA1 hash.
type Object struct {
	Hash string
	Size int64
}

// Index is a parsed assets/indexes/<name>.json document.
type Index struct {
	ID             string
	Objects        map[string]Object
	MapToResources bool
	Virtual        bool
}

func objectPath(assetsDir, hash string) string {
	return filepath.Join(assetsDir, "objects", hash[:2], hash)
}

func objectURL(hash string) string {
	return objectBaseURL + "/" + hash[:2] + "/" + hash
}

func indexPath(assetsDir, id string) string {
	return filepath.Join(assetsDir, "indexes", id+".json")
}

// loadOrFetch reads the cached index file if present, otherwise fetches it
// from resolved.AssetIndex.URL and caches it.
func loadOrFetch(client *httpclient.Client, assetsDir string, resolved metadata.Resolved) (Index, error) {
	path := indexPath(assetsDir, resolved.AssetIndexID)

	var raw map[string]any
	if cached, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(cached, &raw); err == nil {
			return parseIndex(resolved.AssetIndexID, raw), nil
		}
	}

	status, body, err := client.JSONRequest(http.MethodGet, resolved.AssetIndex.URL, nil, nil, false)
	if err != nil {
		return Index{}, errors.Wrap(err, "assets: fetch index")
	}
	if status != http.StatusOK {
		return Index{}, errors.Errorf("assets: unexpected status %d fetching index %q", status, resolved.AssetIndexID)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Index{}, err
	}
	pretty, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return Index{}, err
	}
	if err := os.WriteFile(path, pretty, 0o644); err != nil {
		return Index{}, errors.Wrap(err, "assets: cache index")
	}

	return parseIndex(resolved.AssetIndexID, body), nil
}

func parseIndex(id string, raw map[string]any) Index {
	idx := Index{ID: id, Objects: map[string]Object{}}
	if mapToResources, ok := raw["map_to_resources"].(bool); ok {
		idx.MapToResources = mapToResources
	}
	if virtual, ok := raw["virtual"].(bool); ok {
		idx.Virtual = virtual
	}
	objects, _ := raw["objects"].(map[string]any)
	for name, v := range objects {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		hash, _ := m["hash"].(string)
		var size int64
		switch s := m["size"].(type) {
		case float64:
			size = int64(s)
		case int64:
			size = s
		case int:
			size = int64(s)
		}
		idx.Objects[name] = Object{Hash: hash, Size: size}
	}
	return idx
}

// Plan loads the asset index referenced by resolved, enqueues a download
// entry for every missing or wrong-sized object into list, and registers a
// finalize callback copying mapped/virtual objects once downloads complete.
// Plan is idempotent: re-running it against a fully populated cache enqueues
// nothing.
func Plan(client *httpclient.Client, assetsDir, workDir string, resolved metadata.Resolved, list *download.List) (Index, error) {
	idx, err := loadOrFetch(client, assetsDir, resolved)
	if err != nil {
		return Index{}, err
	}

	for name, obj := range idx.Objects {
		dest := objectPath(assetsDir, obj.Hash)
		if info, err := os.Stat(dest); err == nil && info.Size() == obj.Size {
			continue
		}
		if err := list.Add(download.Entry{
			URL:          objectURL(obj.Hash),
			Destination:  dest,
			ExpectedSize: obj.Size,
			HasSize:      true,
			ExpectedSHA1: obj.Hash,
			DisplayName:  name,
		}); err != nil {
			return Index{}, errors.Wrapf(err, "assets: enqueue %q", name)
		}
	}

	list.AddFinalizeCallback(func() error {
		return copyResources(idx, assetsDir, workDir)
	})

	return idx, nil
}

// copyResources mirrors each asset object into the legacy resources/virtual
// layouts the index requests. Sequential by design: it runs once, after
// every download for the list has already verified, and must never race
// concurrent writers on the destination tree.
func copyResources(idx Index, assetsDir, workDir string) error {
	if !idx.MapToResources && !idx.Virtual {
		return nil
	}
	for name, obj := range idx.Objects {
		src := objectPath(assetsDir, obj.Hash)
		if idx.MapToResources {
			if err := copyIfAbsent(src, filepath.Join(workDir, "resources", name)); err != nil {
				return errors.Wrapf(err, "assets: map %q to resources", name)
			}
		}
		if idx.Virtual {
			if err := copyIfAbsent(src, filepath.Join(assetsDir, "virtual", idx.ID, name)); err != nil {
				return errors.Wrapf(err, "assets: mirror %q to virtual", name)
			}
		}
	}
	return nil
}

func copyIfAbsent(src, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dest), ".copy-*")
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(out.Name())
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return err
	}
	return os.Rename(out.Name(), dest)
}
