package modded

import (
	"archive/zip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/download"
	"github.com/kestrel-project/launchcore/src/metadata"
)

// parseProfile branches on the install_profile.json schema: modern profiles
// carry a "json" pointer to an inner version document plus processors/data/
// libraries sections; legacy profiles carry the version document directly
// under "versionInfo" and a single embedded install jar.
func parseProfile(archive *zip.Reader, profile map[string]any, librariesDir, tmpDir string) (metadata.Doc, *PostInfo, []download.Entry, error) {
	if jsonPath, ok := profile["json"].(string); ok && jsonPath != "" {
		return parseModern(archive, profile, jsonPath, librariesDir, tmpDir)
	}
	return parseLegacy(archive, profile, librariesDir)
}

func parseModern(archive *zip.Reader, profile map[string]any, jsonPath, librariesDir, tmpDir string) (metadata.Doc, *PostInfo, []download.Entry, error) {
	doc, err := readArchiveJSON(archive, strings.TrimPrefix(jsonPath, "/"))
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "modded: read inner version document")
	}

	processors := parseProcessors(profile["processors"])

	installLibraries, entries, err := parseLibraries(archive, profile["libraries"], librariesDir)
	if err != nil {
		return nil, nil, nil, err
	}

	variables, err := parseData(archive, profile["data"], tmpDir)
	if err != nil {
		return nil, nil, nil, err
	}

	postInfo := &PostInfo{
		TmpDir:           tmpDir,
		Variables:        variables,
		InstallLibraries: installLibraries,
		Processors:       processors,
	}
	return doc, postInfo, entries, nil
}

func parseLegacy(archive *zip.Reader, profile map[string]any, librariesDir string) (metadata.Doc, *PostInfo, []download.Entry, error) {
	versionInfo, _ := profile["versionInfo"].(map[string]any)
	if versionInfo == nil {
		return nil, nil, nil, errors.New("modded: legacy install profile missing versionInfo")
	}
	stripLegacyLibraryKeys(versionInfo)

	install, _ := profile["install"].(map[string]any)
	filePath, _ := install["filePath"].(string)
	libPath, _ := install["path"].(string)
	if filePath != "" && libPath != "" {
		dest := filepath.Join(librariesDir, filepath.FromSlash(mavenPathFor(libPath)))
		if _, statErr := os.Stat(dest); statErr != nil {
			if err := extractArchiveFile(archive, filePath, dest); err != nil {
				return nil, nil, nil, err
			}
		}
	}

	doc := metadata.Doc(versionInfo)
	postInfo := &PostInfo{Variables: map[string]string{}, InstallLibraries: map[string]string{}}
	return doc, postInfo, nil, nil
}

func readArchiveJSON(archive *zip.Reader, path string) (metadata.Doc, error) {
	f, err := archive.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	var doc metadata.Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// stripLegacyLibraryKeys removes the server-only and checksum fields legacy
// profiles embed per library, which the launcher has no use for.
func stripLegacyLibraryKeys(versionInfo map[string]any) {
	libs, _ := versionInfo["libraries"].([]any)
	for _, l := range libs {
		m, ok := l.(map[string]any)
		if !ok {
			continue
		}
		delete(m, "serverreq")
		delete(m, "clientreq")
		delete(m, "checksums")
	}
}

func parseProcessors(raw any) []PostProcessor {
	list, _ := raw.([]any)
	out := make([]PostProcessor, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if sides, ok := m["sides"].([]any); ok && len(sides) > 0 && !containsSide(sides, "client") {
			continue
		}

		jarName, _ := m["jar"].(string)
		var classpath []string
		if cp, ok := m["classpath"].([]any); ok {
			for _, c := range cp {
				if s, ok := c.(string); ok {
					classpath = append(classpath, s)
				}
			}
		}
		var args []string
		if a, ok := m["args"].([]any); ok {
			for _, x := range a {
				if s, ok := x.(string); ok {
					args = append(args, s)
				}
			}
		}
		expected := map[string]string{}
		if outputs, ok := m["outputs"].(map[string]any); ok {
			for k, v := range outputs {
				if s, ok := v.(string); ok {
					expected[k] = s
				}
			}
		}
		out = append(out, PostProcessor{JarName: jarName, Classpath: classpath, Args: args, ExpectedSHA1: expected})
	}
	return out
}

func containsSide(sides []any, want string) bool {
	for _, s := range sides {
		if str, ok := s.(string); ok && str == want {
			return true
		}
	}
	return false
}

// parseLibraries walks the modern profile's library list, enqueueing a
// download entry for any library with a downloadable artifact URL and
// extracting the rest directly from the installer archive's embedded maven
// repository.
func parseLibraries(archive *zip.Reader, raw any, librariesDir string) (map[string]string, []download.Entry, error) {
	libs := map[string]string{}
	var entries []download.Entry

	list, _ := raw.([]any)
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		name, _ := m["name"].(string)
		if name == "" {
			continue
		}
		dest := filepath.Join(librariesDir, filepath.FromSlash(mavenPathFor(name)))
		libs[name] = dest

		downloads, _ := m["downloads"].(map[string]any)
		artifact, _ := downloads["artifact"].(map[string]any)
		url, _ := artifact["url"].(string)
		if url != "" {
			size := int64ish(artifact["size"])
			sha1, _ := artifact["sha1"].(string)
			entries = append(entries, download.Entry{
				URL:          url,
				Destination:  dest,
				ExpectedSize: size,
				HasSize:      size > 0,
				ExpectedSHA1: sha1,
				DisplayName:  name,
			})
			continue
		}

		archivePath := "maven/" + mavenPathFor(name)
		if _, statErr := os.Stat(dest); statErr == nil {
			continue
		}
		if err := extractArchiveFile(archive, archivePath, dest); err != nil {
			return nil, nil, err
		}
	}
	return libs, entries, nil
}

// parseData extracts the modern profile's "data" section into a variable
// map. Values prefixed with "/" reference an archive entry to extract into
// tmpDir; everything else is a literal substitution value.
func parseData(archive *zip.Reader, raw any, tmpDir string) (map[string]string, error) {
	variables := map[string]string{}
	obj, _ := raw.(map[string]any)
	for key, v := range obj {
		m, ok := v.(map[string]any)
		if !ok {
			continue
		}
		clientVal, _ := m["client"].(string)
		if strings.HasPrefix(clientVal, "/") {
			entryPath := strings.TrimPrefix(clientVal, "/")
			dest := filepath.Join(tmpDir, filepath.FromSlash(entryPath))
			if err := extractArchiveFile(archive, entryPath, dest); err != nil {
				return nil, err
			}
			variables[key] = dest
		} else {
			variables[key] = clientVal
		}
	}
	return variables, nil
}

func extractArchiveFile(archive *zip.Reader, entryPath, dest string) error {
	f, err := archive.Open(entryPath)
	if err != nil {
		return errors.Wrapf(err, "modded: extract %q", entryPath)
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, f)
	return err
}
