// Package modded implements the Forge-style modded-installer state machine:
// installer-archive probing, install-profile parsing across its modern and
// legacy schema variants, and post-processor execution with SHA1 checks.
package modded

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/download"
	"github.com/kestrel-project/launchcore/src/httpclient"
	"github.com/kestrel-project/launchcore/src/metadata"
)

var (
	ErrVersionNotFound        = errors.New("modded: installer archive not found under any known suffix")
	ErrInstallProfileMissing  = errors.New("modded: install_profile.json missing from installer archive")
	ErrMissingMainClass       = errors.New("modded: processor jar manifest has no Main-Class")
	ErrPostProcessorFailed    = errors.New("modded: post-processor exited non-zero")
	ErrPostOutputCorrupt      = errors.New("modded: post-processor output failed sha1 verification")
)

// ForgeRoot identifies one modded install by its base-game prefix and the
// installer build version, e.g. prefix "1.16.5", installerVersion
// "1.16.5-36.2.34".
type ForgeRoot struct {
	Prefix           string
	InstallerVersion string
}

// VirtualID is the synthetic version id this install is stored under.
func (r ForgeRoot) VirtualID() string {
	return r.Prefix + "-" + r.InstallerVersion
}

// PostProcessor is one external command the installer runs after downloads,
// with an output-integrity check keyed by path (or variable reference).
type PostProcessor struct {
	JarName       string
	Classpath     []string
	Args          []string
	ExpectedSHA1  map[string]string
}

// PostInfo is the modded-installer's working state for the finalize phase.
type PostInfo struct {
	TmpDir           string
	Variables        map[string]string
	InstallLibraries map[string]string
	Processors       []PostProcessor
}

// suffixTable is the fixed ordered list of installer-filename suffixes to
// probe for a given base-game prefix, beyond the always-tried empty suffix.
var suffixTable = map[string][]string{
	"1.11":    {"-1.11.x"},
	"1.10.2":  {"-1.10.0"},
	"1.10":    {"-1.10.0"},
	"1.9.4":   {"-1.9.4"},
	"1.9":     {"-1.9.0", "-1.9"},
	"1.8.9":   {"-1.8.9"},
	"1.8.8":   {"-1.8.8"},
	"1.8":     {"-1.8"},
	"1.7.10":  {"-1.7.10", "-1710ls", "-new"},
	"1.7.2":   {"-mc172"},
}

func suffixesFor(prefix string) []string {
	return append([]string{""}, suffixTable[prefix]...)
}

func installerURL(installerVersion, suffix string) string {
	version := installerVersion + suffix
	return fmt.Sprintf(
		"https://maven.minecraftforge.net/net/minecraftforge/forge/%s/forge-%s-installer.jar",
		version, version,
	)
}

// installerURLFunc is indirected so tests can point probing at a fixture
// server instead of the real Forge maven.
var installerURLFunc = installerURL

func zipReaderFromBytes(data []byte) (*zip.Reader, error) {
	return zip.NewReader(bytes.NewReader(data), int64(len(data)))
}

// ProbeInstaller tries the deterministic installer URL for root, walking the
// suffix table for root.Prefix until one responds non-404. Any non-404 HTTP
// error is fatal; exhausting every suffix yields ErrVersionNotFound.
func ProbeInstaller(client *httpclient.Client, root ForgeRoot) ([]byte, error) {
	for _, suffix := range suffixesFor(root.Prefix) {
		url := installerURLFunc(root.InstallerVersion, suffix)
		status, body, err := client.BinaryRequest(url)
		if err != nil {
			return nil, errors.Wrapf(err, "modded: probe %q", url)
		}
		if status == http.StatusNotFound {
			continue
		}
		if status >= 400 {
			body.Close()
			return nil, errors.Errorf("modded: probe %q returned status %d", url, status)
		}
		data, err := io.ReadAll(body)
		body.Close()
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return nil, errors.Wrapf(ErrVersionNotFound, "%s", root.InstallerVersion)
}

// OpenInstallProfile opens the installer archive in-memory and locates its
// install_profile.json.
func OpenInstallProfile(archiveData []byte) (map[string]any, *zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(archiveData), int64(len(archiveData)))
	if err != nil {
		return nil, nil, errors.Wrap(err, "modded: open installer archive")
	}
	f, err := r.Open("install_profile.json")
	if err != nil {
		return nil, nil, ErrInstallProfileMissing
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	var profile map[string]any
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, nil, errors.Wrap(err, "modded: parse install_profile.json")
	}
	return profile, r, nil
}

// Resolve runs the full installer pipeline for root: probe, open, parse, and
// persist the resulting version metadata under its virtual id. It returns
// the resolved version document, the post-processor working state, and the
// library download entries the caller must run through the download
// executor before calling Finalize.
func Resolve(client *httpclient.Client, root ForgeRoot, versionsDir, librariesDir, binDir string) (metadata.Doc, *PostInfo, []download.Entry, error) {
	data, err := ProbeInstaller(client, root)
	if err != nil {
		return nil, nil, nil, err
	}
	profile, archive, err := OpenInstallProfile(data)
	if err != nil {
		return nil, nil, nil, err
	}

	tmpDir := filepath.Join(binDir, "modded-install")
	doc, postInfo, entries, err := parseProfile(archive, profile, librariesDir, tmpDir)
	if err != nil {
		return nil, nil, nil, err
	}

	virtualID := root.VirtualID()
	doc["id"] = virtualID
	if err := writeDocPretty(filepath.Join(versionsDir, virtualID, virtualID+".json"), doc); err != nil {
		return nil, nil, nil, err
	}
	return doc, postInfo, entries, nil
}

func writeDocPretty(path string, doc metadata.Doc) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// mavenPathFor translates a Maven coordinate ("group:artifact:version[:classifier][@ext]")
// into its relative repository path.
func mavenPathFor(coord string) string {
	parts := strings.Split(coord, ":")
	if len(parts) < 3 {
		return coord
	}
	group, artifact, versionPart := parts[0], parts[1], parts[2]
	ext := "jar"
	classifier := ""

	version := versionPart
	if idx := strings.Index(versionPart, "@"); idx >= 0 {
		version = versionPart[:idx]
		ext = versionPart[idx+1:]
	}
	if len(parts) >= 4 {
		classifier = parts[3]
		if idx := strings.Index(classifier, "@"); idx >= 0 {
			ext = classifier[idx+1:]
			classifier = classifier[:idx]
		}
	}

	groupPath := strings.ReplaceAll(group, ".", "/")
	filename := artifact + "-" + version
	if classifier != "" {
		filename += "-" + classifier
	}
	filename += "." + ext

	return groupPath + "/" + artifact + "/" + version + "/" + filename
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
