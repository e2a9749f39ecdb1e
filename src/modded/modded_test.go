package modded

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-project/launchcore/src/httpclient"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestInstallerURLAppliesSuffixToDirectoryAndFilename(t *testing.T) {
	assert.Equal(t,
		"https://maven.minecraftforge.net/net/minecraftforge/forge/1.9-12.17.0/forge-1.9-12.17.0-installer.jar",
		installerURL("1.9-12.17.0", ""),
	)
	assert.Equal(t,
		"https://maven.minecraftforge.net/net/minecraftforge/forge/1.9-12.17.0-1.9.0/forge-1.9-12.17.0-1.9.0-installer.jar",
		installerURL("1.9-12.17.0", "-1.9.0"),
	)
}

func TestProbeInstallerFindsSuffixAfterNotFound(t *testing.T) {
	var hits []string
	mux := http.NewServeMux()
	mux.HandleFunc("/net/minecraftforge/forge/1.9-12.17.0/forge-1.9-12.17.0-installer.jar", func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/net/minecraftforge/forge/1.9-12.17.0-1.9.0/forge-1.9-12.17.0-1.9.0-installer.jar", func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, r.URL.Path)
		w.Write([]byte("jar-bytes"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	orig := installerURLFunc
	installerURLFunc = func(installerVersion, suffix string) string {
		return server.URL + strings.TrimPrefix(installerURL(installerVersion, suffix), "https://maven.minecraftforge.net")
	}
	defer func() { installerURLFunc = orig }()

	data, err := ProbeInstaller(httpclient.New(0), ForgeRoot{Prefix: "1.9", InstallerVersion: "1.9-12.17.0"})
	require.NoError(t, err)
	assert.Equal(t, []byte("jar-bytes"), data)
	assert.Len(t, hits, 2)
}

func TestProbeInstallerExhaustsSuffixesReturnsVersionNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	orig := installerURLFunc
	installerURLFunc = func(installerVersion, suffix string) string { return server.URL + "/x" }
	defer func() { installerURLFunc = orig }()

	_, err := ProbeInstaller(httpclient.New(0), ForgeRoot{Prefix: "1.7.2", InstallerVersion: "1.7.2-10.13.4"})
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestOpenInstallProfileMissingReturnsSentinel(t *testing.T) {
	data := buildZip(t, map[string]string{"other.json": "{}"})
	_, _, err := OpenInstallProfile(data)
	assert.ErrorIs(t, err, ErrInstallProfileMissing)
}

func TestParseModernProfileBranchesCorrectly(t *testing.T) {
	profile := map[string]any{
		"json": "/version.json",
		"processors": []any{
			map[string]any{
				"jar":       "net.minecraftforge:installertools:1.0:fatjar",
				"classpath": []any{},
				"args":      []any{"--task", "MCP_DATA"},
				"outputs":   map[string]any{},
			},
		},
		"data": map[string]any{
			"MAPPINGS": map[string]any{"client": "/data/client.tsrg"},
			"SIDE":     map[string]any{"client": "client"},
		},
		"libraries": []any{
			map[string]any{
				"name":      "net.minecraftforge:forge:1.16.5-36.2.34",
				"downloads": map[string]any{"artifact": map[string]any{"url": "https://example.test/forge.jar", "size": float64(10), "sha1": "abc"}},
			},
			map[string]any{
				"name": "net.minecraftforge:embedded:1.0",
			},
		},
	}
	archiveData := buildZip(t, map[string]string{
		"version.json":      `{"id":"inner","mainClass":"net.minecraft.Main"}`,
		"data/client.tsrg":  "mapping-data",
		"maven/net/minecraftforge/embedded/1.0/embedded-1.0.jar": "embedded-jar-bytes",
	})
	archive, err := zipReaderFromBytes(archiveData)
	require.NoError(t, err)

	librariesDir := t.TempDir()
	tmpDir := t.TempDir()
	doc, postInfo, entries, err := parseModern(archive, profile, "/version.json", librariesDir, tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "inner", doc["id"])
	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.test/forge.jar", entries[0].URL)

	embeddedDest := postInfo.InstallLibraries["net.minecraftforge:embedded:1.0"]
	data, err := os.ReadFile(embeddedDest)
	require.NoError(t, err)
	assert.Equal(t, "embedded-jar-bytes", string(data))

	assert.Equal(t, "client", postInfo.Variables["SIDE"])
	mappingsPath := postInfo.Variables["MAPPINGS"]
	mappingData, err := os.ReadFile(mappingsPath)
	require.NoError(t, err)
	assert.Equal(t, "mapping-data", string(mappingData))

	require.Len(t, postInfo.Processors, 1)
	assert.Equal(t, []string{"--task", "MCP_DATA"}, postInfo.Processors[0].Args)
}

func TestParseLegacyProfileStripsServerKeysAndExtractsInstallJar(t *testing.T) {
	versionInfo := map[string]any{
		"id": "1.7.10-Forge10.13.4.1614",
		"libraries": []any{
			map[string]any{"name": "net.minecraftforge:forge:1.7.10", "serverreq": true, "checksums": []any{"x"}},
		},
	}
	profile := map[string]any{
		"versionInfo": versionInfo,
		"install": map[string]any{
			"filePath": "forge-universal.jar",
			"path":     "net.minecraftforge:forge:1.7.10:universal",
		},
	}
	archiveData := buildZip(t, map[string]string{"forge-universal.jar": "universal-bytes"})
	archive, err := zipReaderFromBytes(archiveData)
	require.NoError(t, err)

	librariesDir := t.TempDir()
	doc, _, entries, err := parseLegacy(archive, profile, librariesDir)
	require.NoError(t, err)
	assert.Nil(t, entries)
	assert.Equal(t, "1.7.10-Forge10.13.4.1614", doc["id"])

	libs, _ := versionInfo["libraries"].([]any)
	libEntry := libs[0].(map[string]any)
	_, hasServerreq := libEntry["serverreq"]
	assert.False(t, hasServerreq)

	dest := filepath.Join(librariesDir, mavenPathFor("net.minecraftforge:forge:1.7.10:universal"))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "universal-bytes", string(data))
}

func TestMavenPathForTranslatesCoordinates(t *testing.T) {
	assert.Equal(t, "net/minecraftforge/forge/1.16.5/forge-1.16.5.jar", mavenPathFor("net.minecraftforge:forge:1.16.5"))
	assert.Equal(t, "net/minecraftforge/forge/1.16.5/forge-1.16.5-universal.jar", mavenPathFor("net.minecraftforge:forge:1.16.5:universal"))
	assert.Equal(t, "net/minecraftforge/forge/1.16.5/forge-1.16.5.zip", mavenPathFor("net.minecraftforge:forge:1.16.5@zip"))
}

func TestSubstituteHandlesMavenBracketAndQuoteForms(t *testing.T) {
	librariesDir := "/libs"
	variables := map[string]string{"SIDE": "client"}

	assert.Equal(t, "client", substitute("{SIDE}", variables, librariesDir))
	assert.Equal(t, filepath.Join(librariesDir, mavenPathFor("net.minecraftforge:forge:1.0")), substitute("[net.minecraftforge:forge:1.0]", variables, librariesDir))
	assert.Equal(t, "literal", substitute("'literal'", variables, librariesDir))
}

func TestInferTaskNameFromArgsAndJarName(t *testing.T) {
	assert.Equal(t, "MCP_DATA", inferTaskName("installertools.jar", []string{"--task", "MCP_DATA"}))
	assert.Equal(t, "JAR_SPLITTER", inferTaskName("JarSplitter-1.0.jar", nil))
	assert.Equal(t, "AUTO_RENAMING", inferTaskName("ForgeAutoRenamingTool-1.0.jar", nil))
	assert.Equal(t, "BINARY_PATCHER", inferTaskName("binarypatcher-1.0.jar", nil))
	assert.Equal(t, "UNKNOWN", inferTaskName("mystery.jar", nil))
}

func TestScanVersionsExtractsInOrder(t *testing.T) {
	xml := `<metadata><versioning><versions><version>1.0</version><version>1.1</version></versions></versioning></metadata>`
	assert.Equal(t, []string{"1.0", "1.1"}, scanVersions(xml))
}

