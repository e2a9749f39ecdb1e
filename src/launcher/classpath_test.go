package launcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-project/launchcore/src/metadata"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestMavenPathForClassifier(t *testing.T) {
	assert.Equal(t, "org/lwjgl/lwjgl/lwjgl-platform/2.9.4/lwjgl-platform-2.9.4.jar",
		mavenPathFor("org.lwjgl.lwjgl:lwjgl-platform:2.9.4"))
	assert.Equal(t, "org/lwjgl/lwjgl/lwjgl-platform/2.9.4/lwjgl-platform-2.9.4-natives-linux.jar",
		mavenPathForClassifier("org.lwjgl.lwjgl:lwjgl-platform:2.9.4", "natives-linux"))
}

func TestBuildClasspathIncludesOnlyExistingApplicableLibraries(t *testing.T) {
	librariesDir := t.TempDir()
	versionsDir := t.TempDir()

	presentLib := "com.example:present:1.0"
	writeFile(t, filepath.Join(librariesDir, mavenPathFor(presentLib)))

	resolved := metadata.Resolved{
		ID: "1.20",
		Libraries: []metadata.Library{
			{Name: presentLib},
			{Name: "com.example:missing:1.0"},
			{Name: "com.example:wrong-os:1.0", Rules: []metadata.Rule{{Action: "allow", OSName: "does-not-exist"}}},
		},
	}
	writeFile(t, resolved.JarPath(versionsDir))

	cp := BuildClasspath(librariesDir, versionsDir, resolved, nil)
	assert.Contains(t, cp, filepath.Join(librariesDir, mavenPathFor(presentLib)))
	assert.Contains(t, cp, resolved.JarPath(versionsDir))
	assert.NotContains(t, cp, "missing")
	assert.NotContains(t, cp, "wrong-os")
}

func TestShouldIncludeLibraryHonorsDisallowOverAllow(t *testing.T) {
	rules := []metadata.Rule{
		{Action: "allow", OSName: ""},
		{Action: "disallow", OSName: osName()},
	}
	assert.False(t, shouldIncludeLibrary(rules))
}

func TestShouldIncludeLibraryNoRulesAlwaysIncluded(t *testing.T) {
	assert.True(t, shouldIncludeLibrary(nil))
}
