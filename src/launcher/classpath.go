package launcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrel-project/launchcore/src/events"
	"github.com/kestrel-project/launchcore/src/metadata"
)

// mavenPathFor translates a Maven coordinate ("group:artifact:version") into
// its relative repository path, the same convention the download planner
// uses to place libraries under the libraries directory.
func mavenPathFor(coord string) string {
	return mavenPathForClassifier(coord, "")
}

func mavenPathForClassifier(coord, classifier string) string {
	parts := strings.Split(coord, ":")
	if len(parts) < 3 {
		return coord
	}
	group, artifact, version := parts[0], parts[1], parts[2]
	groupPath := strings.ReplaceAll(group, ".", "/")
	filename := artifact + "-" + version
	if classifier != "" {
		filename += "-" + classifier
	}
	filename += ".jar"
	return groupPath + "/" + artifact + "/" + version + "/" + filename
}

// BuildClasspath assembles the Java classpath for resolved: every
// OS-applicable library with an existing artifact on disk, followed by the
// version's own main jar.
func BuildClasspath(librariesDir, versionsDir string, resolved metadata.Resolved, watcher events.Watcher) string {
	var parts []string

	for _, lib := range resolved.Libraries {
		if !shouldIncludeLibrary(lib.Rules) {
			continue
		}
		// Libraries with a natives classifier and no main artifact contribute
		// only to native extraction, not the classpath.
		if _, hasNatives := nativeClassifierFor(lib); hasNatives && lib.Artifact.URL == "" {
			continue
		}

		path := filepath.Join(librariesDir, filepath.FromSlash(mavenPathFor(lib.Name)))
		if _, err := os.Stat(path); err == nil {
			parts = append(parts, path)
		}
	}

	versionJar := resolved.JarPath(versionsDir)
	if _, err := os.Stat(versionJar); err == nil {
		parts = append(parts, versionJar)
	}

	if watcher != nil {
		watcher.Notify(events.ClasspathBuilt{Count: len(parts)})
	}
	return strings.Join(parts, string(os.PathListSeparator))
}
