package launcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"unsafe"

	"github.com/kestrel-project/launchcore/src/events"
	"github.com/kestrel-project/launchcore/src/metadata"
)

// osName returns the Minecraft-specific operating system name for the
// running platform.
func osName() string {
	switch runtime.GOOS {
	case "windows":
		return "windows"
	case "darwin":
		return "osx"
	case "linux":
		return "linux"
	default:
		return runtime.GOOS
	}
}

func archBits() string {
	return strconv.Itoa(int(unsafe.Sizeof(uintptr(0))) * 8)
}

// shouldIncludeLibrary evaluates a library's OS-gated allow/disallow rules.
// An empty rule set always includes the library; a matching disallow rule is
// absolute.
func shouldIncludeLibrary(rules []metadata.Rule) bool {
	if len(rules) == 0 {
		return true
	}
	platform := osName()
	allowed := false
	for _, rule := range rules {
		matches := rule.OSName == "" || rule.OSName == platform
		switch rule.Action {
		case "allow":
			if matches {
				allowed = true
			}
		case "disallow":
			if matches {
				return false
			}
		}
	}
	return allowed
}

// nativeClassifierFor resolves the natives classifier key for lib on the
// running platform, substituting the legacy "${arch}" placeholder some
// vanilla metadata still carries.
func nativeClassifierFor(lib metadata.Library) (string, bool) {
	key, ok := lib.Natives[osName()]
	if !ok {
		return "", false
	}
	return strings.ReplaceAll(key, "${arch}", archBits()), true
}

func isNativeFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".dll") || strings.HasSuffix(lower, ".so") ||
		strings.HasSuffix(lower, ".dylib") || strings.HasSuffix(lower, ".jnilib")
}

// extractJar copies every native-library file out of a jar into a flat
// destination directory, skipping META-INF and files already extracted.
func extractJar(jarPath, destDir string, watcher events.Watcher) error {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "META-INF/") {
			continue
		}
		if !isNativeFile(f.Name) {
			continue
		}

		destPath := filepath.Join(destDir, filepath.Base(f.Name))
		if _, err := os.Stat(destPath); err == nil {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			continue
		}
		out, err := os.Create(destPath)
		if err != nil {
			rc.Close()
			continue
		}
		_, copyErr := io.Copy(out, rc)
		out.Close()
		rc.Close()

		if copyErr == nil && watcher != nil {
			watcher.Notify(events.NativeExtracted{File: filepath.Base(f.Name)})
		}
	}
	return nil
}

// ExtractNatives extracts the current platform's native-library jars for
// resolved's library set into nativesDir, using the classifier/rule metadata
// already resolved onto each library rather than re-deriving it from jar
// filenames. A populated nativesDir is treated as already-done and skipped.
func ExtractNatives(resolved metadata.Resolved, librariesDir, nativesDir string, watcher events.Watcher) error {
	if err := os.MkdirAll(nativesDir, 0o755); err != nil {
		return err
	}

	entries, err := os.ReadDir(nativesDir)
	if err == nil {
		for _, entry := range entries {
			if isNativeFile(entry.Name()) {
				return nil
			}
		}
	}

	count := 0
	for _, lib := range resolved.Libraries {
		if !shouldIncludeLibrary(lib.Rules) {
			continue
		}
		classifier, ok := nativeClassifierFor(lib)
		if !ok {
			continue
		}
		if _, ok := lib.Classifiers[classifier]; !ok {
			continue
		}

		jarPath := filepath.Join(librariesDir, filepath.FromSlash(mavenPathForClassifier(lib.Name, classifier)))
		if _, err := os.Stat(jarPath); err != nil {
			continue
		}
		if err := extractJar(jarPath, nativesDir, watcher); err == nil {
			count++
		}
	}

	entries, err = os.ReadDir(nativesDir)
	if err != nil {
		return err
	}
	nativeCount := 0
	for _, entry := range entries {
		if isNativeFile(entry.Name()) {
			nativeCount++
		}
	}

	if watcher != nil {
		watcher.Notify(events.NativesExtracted{Dir: nativesDir, Count: nativeCount})
	}
	return nil
}
