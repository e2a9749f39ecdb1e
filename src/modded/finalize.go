package modded

import (
	"archive/zip"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/events"
)

// Finalize runs every post-processor in order against the already-downloaded
// libraries, substituting variables into each processor's argument list and
// verifying declared outputs by SHA1. It seeds SIDE and MINECRAFT_JAR before
// running the first processor and removes info.TmpDir once every processor
// has completed successfully.
func Finalize(info *PostInfo, javaPath, librariesDir, baseJarPath string, watcher events.Watcher) error {
	if info.Variables == nil {
		info.Variables = map[string]string{}
	}
	info.Variables["SIDE"] = "client"
	info.Variables["MINECRAFT_JAR"] = baseJarPath

	for _, proc := range info.Processors {
		if err := runProcessor(proc, info.Variables, javaPath, librariesDir, watcher); err != nil {
			return err
		}
	}

	if info.TmpDir != "" {
		os.RemoveAll(info.TmpDir)
	}
	if watcher != nil {
		watcher.Notify(events.PostProcessingCompleted{})
	}
	return nil
}

func runProcessor(proc PostProcessor, variables map[string]string, javaPath, librariesDir string, watcher events.Watcher) error {
	jarPath := filepath.Join(librariesDir, filepath.FromSlash(mavenPathFor(proc.JarName)))
	mainClass, err := readManifestMainClass(jarPath)
	if err != nil {
		return err
	}

	classpath := []string{jarPath}
	for _, cp := range proc.Classpath {
		classpath = append(classpath, filepath.Join(librariesDir, filepath.FromSlash(mavenPathFor(cp))))
	}

	args := make([]string, len(proc.Args))
	for i, a := range proc.Args {
		args[i] = substitute(a, variables, librariesDir)
	}

	task := inferTaskName(proc.JarName, args)
	if watcher != nil {
		watcher.Notify(events.PostProcessingStarted{Task: task})
	}

	argv := append([]string{"-cp", strings.Join(classpath, string(os.PathListSeparator)), mainClass}, args...)
	cmd := exec.Command(javaPath, argv...)
	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return errors.Wrapf(ErrPostProcessorFailed, "%s exited %d: %s", task, exitErr.ExitCode(), trimOutput(output))
		}
		return errors.Wrapf(runErr, "modded: run post-processor %s", task)
	}

	for pathOrVar, expectedRaw := range proc.ExpectedSHA1 {
		path := substitute(pathOrVar, variables, librariesDir)
		expected := substitute(expectedRaw, variables, librariesDir)
		data, err := os.ReadFile(path)
		if err != nil {
			return errors.Wrapf(err, "modded: read post-processor output %q", path)
		}
		got := sha1Hex(data)
		if !strings.EqualFold(got, expected) {
			return errors.Wrapf(ErrPostOutputCorrupt, "%s: got %s want %s", path, got, expected)
		}
	}

	return nil
}

// substitute applies Python-style "{key}".format_map(variables) substitution,
// then resolves a fully-bracketed "[group:artifact:version]" result to its
// library path and strips a fully-quoted "'literal'" result to its contents.
func substitute(raw string, variables map[string]string, librariesDir string) string {
	result := raw
	for k, v := range variables {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	switch {
	case strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]") && len(result) >= 2:
		coord := result[1 : len(result)-1]
		result = filepath.Join(librariesDir, filepath.FromSlash(mavenPathFor(coord)))
	case strings.HasPrefix(result, "'") && strings.HasSuffix(result, "'") && len(result) >= 2:
		result = result[1 : len(result)-1]
	}
	return result
}

// inferTaskName mirrors the --task argument when present, else guesses the
// processor's purpose from its jar name.
func inferTaskName(jarName string, args []string) string {
	for i, a := range args {
		if a == "--task" && i+1 < len(args) {
			return args[i+1]
		}
	}
	lower := strings.ToLower(jarName)
	switch {
	case strings.Contains(lower, "jarsplitter"):
		return "JAR_SPLITTER"
	case strings.Contains(lower, "forgeautorenamingtool"):
		return "AUTO_RENAMING"
	case strings.Contains(lower, "binarypatcher"):
		return "BINARY_PATCHER"
	default:
		return "UNKNOWN"
	}
}

func readManifestMainClass(jarPath string) (string, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return "", errors.Wrapf(err, "modded: open processor jar %q", jarPath)
	}
	defer r.Close()

	f, err := r.Open("META-INF/MANIFEST.MF")
	if err != nil {
		return "", errors.Wrapf(ErrMissingMainClass, "%s", jarPath)
	}
	defer f.Close()

	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		n, readErr := f.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if readErr != nil {
			break
		}
	}

	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "Main-Class:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Main-Class:")), nil
		}
	}
	return "", errors.Wrapf(ErrMissingMainClass, "%s", jarPath)
}

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func trimOutput(b []byte) string {
	const max = 2048
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "...(truncated)"
}
