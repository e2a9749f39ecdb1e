// Package context carries the root filesystem paths a launch run operates on.
package context

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"
)

// Context holds the root paths for one launch run. Immutable after New.
type Context struct {
	MainDir      string
	WorkDir      string
	VersionsDir  string
	AssetsDir    string
	LibrariesDir string
	BinDir       string
}

// New builds a Context from a main directory and a work directory. If
// mainDir is empty, the platform default Minecraft directory is used. If
// workDir is empty, it defaults to mainDir.
func New(mainDir, workDir string) (Context, error) {
	if mainDir == "" {
		mainDir = DefaultMainDir()
	}
	mainDir, err := filepath.Abs(mainDir)
	if err != nil {
		return Context{}, err
	}
	if workDir == "" {
		workDir = mainDir
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return Context{}, err
	}
	return Context{
		MainDir:      mainDir,
		WorkDir:      workDir,
		VersionsDir:  filepath.Join(mainDir, "versions"),
		AssetsDir:    filepath.Join(mainDir, "assets"),
		LibrariesDir: filepath.Join(mainDir, "libraries"),
		BinDir:       filepath.Join(os.TempDir(), "launchcore-"+uuid.NewString()),
	}, nil
}

// DefaultMainDir selects the platform-family default Minecraft directory.
func DefaultMainDir() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), ".minecraft")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "minecraft")
	default:
		// linux, bsd variants, aix, cygwin (via runtime.GOOS reporting "linux"/"freebsd"/etc)
		return filepath.Join(home, ".minecraft")
	}
}

// GenBinDir ensures the per-run temporary directory exists and returns it.
func (c Context) GenBinDir() (string, error) {
	if err := os.MkdirAll(c.BinDir, 0o755); err != nil {
		return "", err
	}
	return c.BinDir, nil
}

// RemoveBinDir removes the per-run temporary directory. Safe to call even if
// it was never created.
func (c Context) RemoveBinDir() error {
	return os.RemoveAll(c.BinDir)
}
