// Package logcfg translates a resolved version's logging configuration into
// a download entry and a launch-argument fragment.
package logcfg

import (
	"path/filepath"
	"strings"

	"github.com/kestrel-project/launchcore/src/download"
	"github.com/kestrel-project/launchcore/src/metadata"
)

// Plan is the result of planning the logger config: the launch-argument
// fragment to splice into the JVM argument list, with "${path}" already
// substituted by the local config path. Argument is empty when the resolved
// metadata carries no logging.client section.
type Plan struct {
	Argument string
	Path     string
}

// Build enqueues a download for the logging config referenced by resolved
// (a no-op if resolved declares none) and returns the launch-argument
// fragment ready for splicing into the JVM argument list.
func Build(assetsDir string, resolved metadata.Resolved, list *download.List) (Plan, error) {
	if resolved.LoggingFile.URL == "" {
		return Plan{}, nil
	}

	dest := filepath.Join(assetsDir, "log_configs", resolved.LoggingFileID)
	if err := list.Add(download.Entry{
		URL:          resolved.LoggingFile.URL,
		Destination:  dest,
		ExpectedSize: resolved.LoggingFile.Size,
		HasSize:      resolved.LoggingFile.Size > 0,
		ExpectedSHA1: resolved.LoggingFile.SHA1,
		DisplayName:  resolved.LoggingFileID,
	}); err != nil {
		return Plan{}, err
	}

	return Plan{
		Argument: strings.ReplaceAll(resolved.LoggingArgument, "${path}", dest),
		Path:     dest,
	}, nil
}
