package launcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/kestrel-project/launchcore/src/auth"
	"github.com/kestrel-project/launchcore/src/context"
	"github.com/kestrel-project/launchcore/src/events"
	"github.com/kestrel-project/launchcore/src/metadata"
)

var ErrVersionJarMissing = errors.New("launcher: version jar not found")

// Options configures one launch command assembly.
type Options struct {
	JavaPath string
	MaxRAM   string
	MinRAM   string
	ExtraJVM []string
	ExtraGame []string
}

func (o Options) withDefaults() Options {
	if o.JavaPath == "" {
		o.JavaPath = "java"
	}
	if o.MaxRAM == "" {
		o.MaxRAM = "2G"
	}
	if o.MinRAM == "" {
		o.MinRAM = "512M"
	}
	return o
}

// PrepareCommand extracts natives, builds the classpath, and assembles the
// full java argv for resolved, authenticated as session. It prefers the
// modern arguments.game/arguments.jvm arrays when present and falls back to
// the legacy minecraftArguments template otherwise.
func PrepareCommand(ctx context.Context, resolved metadata.Resolved, session auth.Session, opts Options, watcher events.Watcher) (string, []string, error) {
	opts = opts.withDefaults()

	versionJar := resolved.JarPath(ctx.VersionsDir)
	if _, err := os.Stat(versionJar); os.IsNotExist(err) {
		return "", nil, errors.Wrapf(ErrVersionJarMissing, "%s", versionJar)
	}

	nativesDir := filepath.Join(ctx.VersionsDir, resolved.ID, "natives")
	if err := ExtractNatives(resolved, ctx.LibrariesDir, nativesDir, watcher); err != nil {
		return "", nil, errors.Wrap(err, "launcher: extract natives")
	}

	classpath := BuildClasspath(ctx.LibrariesDir, ctx.VersionsDir, resolved, watcher)
	absNativesDir, err := filepath.Abs(nativesDir)
	if err != nil {
		return "", nil, err
	}

	fields := session.Fields()
	assetIndex := resolved.AssetIndexID
	if resolved.Assets != "" {
		assetIndex = resolved.Assets
	}

	substitutions := map[string]string{
		"auth_player_name":  fields["username"],
		"auth_uuid":         fields["uuid"],
		"auth_access_token": fields["access_token"],
		"auth_xuid":         fields["uuid"],
		"user_type":         userType(session),
		"user_properties":   "{}",
		"version_name":      resolved.ID,
		"version_type":      "release",
		"game_directory":    ctx.WorkDir,
		"assets_root":       ctx.AssetsDir,
		"game_assets":       ctx.AssetsDir,
		"assets_index_name": assetIndex,
		"natives_directory": absNativesDir,
		"launcher_name":     "launchcore",
		"launcher_version":  "1.0",
		"classpath":         classpath,
	}

	mainClass := resolved.MainClass
	if mainClass == "" {
		mainClass = "net.minecraft.client.main.Main"
	}

	var jvmArgs, gameArgs []string
	if len(resolved.ArgumentsJVM) > 0 || len(resolved.ArgumentsGame) > 0 {
		jvmArgs = expandArguments(resolved.ArgumentsJVM, substitutions)
		gameArgs = expandArguments(resolved.ArgumentsGame, substitutions)
	} else {
		jvmArgs = []string{"-Djava.library.path=" + absNativesDir, "-cp", classpath}
		gameArgs = legacyGameArgs(resolved.MinecraftArguments, substitutions)
	}

	args := []string{"-Xmx" + opts.MaxRAM, "-Xms" + opts.MinRAM}
	args = append(args, opts.ExtraJVM...)
	args = append(args, jvmArgs...)
	args = append(args, mainClass)
	args = append(args, gameArgs...)
	args = append(args, opts.ExtraGame...)

	if watcher != nil {
		watcher.Notify(events.LaunchPrepared{Version: resolved.ID, MainClass: mainClass})
	}
	return opts.JavaPath, args, nil
}

func userType(session auth.Session) string {
	if session.Type() == "microsoft" {
		return "msa"
	}
	return "legacy"
}

// legacyGameArgs substitutes "${key}" placeholders in the pre-1.13
// minecraftArguments template and splits the result on whitespace.
func legacyGameArgs(template string, substitutions map[string]string) []string {
	for key, value := range substitutions {
		template = strings.ReplaceAll(template, "${"+key+"}", value)
	}
	return strings.Fields(template)
}

// expandArguments walks the modern arguments.game/arguments.jvm arrays,
// which mix bare strings with rule-gated conditional entries, substituting
// "${key}" placeholders along the way.
func expandArguments(raw []any, substitutions map[string]string) []string {
	var out []string
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			out = append(out, substituteOne(v, substitutions))
		case map[string]any:
			rules, _ := v["rules"].([]any)
			if !argumentRulesPass(rules) {
				continue
			}
			switch val := v["value"].(type) {
			case string:
				out = append(out, substituteOne(val, substitutions))
			case []any:
				for _, s := range val {
					if str, ok := s.(string); ok {
						out = append(out, substituteOne(str, substitutions))
					}
				}
			}
		}
	}
	return out
}

func substituteOne(s string, substitutions map[string]string) string {
	for key, value := range substitutions {
		s = strings.ReplaceAll(s, "${"+key+"}", value)
	}
	return s
}

// argumentRulesPass evaluates the modern argument schema's inline rule list,
// which shares the allow/disallow/os.name shape with library rules but
// arrives as raw maps instead of metadata.Rule values.
func argumentRulesPass(rules []any) bool {
	if len(rules) == 0 {
		return true
	}
	platform := osName()
	allowed := false
	for _, r := range rules {
		rm, ok := r.(map[string]any)
		if !ok {
			continue
		}
		action, _ := rm["action"].(string)
		ruleOS := ""
		if osObj, ok := rm["os"].(map[string]any); ok {
			ruleOS, _ = osObj["name"].(string)
		}
		matches := ruleOS == "" || ruleOS == platform
		switch action {
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
