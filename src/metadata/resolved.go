package metadata

import "path/filepath"

func str(v any) string {
	s, _ := v.(string)
	return s
}

// ArtifactRef describes a downloadable artifact: url, size, sha1.
type ArtifactRef struct {
	URL  string
	Size int64
	SHA1 string
}

// Rule is one OS-gated allow/disallow rule on a library.
type Rule struct {
	Action string // "allow" | "disallow"
	OSName string // empty matches any OS
}

// Library is one resolved library entry.
type Library struct {
	Name        string
	Artifact    ArtifactRef // zero value if absent
	Classifiers map[string]ArtifactRef
	Natives     map[string]string
	Rules       []Rule
}

// Resolved is a read-only typed projection of a fully resolved Doc, for
// callers that want static access instead of walking the generic map.
type Resolved struct {
	ID                 string
	MainClass          string
	Assets             string
	AssetIndex         ArtifactRef
	AssetIndexID       string
	Client             ArtifactRef
	Libraries          []Library
	MinecraftArguments string
	ArgumentsGame      []any
	ArgumentsJVM       []any
	LoggingArgument    string
	LoggingFile        ArtifactRef
	LoggingFileID      string
}

// Project builds a Resolved view from a fully merged Doc.
func Project(doc Doc) Resolved {
	r := Resolved{
		ID:                 str(doc["id"]),
		MainClass:          str(doc["mainClass"]),
		Assets:             str(doc["assets"]),
		MinecraftArguments: str(doc["minecraftArguments"]),
	}

	if ai, ok := doc["assetIndex"].(map[string]any); ok {
		r.AssetIndex = artifactRef(ai)
		r.AssetIndexID = str(ai["id"])
	}
	if downloads, ok := doc["downloads"].(map[string]any); ok {
		if client, ok := downloads["client"].(map[string]any); ok {
			r.Client = artifactRef(client)
		}
	}
	if args, ok := doc["arguments"].(map[string]any); ok {
		if g, ok := args["game"].([]any); ok {
			r.ArgumentsGame = g
		}
		if j, ok := args["jvm"].([]any); ok {
			r.ArgumentsJVM = j
		}
	}
	if logging, ok := doc["logging"].(map[string]any); ok {
		if client, ok := logging["client"].(map[string]any); ok {
			r.LoggingArgument = str(client["argument"])
			if file, ok := client["file"].(map[string]any); ok {
				r.LoggingFile = artifactRef(file)
				r.LoggingFileID = str(file["id"])
			}
		}
	}
	if rawLibs, ok := doc["libraries"].([]any); ok {
		for _, rl := range rawLibs {
			lib, ok := rl.(map[string]any)
			if !ok {
				continue
			}
			r.Libraries = append(r.Libraries, projectLibrary(lib))
		}
	}
	return r
}

func projectLibrary(lib map[string]any) Library {
	l := Library{Name: str(lib["name"])}
	if downloads, ok := lib["downloads"].(map[string]any); ok {
		if artifact, ok := downloads["artifact"].(map[string]any); ok {
			l.Artifact = artifactRefWithPath(artifact)
		}
		if classifiers, ok := downloads["classifiers"].(map[string]any); ok {
			l.Classifiers = map[string]ArtifactRef{}
			for k, v := range classifiers {
				if m, ok := v.(map[string]any); ok {
					l.Classifiers[k] = artifactRefWithPath(m)
				}
			}
		}
	}
	if natives, ok := lib["natives"].(map[string]any); ok {
		l.Natives = map[string]string{}
		for k, v := range natives {
			l.Natives[k] = str(v)
		}
	}
	if rawRules, ok := lib["rules"].([]any); ok {
		for _, rr := range rawRules {
			rm, ok := rr.(map[string]any)
			if !ok {
				continue
			}
			rule := Rule{Action: str(rm["action"])}
			if osObj, ok := rm["os"].(map[string]any); ok {
				rule.OSName = str(osObj["name"])
			}
			l.Rules = append(l.Rules, rule)
		}
	}
	return l
}

func artifactRef(m map[string]any) ArtifactRef {
	return ArtifactRef{URL: str(m["url"]), Size: int64ish(m["size"]), SHA1: str(m["sha1"])}
}

// The artifact's "path" key is not carried anywhere: neither ArtifactRef nor
// Library has a Path field, since library destinations are derived from the
// Maven coordinate at the point of use.
func artifactRefWithPath(m map[string]any) ArtifactRef {
	return artifactRef(m)
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

// JarPath computes the on-disk main jar path for this version under
// versionsDir. Callers must compute this path before checking for its
// existence — never assign it only after the check succeeds.
func (r Resolved) JarPath(versionsDir string) string {
	return filepath.Join(versionsDir, r.ID, r.ID+".jar")
}
