package launcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-project/launchcore/src/auth"
	"github.com/kestrel-project/launchcore/src/context"
	"github.com/kestrel-project/launchcore/src/httpclient"
	"github.com/kestrel-project/launchcore/src/metadata"
)

func newTestContext(t *testing.T) context.Context {
	t.Helper()
	mainDir := t.TempDir()
	ctx, err := context.New(mainDir, mainDir)
	require.NoError(t, err)
	return ctx
}

func testSession() auth.Session {
	return auth.NewClassicSession(httpclient.New(0), auth.DefaultClassicEndpoints, "tok", "Steve", "uuid-1", "ct-1")
}

func TestPrepareCommandMissingJarReturnsSentinel(t *testing.T) {
	ctx := newTestContext(t)
	resolved := metadata.Resolved{ID: "1.20"}
	_, _, err := PrepareCommand(ctx, resolved, testSession(), Options{}, nil)
	assert.ErrorIs(t, err, ErrVersionJarMissing)
}

func TestPrepareCommandLegacyArgumentsSubstituted(t *testing.T) {
	ctx := newTestContext(t)
	resolved := metadata.Resolved{
		ID:                 "1.7.10",
		MainClass:          "net.minecraft.client.main.Main",
		MinecraftArguments: "--username ${auth_player_name} --uuid ${auth_uuid} --accessToken ${auth_access_token} --userType ${user_type}",
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(resolved.JarPath(ctx.VersionsDir)), 0o755))
	require.NoError(t, os.WriteFile(resolved.JarPath(ctx.VersionsDir), []byte("jar"), 0o644))

	javaPath, args, err := PrepareCommand(ctx, resolved, testSession(), Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "java", javaPath)
	assert.Contains(t, args, "Steve")
	assert.Contains(t, args, "uuid-1")
	assert.Contains(t, args, "tok")
	assert.Contains(t, args, "legacy")
	assert.Contains(t, args, "net.minecraft.client.main.Main")
}

func TestPrepareCommandModernArgumentsSubstitutedAndRuleGated(t *testing.T) {
	ctx := newTestContext(t)
	resolved := metadata.Resolved{
		ID:        "1.20",
		MainClass: "net.minecraft.client.main.Main",
		ArgumentsGame: []any{
			"--username", "${auth_player_name}",
			map[string]any{
				"rules": []any{
					map[string]any{"action": "allow"},
					map[string]any{"action": "disallow", "os": map[string]any{"name": "does-not-exist"}},
				},
				"value": "--should-be-included",
			},
			map[string]any{
				"rules": []any{map[string]any{"action": "allow", "os": map[string]any{"name": "does-not-exist"}}},
				"value": "--should-be-excluded",
			},
		},
		ArgumentsJVM: []any{"-Djava.library.path=${natives_directory}"},
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(resolved.JarPath(ctx.VersionsDir)), 0o755))
	require.NoError(t, os.WriteFile(resolved.JarPath(ctx.VersionsDir), []byte("jar"), 0o644))

	_, args, err := PrepareCommand(ctx, resolved, testSession(), Options{}, nil)
	require.NoError(t, err)
	assert.Contains(t, args, "--should-be-included")
	assert.NotContains(t, args, "--should-be-excluded")
	assert.Contains(t, args, "Steve")
}
