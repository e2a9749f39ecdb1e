// Command launchcore-demo exercises the full resolve -> download -> install
// -> launch pipeline against a real Mojang version manifest, for manual
// testing of the library rather than as a product-grade CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/kestrel-project/launchcore/src/assets"
	"github.com/kestrel-project/launchcore/src/auth"
	launchcontext "github.com/kestrel-project/launchcore/src/context"
	"github.com/kestrel-project/launchcore/src/download"
	"github.com/kestrel-project/launchcore/src/events"
	"github.com/kestrel-project/launchcore/src/fabric"
	"github.com/kestrel-project/launchcore/src/httpclient"
	"github.com/kestrel-project/launchcore/src/launcher"
	"github.com/kestrel-project/launchcore/src/logcfg"
	"github.com/kestrel-project/launchcore/src/manifest"
	"github.com/kestrel-project/launchcore/src/metadata"
	"github.com/kestrel-project/launchcore/src/modded"
	"github.com/kestrel-project/launchcore/src/task"
)

func main() {
	var (
		mainDir       = flag.String("dir", "", "launcher main directory (default: platform .minecraft)")
		versionID     = flag.String("version", "release", "version id or alias (release, snapshot, or exact id)")
		forgeVersion  = flag.String("forge", "", "forge installer version, e.g. 1.20.1-47.2.0 (mutually exclusive with -fabric)")
		fabricVersion = flag.String("fabric", "", "fabric loader version, e.g. 0.14.9 (mutually exclusive with -forge)")
		username      = flag.String("username", "Player", "offline/classic session display name")
		dryRun        = flag.Bool("dry-run", false, "resolve and download only; do not launch the game")
	)
	flag.Parse()

	watcher := events.WatcherFunc(func(e events.Event) {
		fmt.Fprintf(os.Stderr, "%T %+v\n", e, e)
	})

	if err := run(*mainDir, *versionID, *forgeVersion, *fabricVersion, *username, *dryRun, watcher); err != nil {
		log.Fatal(err)
	}
}

// resolvedVersionID and downloadList are the values threaded through task
// state between steps below.
type (
	resolvedVersionID string
	downloadList      struct{ *download.List }
)

func run(mainDir, versionID, forgeVersion, fabricVersion, username string, dryRun bool, watcher events.Watcher) error {
	if forgeVersion != "" && fabricVersion != "" {
		return fmt.Errorf("launchcore-demo: -forge and -fabric are mutually exclusive")
	}

	launchCtx, err := launchcontext.New(mainDir, "")
	if err != nil {
		return err
	}
	client := httpclient.New(30 * time.Second)
	session := auth.NewClassicSession(client, auth.DefaultClassicEndpoints, "offline-token", username, "offline-uuid", "offline-client-token")

	state := task.NewState()
	task.Insert(state, resolvedVersionID(versionID))
	task.Insert(state, downloadList{download.NewList()})

	steps := []task.Task{
		resolveManifestTask{client: client},
		resolveMetadataTask{client: client, ctx: launchCtx},
	}
	switch {
	case forgeVersion != "":
		steps = append(steps, installForgeTask{client: client, ctx: launchCtx, installerVersion: forgeVersion})
	case fabricVersion != "":
		steps = append(steps, installFabricTask{client: client, ctx: launchCtx, loaderVersion: fabricVersion})
	}
	steps = append(steps,
		planAssetsTask{client: client, ctx: launchCtx},
		planLogConfigTask{ctx: launchCtx},
		runDownloadsTask{},
	)
	if !dryRun {
		steps = append(steps, launchTask{ctx: launchCtx, session: session})
	}
	seq := task.NewSequence(steps...)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	return seq.Run(ctx, state, watcher)
}

type resolveManifestTask struct{ client *httpclient.Client }

func (t resolveManifestTask) Execute(ctx context.Context, state *task.State, watcher events.Watcher) error {
	m, err := manifest.LoadFromRemote(t.client, "")
	if err != nil {
		return err
	}
	id, err := task.Require[resolvedVersionID](state)
	if err != nil {
		return err
	}
	desc, err := m.GetVersion(string(id))
	if err != nil {
		return err
	}
	task.Replace(state, resolvedVersionID(desc.ID))
	return nil
}

type resolveMetadataTask struct {
	client *httpclient.Client
	ctx    launchcontext.Context
}

func (t resolveMetadataTask) Execute(ctx context.Context, state *task.State, watcher events.Watcher) error {
	id, err := task.Require[resolvedVersionID](state)
	if err != nil {
		return err
	}
	m, err := manifest.LoadFromRemote(t.client, "")
	if err != nil {
		return err
	}
	resolver := metadata.NewResolver(t.ctx.VersionsDir, t.client, m)
	doc, err := resolver.InstallMeta(string(id))
	if err != nil {
		return err
	}
	task.Insert(state, metadata.Project(doc))
	return nil
}

type installForgeTask struct {
	client           *httpclient.Client
	ctx              launchcontext.Context
	installerVersion string
}

func (t installForgeTask) Execute(ctx context.Context, state *task.State, watcher events.Watcher) error {
	resolved, err := task.Require[metadata.Resolved](state)
	if err != nil {
		return err
	}
	binDir, err := t.ctx.GenBinDir()
	if err != nil {
		return err
	}
	root := modded.ForgeRoot{Prefix: resolved.ID, InstallerVersion: t.installerVersion}
	doc, info, entries, err := modded.Resolve(t.client, root, t.ctx.VersionsDir, t.ctx.LibrariesDir, binDir)
	if err != nil {
		return err
	}

	list, err := task.Require[downloadList](state)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := list.Add(e); err != nil {
			return err
		}
	}
	baseJarPath := resolved.JarPath(t.ctx.VersionsDir)
	list.AddFinalizeCallback(func() error {
		return modded.Finalize(info, "java", t.ctx.LibrariesDir, baseJarPath, watcher)
	})

	task.Replace(state, metadata.Project(doc))
	task.Replace(state, resolvedVersionID(root.VirtualID()))
	return nil
}

type installFabricTask struct {
	client        *httpclient.Client
	ctx           launchcontext.Context
	loaderVersion string
}

func (t installFabricTask) Execute(ctx context.Context, state *task.State, watcher events.Watcher) error {
	id, err := task.Require[resolvedVersionID](state)
	if err != nil {
		return err
	}
	list, err := task.Require[downloadList](state)
	if err != nil {
		return err
	}
	doc, err := fabric.Install(t.client, t.ctx, string(id), t.loaderVersion, list.List)
	if err != nil {
		return err
	}
	task.Replace(state, metadata.Project(doc))
	if fabricID, ok := doc["id"].(string); ok {
		task.Replace(state, resolvedVersionID(fabricID))
	}
	return nil
}

type planAssetsTask struct {
	client *httpclient.Client
	ctx    launchcontext.Context
}

func (t planAssetsTask) Execute(ctx context.Context, state *task.State, watcher events.Watcher) error {
	resolved, err := task.Require[metadata.Resolved](state)
	if err != nil {
		return err
	}
	list, err := task.Require[downloadList](state)
	if err != nil {
		return err
	}
	_, err = assets.Plan(t.client, t.ctx.AssetsDir, t.ctx.WorkDir, resolved, list.List)
	return err
}

type planLogConfigTask struct {
	ctx launchcontext.Context
}

func (t planLogConfigTask) Execute(ctx context.Context, state *task.State, watcher events.Watcher) error {
	resolved, err := task.Require[metadata.Resolved](state)
	if err != nil {
		return err
	}
	list, err := task.Require[downloadList](state)
	if err != nil {
		return err
	}
	_, err = logcfg.Build(t.ctx.AssetsDir, resolved, list.List)
	return err
}

type runDownloadsTask struct{}

func (t runDownloadsTask) Execute(ctx context.Context, state *task.State, watcher events.Watcher) error {
	list, err := task.Require[downloadList](state)
	if err != nil {
		return err
	}
	if list.IsEmpty() {
		return nil
	}
	executor := download.NewExecutor(4, watcher)
	return executor.Run(list.List)
}

type launchTask struct {
	ctx     launchcontext.Context
	session auth.Session
}

func (t launchTask) Execute(ctx context.Context, state *task.State, watcher events.Watcher) error {
	resolved, err := task.Require[metadata.Resolved](state)
	if err != nil {
		return err
	}
	cmd, err := launcher.Launch(t.ctx, resolved, t.session, launcher.Options{}, watcher)
	if err != nil {
		return err
	}
	stop := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stop)
	}()
	return launcher.Supervise(cmd, resolved.ID, stop, watcher)
}
