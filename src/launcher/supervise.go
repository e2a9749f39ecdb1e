package launcher

import (
	"os"
	"os/exec"
	"time"

	"github.com/kestrel-project/launchcore/src/auth"
	"github.com/kestrel-project/launchcore/src/context"
	"github.com/kestrel-project/launchcore/src/events"
	"github.com/kestrel-project/launchcore/src/metadata"
)

// killGrace is how long Supervise waits for an interrupted process to exit on
// its own before force-killing it.
const killGrace = 5 * time.Second

// Launch assembles the command for resolved/session and returns a ready,
// unstarted *exec.Cmd with the child's I/O wired to the launcher's own.
func Launch(ctx context.Context, resolved metadata.Resolved, session auth.Session, opts Options, watcher events.Watcher) (*exec.Cmd, error) {
	javaPath, args, err := PrepareCommand(ctx, resolved, session, opts, watcher)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(javaPath, args...)
	cmd.Dir = ctx.WorkDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// Supervise starts cmd and blocks until it exits or stop is closed. On stop,
// it signals the child to terminate, waits up to killGrace for it to reap,
// and force-kills it if it hasn't exited by then. It always emits a
// ProcessStarted event on launch and a ProcessExited event once the child
// has been reaped, one way or another.
func Supervise(cmd *exec.Cmd, version string, stop <-chan struct{}, watcher events.Watcher) error {
	if err := cmd.Start(); err != nil {
		return err
	}
	if watcher != nil {
		watcher.Notify(events.ProcessStarted{Version: version, PID: cmd.Process.Pid})
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case err := <-waitErr:
		exitCode := exitCodeOf(err)
		if watcher != nil {
			watcher.Notify(events.ProcessExited{Version: version, ExitCode: exitCode, Killed: false})
		}
		return err

	case <-stop:
		cmd.Process.Signal(os.Interrupt)
		select {
		case err := <-waitErr:
			exitCode := exitCodeOf(err)
			if watcher != nil {
				watcher.Notify(events.ProcessExited{Version: version, ExitCode: exitCode, Killed: true})
			}
			return err
		case <-time.After(killGrace):
			cmd.Process.Kill()
			err := <-waitErr
			if watcher != nil {
				watcher.Notify(events.ProcessExited{Version: version, ExitCode: exitCodeOf(err), Killed: true})
			}
			return err
		}
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
