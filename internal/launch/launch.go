package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/protocol"
	"github.com/kilnhq/kilnd/internal/runtime"
)

var ErrLaunch = errors.New("launch failed")

// Interval between readiness probe attempts.
const probeInterval = 250 * time.Millisecond

// Controls an application launch.
type Options struct {
	Archive     string            // Path to the exported OCI archive.
	ID          string            // Container ID. Required.
	Env         map[string]string // Env overrides merged over the image env.
	WaitPort    int               // TCP port to probe for readiness. 0 disables probing.
	WaitTimeout time.Duration     // How long to probe before giving up. 0 uses a 2 minute default.
	Stdout      io.Writer         // Process stdout. Nil discards.
	Stderr      io.Writer         // Process stderr. Nil discards.
}

// Runs the application container in the foreground and returns its exit
// code.
//
// The archive is resolved through the runtime, a fresh container is created
// (replacing any stale one with the same ID), and the image's command runs
// as the container process until it exits or the context is cancelled. The
// container is destroyed before returning, so repeated launches with the
// same ID are clean.
func Run(ctx context.Context, rt *runtime.Runtime, opts Options) (int, error) {
	if opts.ID == "" {
		return 0, fmt.Errorf("%w: missing container ID", ErrLaunch)
	}

	source := manifest.Source{Kind: manifest.SourceArchive, Value: opts.Archive}

	ctr, err := rt.CreateApp(ctx, source, opts.ID, protocol.Environ(opts.Env))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	defer ctr.Destroy(context.WithoutCancel(ctx))

	slog.Info("launching", "id", opts.ID, "archive", opts.Archive)

	if opts.WaitPort > 0 {
		probeCtx, cancelProbe := context.WithCancel(ctx)
		defer cancelProbe()
		go probeReadiness(probeCtx, opts.WaitPort, opts.WaitTimeout)
	}

	code, err := ctr.RunForeground(ctx, opts.Stdout, opts.Stderr)
	if err != nil && !errors.Is(err, context.Canceled) {
		return code, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	slog.Info("application exited", "id", opts.ID, "code", code)
	return code, nil
}

// Dials the port until the application accepts a connection, the timeout
// elapses, or the context is cancelled.
//
// Readiness is informational: the launch outcome is decided solely by the
// process, so probe failures are logged and otherwise ignored.
func probeReadiness(ctx context.Context, port int, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, probeInterval)
		if err == nil {
			conn.Close()
			slog.Info("application is ready", "port", port)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(probeInterval):
		}
	}

	slog.Warn("application did not become ready", "port", port, "timeout", timeout)
}
