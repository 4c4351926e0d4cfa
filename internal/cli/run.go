package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/kilnhq/kilnd/internal/launch"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Represents the 'kilnd run' command.
type RunCmd struct {
	Archive     string            `arg:"" help:"Path to the exported image archive, or the directory containing it." placeholder:"PATH"`
	ID          string            `help:"Container ID. Defaults to a name derived from the archive path."`
	Env         map[string]string `short:"e" help:"Environment overrides (KEY=VALUE). Repeatable." mapsep:","`
	WaitPort    int               `help:"TCP port to probe for readiness. 0 disables probing."`
	WaitTimeout time.Duration     `help:"How long to probe for readiness." default:"2m"`
}

// Executes the run command.
//
// Launches the image as a foreground container with attached stdio and
// blocks until the application exits or the context is cancelled. The
// process exit code mirrors the container's.
func (c *RunCmd) Run(ctx context.Context) error {
	archive, err := resolveArchive(c.Archive)
	if err != nil {
		return err
	}

	id := c.ID
	if id == "" {
		id = projectName(filepath.Dir(archive))
	}

	rt, err := runtime.New(RootCmd.Address, RootCmd.Namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	code, err := launch.Run(ctx, rt, launch.Options{
		Archive:     archive,
		ID:          id,
		Env:         c.Env,
		WaitPort:    c.WaitPort,
		WaitTimeout: c.WaitTimeout,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	})
	if err != nil {
		return err
	}

	if code != 0 {
		return &ExitCodeError{Code: code}
	}
	return nil
}

// Resolves the archive argument to a file path. A directory argument is
// searched for the archive exported by a build.
func resolveArchive(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	if !info.IsDir() {
		return path, nil
	}

	candidates, err := filepath.Glob(filepath.Join(path, "*", "image.tar"))
	if err == nil && len(candidates) > 0 {
		return candidates[0], nil
	}

	return filepath.Join(path, "image.tar"), nil
}
