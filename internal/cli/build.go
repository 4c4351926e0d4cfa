package cli

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/kilnhq/kilnd/internal/build"
	"github.com/kilnhq/kilnd/internal/cache"
	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Represents the 'kilnd build' command.
type BuildCmd struct {
	Recipe    string   `arg:"" optional:"" help:"Path to the recipe file." placeholder:"PATH"`
	App       string   `short:"a" help:"Application name. Defaults to the project directory name."`
	Output    string   `short:"o" help:"Output directory for the exported image." placeholder:"DIR"`
	Platforms []string `short:"p" name:"platform" help:"Target platform (e.g. linux/amd64). Repeatable."`
	NoCache   bool     `help:"Rebuild even when the build cache has a matching image."`
}

// Executes the build command.
//
// Loads and validates the recipe, then executes it against containerd
// directly, without going through the daemon. The exported image archive
// lands in the output directory.
func (c *BuildCmd) Run(ctx context.Context) error {
	recipePath := c.Recipe
	if recipePath == "" {
		recipePath = manifest.DefaultFilename
	}

	recipe, err := manifest.Load(recipePath)
	if err != nil {
		return err
	}

	root := filepath.Dir(recipePath)

	app := c.App
	if app == "" {
		app = projectName(root)
	}

	output := c.Output
	if output == "" {
		output = filepath.Join(root, "build")
	}

	rt, err := runtime.New(RootCmd.Address, RootCmd.Namespace)
	if err != nil {
		return err
	}
	defer rt.Close()

	store, err := cache.Open("")
	if err != nil {
		slog.Warn("build cache unavailable", "error", err)
		store = nil
	} else {
		defer store.Close()
	}

	result, err := build.Run(ctx, rt, build.Options{
		Recipe:    recipe,
		App:       app,
		Output:    output,
		Root:      root,
		Platforms: c.Platforms,
		Cache:     store,
		NoCache:   c.NoCache,
	})
	if err != nil {
		return err
	}

	if result.Cached {
		slog.Info("image up to date", "output", result.Output)
	} else {
		slog.Info("image built", "output", result.Output)
	}
	return nil
}

// Derives an application name from the project root directory.
func projectName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "app"
	}
	name := filepath.Base(abs)
	if name == "." || name == string(filepath.Separator) {
		return "app"
	}
	return name
}
