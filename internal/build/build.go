package build

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	goruntime "runtime"
	"time"

	"github.com/kilnhq/kilnd/internal/cache"
	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/paths"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Controls recipe execution.
type Options struct {
	Recipe    *manifest.Recipe // Recipe to execute.
	App       string           // Application name, used as a prefix for container IDs.
	Output    string           // Directory for the exported image.
	Root      string           // Project root, for resolving copy sources.
	Platforms []string         // Target platforms (e.g., ["linux/amd64"]). Defaults to host.
	Cache     *cache.Store     // Build cache. Nil disables caching.
	NoCache   bool             // Force a rebuild even on a cache hit.
}

// Returned after successful recipe execution.
type Result struct {
	Output string // Directory containing the exported image.
	Cached bool   // True when the archive was reused from the build cache.
}

// Executes a recipe against the container runtime.
//
// Stages are built in declaration order. Each stage starts a container from
// its base image, executes the stage's steps, and the non-transient stage is
// exported as the final image to the output directory. When a cache store is
// configured and the recipe digest matches a previous build whose archive is
// still present, the build is skipped entirely.
func Run(ctx context.Context, rt *runtime.Runtime, opts Options) (*Result, error) {
	if len(opts.Platforms) == 0 {
		opts.Platforms = []string{"linux/" + goruntime.GOARCH}
	}

	slog.Info("executing recipe",
		"app", opts.App,
		"output", opts.Output,
		"stages", len(opts.Recipe.Stages),
		"platforms", opts.Platforms,
	)

	digest, err := recipeDigest(opts)
	if err != nil {
		return nil, err
	}

	if result := lookupCache(opts, digest); result != nil {
		return result, nil
	}

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileSystemOperation, err)
	}

	started := time.Now()

	result, err := newRecipe(rt, opts).build(ctx, opts.Recipe.Stages)
	if err != nil {
		return nil, err
	}

	recordCache(opts, digest, time.Since(started))

	return result, nil
}

// Computes the cache digest for the build, or "" when caching is disabled.
func recipeDigest(opts Options) (cache.Digest, error) {
	if opts.Cache == nil {
		return "", nil
	}

	digest, err := cache.RecipeDigest(opts.Recipe, opts.Root, opts.Platforms)
	if err != nil {
		return "", fmt.Errorf("%w: computing digest: %w", ErrBuild, err)
	}
	return digest, nil
}

// Consults the build cache. Returns a cached result when the digest matches
// a previous build whose archive is still on disk, nil otherwise.
func lookupCache(opts Options, digest cache.Digest) *Result {
	if opts.Cache == nil || opts.NoCache || digest == "" {
		return nil
	}

	entry, err := opts.Cache.Lookup(digest)
	if err != nil {
		slog.Warn("cache lookup failed", "error", err)
		return nil
	}
	if entry == nil {
		return nil
	}

	slog.Info("build cache hit", "output", entry.Output, "built", entry.CreatedAt)
	return &Result{Output: entry.Output, Cached: true}
}

// Records a completed build in the cache. Failures are logged, not fatal.
func recordCache(opts Options, digest cache.Digest, elapsed time.Duration) {
	if opts.Cache == nil || digest == "" {
		return
	}

	err := opts.Cache.Record(cache.Entry{
		Digest:   digest,
		App:      opts.App,
		Output:   opts.Output,
		Duration: elapsed,
	})
	if err != nil {
		slog.Warn("cache record failed", "error", err)
	}
}
