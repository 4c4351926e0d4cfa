// Package build orchestrates recipe execution against container runtimes.
//
// A recipe is an ordered sequence of stages, each backed by a container
// created from a base image. The build pipeline starts a container for
// each stage, dispatches its steps (shell commands, file copies, and
// inter-stage transfers), and exports the final non-transient stage as
// an OCI image carrying the environment, exposed ports, working directory,
// and command accumulated from the stage's modifier steps. Multi-platform
// builds repeat the pipeline per platform, writing each result to a
// platform-specific output directory.
//
// Container operations are delegated to the runtime package. Step state
// (environment variables, working directory, shell, exposed ports, command)
// is accumulated across steps within a stage and reset between stages.
//
// Builds are all-or-nothing: a failing step aborts the build and no output
// archive is written. When a cache store is configured, a build whose
// recipe, base images, and copied sources are unchanged resolves to the
// previously exported archive without executing any step.
//
// Example usage:
//
//	result, err := build.Run(ctx, rt, build.Options{
//	    Recipe:    recipe,
//	    App:       "my-app",
//	    Output:    "dist",
//	    Root:      ".",
//	    Platforms: []string{"linux/amd64"},
//	})
//	if err != nil {
//	    return err
//	}
package build
