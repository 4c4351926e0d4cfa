package build

import (
	"maps"
	"slices"

	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/runtime"
)

// Default shell used for run steps when no shell modifier has been set.
const defaultShell = "/bin/sh"

// Tracks accumulated modifiers during step execution.
//
// State flows linearly through the step list. Standalone modifiers update
// the state permanently via apply. Operations read the effective values for
// a single step via resolve without modifying the persistent state. At the
// end of a stage the accumulated state becomes the output image
// configuration.
type stepState struct {
	shell   string
	workdir string
	env     map[string]string
	expose  []int
	command []string
}

// Creates a new [stepState] with default values.
func newStepState() *stepState {
	return &stepState{
		shell: defaultShell,
		env:   make(map[string]string),
	}
}

// Persists modifier fields from a step into the state.
//
// Called for standalone modifier steps and groups. The state is mutated
// permanently, affecting all subsequent steps and the exported image
// configuration. Exposed ports accumulate; a later command replaces an
// earlier one.
func (s *stepState) apply(step manifest.Step) {
	if step.Shell != "" {
		s.shell = step.Shell
	}
	if step.Workdir != "" {
		s.workdir = step.Workdir
	}
	maps.Copy(s.env, step.Env)

	for _, port := range step.Expose {
		if !slices.Contains(s.expose, port) {
			s.expose = append(s.expose, port)
		}
	}

	if len(step.Command) > 0 {
		s.command = slices.Clone(step.Command)
	}
}

// Returns a new [stepState] with step-level modifiers overlaid on the
// persistent state. The receiver is not modified.
//
// Step-level modifiers override the corresponding state values for this
// operation only.
func (s *stepState) resolve(step manifest.Step) *stepState {
	resolved := &stepState{
		shell:   s.shell,
		workdir: s.workdir,
		env:     make(map[string]string, len(s.env)+len(step.Env)),
	}
	maps.Copy(resolved.env, s.env)
	maps.Copy(resolved.env, step.Env)

	if step.Shell != "" {
		resolved.shell = step.Shell
	}
	if step.Workdir != "" {
		resolved.workdir = step.Workdir
	}

	return resolved
}

// Formats the environment as a sorted list of "key=value" strings suitable
// for passing to container exec and the image configuration. Sorting keeps
// the exported image config byte-identical across builds of the same recipe.
func (s *stepState) environ() []string {
	env := make([]string, 0, len(s.env))
	for k, v := range s.env {
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return env
}

// Returns the image configuration accumulated by the stage's modifier steps.
func (s *stepState) imageConfig() runtime.ImageConfig {
	return runtime.ImageConfig{
		Env:     s.environ(),
		Expose:  slices.Clone(s.expose),
		Workdir: s.workdir,
		Command: slices.Clone(s.command),
	}
}
