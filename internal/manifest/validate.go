package manifest

import (
	"errors"
	"fmt"
)

var ErrInvalidRecipe = errors.New("invalid recipe")

// Checks the recipe for structural errors.
//
// A valid recipe has at least one stage, exactly one non-transient stage,
// a base image per stage, unique stage names, and well-formed steps.
func (r *Recipe) Validate() error {
	if len(r.Stages) == 0 {
		return fmt.Errorf("%w: no stages", ErrInvalidRecipe)
	}

	names := make(map[string]bool)
	output := 0

	for i, stage := range r.Stages {
		label := stageName(stage.Name, i)

		if _, err := stage.ParseFrom(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecipe, err)
		}

		if stage.Name != "" {
			if names[stage.Name] {
				return fmt.Errorf("%w: duplicate stage name %q", ErrInvalidRecipe, stage.Name)
			}
			names[stage.Name] = true
		}

		if !stage.Transient {
			output++
		}

		if err := validateSteps(stage.Steps, label); err != nil {
			return err
		}
	}

	if output == 0 {
		return fmt.Errorf("%w: all stages are transient", ErrInvalidRecipe)
	}
	if output > 1 {
		return fmt.Errorf("%w: multiple non-transient stages", ErrInvalidRecipe)
	}

	return nil
}

// Validates a step list recursively.
func validateSteps(steps []Step, stage string) error {
	for i, step := range steps {
		if err := validateStep(step, stage, i); err != nil {
			return err
		}
	}
	return nil
}

// Validates a single step.
func validateStep(step Step, stage string, index int) error {
	fail := func(format string, args ...any) error {
		prefix := fmt.Sprintf("stage %s, step %d: ", stage, index+1)
		return fmt.Errorf("%w: %s", ErrInvalidRecipe, prefix+fmt.Sprintf(format, args...))
	}

	if step.Run != "" && step.Copy != "" {
		return fail("run and copy are mutually exclusive")
	}

	hasOp := step.Run != "" || step.Copy != ""
	hasModifier := step.Shell != "" || step.Workdir != "" || len(step.Env) > 0 ||
		len(step.Expose) > 0 || len(step.Command) > 0

	if len(step.Steps) > 0 {
		if hasOp {
			return fail("a group cannot also be an operation")
		}
		return validateSteps(step.Steps, stage)
	}

	if !hasOp && !hasModifier {
		return fail("empty step")
	}

	for _, port := range step.Expose {
		if port < 1 || port > 65535 {
			return fail("exposed port %d out of range", port)
		}
	}

	return nil
}

// Returns a label for a stage, preferring the name when available and
// falling back to the 1-based index.
func stageName(name string, index int) string {
	if name != "" {
		return fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("%d", index+1)
}
