package manifest

import (
	"fmt"
	"strings"
)

// Prefix marking a stage base as a local OCI archive rather than a
// registry reference.
const archivePrefix = "oci:"

// Kind of a stage base source.
type SourceKind int

const (
	// Image reference resolved from a registry (e.g. "python:3.13-slim").
	SourceReference SourceKind = iota

	// Path to a local OCI archive (e.g. "oci:dist/base.tar").
	SourceArchive
)

// Resolved base image source for a stage.
type Source struct {
	Kind  SourceKind
	Value string
}

// An ordered, multi-stage build description.
type Recipe struct {
	Stages []Stage `yaml:"stages" json:"stages"`
}

// One build stage, backed by a container created from a base image.
//
// Transient stages exist only to feed cross-stage copies; the single
// non-transient stage is exported as the output image.
type Stage struct {
	Name      string `yaml:"name,omitempty" json:"name,omitempty"`
	From      string `yaml:"from" json:"from"`
	Transient bool   `yaml:"transient,omitempty" json:"transient,omitempty"`
	Steps     []Step `yaml:"steps" json:"steps"`
}

// A single step within a stage.
//
// A step is exactly one of: an operation (Run or Copy), a group (Steps), or
// a standalone modifier (any of Shell, Workdir, Env, Expose, Command).
// Modifiers attached to an operation apply to that operation only; standalone
// modifiers persist for the rest of the stage and are recorded in the output
// image configuration.
type Step struct {
	Run     string            `yaml:"run,omitempty" json:"run,omitempty"`
	Copy    string            `yaml:"copy,omitempty" json:"copy,omitempty"`
	Shell   string            `yaml:"shell,omitempty" json:"shell,omitempty"`
	Workdir string            `yaml:"workdir,omitempty" json:"workdir,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Expose  []int             `yaml:"expose,omitempty" json:"expose,omitempty"`
	Command []string          `yaml:"command,omitempty" json:"command,omitempty"`
	Steps   []Step            `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// Parses the stage's base into a [Source].
//
// Bases prefixed with "oci:" name a local OCI archive; anything else is
// treated as a registry reference.
func (s Stage) ParseFrom() (Source, error) {
	from := strings.TrimSpace(s.From)
	if from == "" {
		return Source{}, fmt.Errorf("stage %q: missing base image", s.Name)
	}

	if path, ok := strings.CutPrefix(from, archivePrefix); ok {
		if path == "" {
			return Source{}, fmt.Errorf("stage %q: empty archive path", s.Name)
		}
		return Source{Kind: SourceArchive, Value: path}, nil
	}

	return Source{Kind: SourceReference, Value: from}, nil
}

// Returns the recipe's single non-transient stage.
func (r *Recipe) OutputStage() (Stage, error) {
	var out *Stage
	for i := range r.Stages {
		if r.Stages[i].Transient {
			continue
		}
		if out != nil {
			return Stage{}, fmt.Errorf("multiple non-transient stages")
		}
		out = &r.Stages[i]
	}
	if out == nil {
		return Stage{}, fmt.Errorf("no non-transient stage")
	}
	return *out, nil
}
