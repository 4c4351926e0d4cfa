package manifest

import (
	"errors"
	"testing"
)

func TestParseFrom(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		kind    SourceKind
		value   string
		wantErr bool
	}{
		{
			name:  "registry reference",
			from:  "docker.io/library/python:3.13-slim",
			kind:  SourceReference,
			value: "docker.io/library/python:3.13-slim",
		},
		{
			name:  "archive path",
			from:  "oci:dist/base.tar",
			kind:  SourceArchive,
			value: "dist/base.tar",
		},
		{
			name:  "surrounding whitespace trimmed",
			from:  "  alpine:3.20  ",
			kind:  SourceReference,
			value: "alpine:3.20",
		},
		{
			name:    "empty base",
			from:    "",
			wantErr: true,
		},
		{
			name:    "archive prefix without path",
			from:    "oci:",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := Stage{Name: "test", From: tt.from}.ParseFrom()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", src.Kind, tt.kind)
			}
			if src.Value != tt.value {
				t.Errorf("value = %q, want %q", src.Value, tt.value)
			}
		})
	}
}

func TestOutputStage(t *testing.T) {
	r := &Recipe{Stages: []Stage{
		{Name: "deps", From: "alpine", Transient: true, Steps: []Step{{Run: "true"}}},
		{Name: "app", From: "alpine", Steps: []Step{{Run: "true"}}},
	}}

	out, err := r.OutputStage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "app" {
		t.Fatalf("output stage = %q, want app", out.Name)
	}
}

func TestOutputStageAllTransient(t *testing.T) {
	r := &Recipe{Stages: []Stage{
		{Name: "a", From: "alpine", Transient: true, Steps: []Step{{Run: "true"}}},
	}}

	if _, err := r.OutputStage(); err == nil {
		t.Fatal("expected error for all-transient recipe")
	}
}

func TestParse(t *testing.T) {
	data := []byte(`stages:
  - name: app
    from: docker.io/library/python:3.13-slim
    steps:
      - run: pip install --no-cache-dir uv
      - copy: ". /app"
      - workdir: /app
      - env:
          PYTHONUNBUFFERED: "1"
      - expose: [8501]
      - command: ["streamlit", "run", "app.py"]
`)

	recipe, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(recipe.Stages) != 1 {
		t.Fatalf("len(stages) = %d, want 1", len(recipe.Stages))
	}

	stage := recipe.Stages[0]
	if len(stage.Steps) != 6 {
		t.Fatalf("len(steps) = %d, want 6", len(stage.Steps))
	}
	if stage.Steps[4].Expose[0] != 8501 {
		t.Fatalf("expose = %v, want [8501]", stage.Steps[4].Expose)
	}
	if len(stage.Steps[5].Command) != 3 {
		t.Fatalf("command = %v, want 3 args", stage.Steps[5].Command)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	data := []byte(`stages:
  - name: app
    from: alpine
    steps:
      - rnu: "echo typo"
`)

	if _, err := Parse(data); err == nil {
		t.Fatal("expected error for unknown step field")
	}
}

func TestParseRejectsInvalidRecipe(t *testing.T) {
	data := []byte(`stages: []`)

	_, err := Parse(data)
	if !errors.Is(err, ErrInvalidRecipe) {
		t.Fatalf("err = %v, want ErrInvalidRecipe", err)
	}
}
