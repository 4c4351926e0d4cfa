package generate

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kilnhq/kilnd/internal/manifest"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestRunPyproject(t *testing.T) {
	root := writeProject(t, map[string]string{
		"pyproject.toml":   "[project]\nname = \"demo\"\n",
		"streamlit_app.py": "import streamlit\n",
	})

	path, err := Run(Options{Root: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(root, manifest.DefaultFilename) {
		t.Fatalf("path = %q, want default recipe location", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	content := string(data)
	if !strings.Contains(content, "uv pip install --system --no-cache -e .") {
		t.Fatalf("recipe missing editable install:\n%s", content)
	}
	if !strings.Contains(content, "streamlit_app.py") {
		t.Fatalf("recipe missing entry point:\n%s", content)
	}
	if !strings.Contains(content, "python:3.13-slim") {
		t.Fatalf("recipe missing default base image:\n%s", content)
	}
	if !strings.Contains(content, "8501") {
		t.Fatalf("recipe missing default port:\n%s", content)
	}

	// The written recipe must load cleanly.
	if _, err := manifest.Load(path); err != nil {
		t.Fatalf("generated recipe does not load: %v", err)
	}
}

func TestRunRequirements(t *testing.T) {
	root := writeProject(t, map[string]string{
		"requirements.txt": "streamlit\n",
		"app.py":           "import streamlit\n",
	})

	path, err := Run(Options{Root: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "-r requirements.txt") {
		t.Fatalf("recipe missing requirements install:\n%s", data)
	}
}

func TestRunPyprojectPreferred(t *testing.T) {
	root := writeProject(t, map[string]string{
		"pyproject.toml":   "[project]\nname = \"demo\"\n",
		"requirements.txt": "streamlit\n",
		"app.py":           "import streamlit\n",
	})

	path, err := Run(Options{Root: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "-e .") {
		t.Fatalf("pyproject should win over requirements:\n%s", data)
	}
}

func TestRunEntrypointOrder(t *testing.T) {
	root := writeProject(t, map[string]string{
		"requirements.txt":         "streamlit\n",
		"app.py":                   "import streamlit\n",
		"src/streamlit_app.py":     "import streamlit\n",
		"app/src/streamlit_app.py": "import streamlit\n",
	})

	path, err := Run(Options{Root: root})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"src/streamlit_app.py"`) {
		t.Fatalf("entry point priority wrong:\n%s", data)
	}
}

func TestRunOverrides(t *testing.T) {
	root := writeProject(t, map[string]string{
		"requirements.txt": "streamlit\n",
		"app.py":           "import streamlit\n",
	})

	path, err := Run(Options{
		Root:      root,
		BaseImage: "docker.io/library/python:3.12",
		Port:      9000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(path)
	content := string(data)
	if !strings.Contains(content, "python:3.12") {
		t.Fatalf("base image override ignored:\n%s", content)
	}
	if !strings.Contains(content, "9000") || strings.Contains(content, "8501") {
		t.Fatalf("port override ignored:\n%s", content)
	}
}

func TestRunNoManifest(t *testing.T) {
	root := writeProject(t, map[string]string{
		"app.py": "import streamlit\n",
	})

	_, err := Run(Options{Root: root})
	if !errors.Is(err, ErrNoManifest) {
		t.Fatalf("err = %v, want ErrNoManifest", err)
	}
}

func TestRunNoEntrypoint(t *testing.T) {
	root := writeProject(t, map[string]string{
		"requirements.txt": "streamlit\n",
	})

	_, err := Run(Options{Root: root})
	if !errors.Is(err, ErrNoEntrypoint) {
		t.Fatalf("err = %v, want ErrNoEntrypoint", err)
	}
}

func TestRunRefusesOverwrite(t *testing.T) {
	root := writeProject(t, map[string]string{
		"requirements.txt":       "streamlit\n",
		"app.py":                 "import streamlit\n",
		manifest.DefaultFilename: "stages: []\n",
	})

	_, err := Run(Options{Root: root})
	if !errors.Is(err, ErrExists) {
		t.Fatalf("err = %v, want ErrExists", err)
	}

	// Force replaces the existing file.
	path, err := Run(Options{Root: root, Force: true})
	if err != nil {
		t.Fatalf("unexpected error with force: %v", err)
	}
	if _, err := manifest.Load(path); err != nil {
		t.Fatalf("forced recipe does not load: %v", err)
	}
}

func TestDetectEntrypointMissesDirectories(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "app.py"), 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := detectEntrypoint(root); !errors.Is(err, ErrNoEntrypoint) {
		t.Fatalf("err = %v, want ErrNoEntrypoint for directory candidate", err)
	}
}
