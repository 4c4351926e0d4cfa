package generate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/paths"
)

var (
	ErrNoManifest   = errors.New("no package manifest found")
	ErrNoEntrypoint = errors.New("no application entry point found")
	ErrExists       = errors.New("recipe already exists")
)

// Default HTTP port for generated Streamlit recipes.
const defaultPort = 8501

// Default base image for generated recipes.
const defaultBaseImage = "docker.io/library/python:3.13-slim"

// Entry point files probed in order, relative to the project root.
var entrypointCandidates = []string{
	"streamlit_app.py",
	filepath.Join("src", "streamlit_app.py"),
	filepath.Join("app", "src", "streamlit_app.py"),
	"app.py",
	filepath.Join("src", "app.py"),
}

// Controls recipe generation.
type Options struct {
	Root      string // Project root to inspect.
	Output    string // Recipe path. Empty writes <root>/kiln.yaml.
	BaseImage string // Base image override. Empty uses the default.
	Port      int    // Server port override. 0 uses the default.
	Force     bool   // Overwrite an existing recipe.
}

// Inspects the project and writes a recipe for it.
//
// Returns the path of the written recipe. The rendered recipe is parsed
// and validated before anything is written, so a generator bug can never
// produce an unloadable file.
func Run(opts Options) (string, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.Output == "" {
		opts.Output = filepath.Join(opts.Root, manifest.DefaultFilename)
	}
	if opts.BaseImage == "" {
		opts.BaseImage = defaultBaseImage
	}
	if opts.Port == 0 {
		opts.Port = defaultPort
	}

	if !opts.Force {
		if _, err := os.Stat(opts.Output); err == nil {
			return "", fmt.Errorf("%w: %s", ErrExists, opts.Output)
		}
	}

	install, err := detectInstall(opts.Root)
	if err != nil {
		return "", err
	}

	entrypoint, err := detectEntrypoint(opts.Root)
	if err != nil {
		return "", err
	}

	data, err := render(params{
		BaseImage:  opts.BaseImage,
		Install:    install,
		Entrypoint: entrypoint,
		Port:       opts.Port,
	})
	if err != nil {
		return "", err
	}

	if _, err := manifest.Parse(data); err != nil {
		return "", fmt.Errorf("generated recipe is invalid: %w", err)
	}

	if err := os.WriteFile(opts.Output, data, paths.DefaultFileMode); err != nil {
		return "", fmt.Errorf("writing recipe: %w", err)
	}

	return opts.Output, nil
}

// Determines the install command from the project's package manifest.
//
// A pyproject.toml gets an editable install so that the source tree under
// /app is used directly; a requirements.txt gets a plain requirements
// install. Both go through uv for speed and reproducible resolution.
func detectInstall(root string) (string, error) {
	if fileExists(filepath.Join(root, "pyproject.toml")) {
		return "uv pip install --system --no-cache -e .", nil
	}
	if fileExists(filepath.Join(root, "requirements.txt")) {
		return "uv pip install --system --no-cache -r requirements.txt", nil
	}
	return "", fmt.Errorf("%w in %s (expected pyproject.toml or requirements.txt)", ErrNoManifest, root)
}

// Locates the application entry point relative to the project root.
func detectEntrypoint(root string) (string, error) {
	for _, candidate := range entrypointCandidates {
		if fileExists(filepath.Join(root, candidate)) {
			return filepath.ToSlash(candidate), nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoEntrypoint, root)
}

// Whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
