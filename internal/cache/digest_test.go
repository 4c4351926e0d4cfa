package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kilnhq/kilnd/internal/manifest"
)

func testRecipe() *manifest.Recipe {
	return &manifest.Recipe{Stages: []manifest.Stage{
		{
			Name: "app",
			From: "docker.io/library/python:3.13-slim",
			Steps: []manifest.Step{
				{Run: "pip install --no-cache-dir uv"},
				{Workdir: "/app"},
				{Env: map[string]string{"PYTHONUNBUFFERED": "1"}},
				{Expose: []int{8501}},
				{Command: []string{"streamlit", "run", "app.py"}},
			},
		},
	}}
}

func TestRecipeDigestDeterministic(t *testing.T) {
	root := t.TempDir()

	a, err := RecipeDigest(testRecipe(), root, []string{"linux/amd64"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := RecipeDigest(testRecipe(), root, []string{"linux/amd64"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if a != b {
		t.Fatalf("digest not deterministic: %s != %s", a, b)
	}
	if a == "" {
		t.Fatal("digest is empty")
	}
}

func TestRecipeDigestPlatformOrderInsensitive(t *testing.T) {
	root := t.TempDir()

	a, _ := RecipeDigest(testRecipe(), root, []string{"linux/amd64", "linux/arm64"})
	b, _ := RecipeDigest(testRecipe(), root, []string{"linux/arm64", "linux/amd64"})

	if a != b {
		t.Fatal("digest depends on platform order")
	}
}

func TestRecipeDigestChangesWithSteps(t *testing.T) {
	root := t.TempDir()

	base, _ := RecipeDigest(testRecipe(), root, []string{"linux/amd64"})

	changed := testRecipe()
	changed.Stages[0].Steps[0].Run = "pip install --no-cache-dir uv==0.5"
	modified, _ := RecipeDigest(changed, root, []string{"linux/amd64"})

	if base == modified {
		t.Fatal("digest unchanged after run step edit")
	}

	changed = testRecipe()
	changed.Stages[0].Steps[2].Env["PYTHONUNBUFFERED"] = "0"
	modified, _ = RecipeDigest(changed, root, []string{"linux/amd64"})

	if base == modified {
		t.Fatal("digest unchanged after env edit")
	}

	changed = testRecipe()
	changed.Stages[0].From = "docker.io/library/python:3.12-slim"
	modified, _ = RecipeDigest(changed, root, []string{"linux/amd64"})

	if base == modified {
		t.Fatal("digest unchanged after base image edit")
	}
}

func TestRecipeDigestChangesWithPlatform(t *testing.T) {
	root := t.TempDir()

	a, _ := RecipeDigest(testRecipe(), root, []string{"linux/amd64"})
	b, _ := RecipeDigest(testRecipe(), root, []string{"linux/arm64"})

	if a == b {
		t.Fatal("digest unchanged across platforms")
	}
}

func TestRecipeDigestHashesCopyContents(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "app.py")
	if err := os.WriteFile(path, []byte("print('v1')\n"), 0644); err != nil {
		t.Fatal(err)
	}

	recipe := func() *manifest.Recipe {
		return &manifest.Recipe{Stages: []manifest.Stage{
			{
				Name: "app",
				From: "alpine",
				Steps: []manifest.Step{
					{Copy: "app.py /app/app.py"},
				},
			},
		}}
	}

	before, err := RecipeDigest(recipe(), root, []string{"linux/amd64"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(path, []byte("print('v2')\n"), 0644); err != nil {
		t.Fatal(err)
	}

	after, err := RecipeDigest(recipe(), root, []string{"linux/amd64"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if before == after {
		t.Fatal("digest unchanged after copy source edit")
	}
}

func TestRecipeDigestDirectoryCopy(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "src", "a.py"), []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		{Name: "app", From: "alpine", Steps: []manifest.Step{{Copy: "src /app/src"}}},
	}}

	before, err := RecipeDigest(recipe, root, []string{"linux/amd64"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "src", "b.py"), []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}

	after, err := RecipeDigest(recipe, root, []string{"linux/amd64"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if before == after {
		t.Fatal("digest unchanged after adding a file to a copied directory")
	}
}

func TestRecipeDigestSkipsStageCopy(t *testing.T) {
	root := t.TempDir()

	// No file named "deps" exists under root; a cross-stage source must not
	// be resolved against the host filesystem.
	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		{Name: "deps", From: "alpine", Transient: true, Steps: []manifest.Step{{Run: "true"}}},
		{Name: "app", From: "alpine", Steps: []manifest.Step{{Copy: "deps:/out /app/out"}}},
	}}

	if _, err := RecipeDigest(recipe, root, []string{"linux/amd64"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecipeDigestMissingCopySource(t *testing.T) {
	root := t.TempDir()

	recipe := &manifest.Recipe{Stages: []manifest.Stage{
		{Name: "app", From: "alpine", Steps: []manifest.Step{{Copy: "missing.txt /app/m.txt"}}},
	}}

	if _, err := RecipeDigest(recipe, root, []string{"linux/amd64"}); err == nil {
		t.Fatal("expected error for missing copy source")
	}
}
