package runtime

import (
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func TestImageConfigApply(t *testing.T) {
	base := func() *ocispec.Image {
		img := &ocispec.Image{}
		img.Config.Env = []string{"PATH=/usr/bin", "LANG=C"}
		img.Config.Cmd = []string{"python3"}
		return img
	}

	t.Run("env merged over base", func(t *testing.T) {
		img := base()
		ImageConfig{Env: []string{"LANG=en_US.UTF-8", "PORT=8501"}}.apply(img)

		m := make(map[string]bool)
		for _, e := range img.Config.Env {
			m[e] = true
		}
		if !m["PATH=/usr/bin"] || !m["LANG=en_US.UTF-8"] || !m["PORT=8501"] {
			t.Fatalf("env = %v", img.Config.Env)
		}
		if m["LANG=C"] {
			t.Fatal("overridden entry survived the merge")
		}
	})

	t.Run("exposed ports recorded", func(t *testing.T) {
		img := base()
		ImageConfig{Expose: []int{8501, 9000}}.apply(img)

		if _, ok := img.Config.ExposedPorts["8501/tcp"]; !ok {
			t.Fatalf("ports = %v, missing 8501/tcp", img.Config.ExposedPorts)
		}
		if _, ok := img.Config.ExposedPorts["9000/tcp"]; !ok {
			t.Fatalf("ports = %v, missing 9000/tcp", img.Config.ExposedPorts)
		}
	})

	t.Run("workdir set", func(t *testing.T) {
		img := base()
		ImageConfig{Workdir: "/app"}.apply(img)
		if img.Config.WorkingDir != "/app" {
			t.Fatalf("workdir = %q, want /app", img.Config.WorkingDir)
		}
	})

	t.Run("command replaces cmd", func(t *testing.T) {
		img := base()
		ImageConfig{Command: []string{"streamlit", "run", "app.py"}}.apply(img)
		if len(img.Config.Cmd) != 3 || img.Config.Cmd[0] != "streamlit" {
			t.Fatalf("cmd = %v", img.Config.Cmd)
		}
	})

	t.Run("entrypoint clears base cmd", func(t *testing.T) {
		img := base()
		ImageConfig{Entrypoint: []string{"/entry.sh"}}.apply(img)
		if len(img.Config.Entrypoint) != 1 || img.Config.Entrypoint[0] != "/entry.sh" {
			t.Fatalf("entrypoint = %v", img.Config.Entrypoint)
		}
		if img.Config.Cmd != nil {
			t.Fatalf("cmd = %v, want nil after entrypoint override", img.Config.Cmd)
		}
	})

	t.Run("zero config is a no-op", func(t *testing.T) {
		img := base()
		ImageConfig{}.apply(img)
		if len(img.Config.Env) != 2 || img.Config.WorkingDir != "" || len(img.Config.Cmd) != 1 {
			t.Fatalf("config mutated: %+v", img.Config)
		}
	})
}

func TestManifestGCLabels(t *testing.T) {
	m := ocispec.Manifest{
		Config: ocispec.Descriptor{
			Digest: digest.FromString("config"),
		},
		Layers: []ocispec.Descriptor{
			{Digest: digest.FromString("layer0")},
			{Digest: digest.FromString("layer1")},
		},
	}

	labels := manifestGCLabels(m)

	configLabel := labels["containerd.io/gc.ref.content.config"]
	if configLabel != m.Config.Digest.String() {
		t.Fatalf("config label = %q, want %q", configLabel, m.Config.Digest.String())
	}

	for i, layer := range m.Layers {
		key := "containerd.io/gc.ref.content.l." + string(rune('0'+i))
		got := labels[key]
		if got != layer.Digest.String() {
			t.Fatalf("labels[%q] = %q, want %q", key, got, layer.Digest.String())
		}
	}

	if len(labels) != 3 {
		t.Fatalf("len(labels) = %d, want 3", len(labels))
	}
}

func TestIndexGCLabels(t *testing.T) {
	idx := ocispec.Index{
		Manifests: []ocispec.Descriptor{
			{Digest: digest.FromString("m0")},
			{Digest: digest.FromString("m1")},
		},
	}

	labels := indexGCLabels(idx)
	if len(labels) != 2 {
		t.Fatalf("len(labels) = %d, want 2", len(labels))
	}
	if labels["containerd.io/gc.ref.content.m.0"] != idx.Manifests[0].Digest.String() {
		t.Fatal("manifest 0 label mismatch")
	}
	if labels["containerd.io/gc.ref.content.m.1"] != idx.Manifests[1].Digest.String() {
		t.Fatal("manifest 1 label mismatch")
	}
}
