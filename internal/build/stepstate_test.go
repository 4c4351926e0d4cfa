package build

import (
	"testing"

	"github.com/kilnhq/kilnd/internal/manifest"
)

func TestNewStepState(t *testing.T) {
	s := newStepState()
	if s.shell != defaultShell {
		t.Fatalf("shell = %q, want %q", s.shell, defaultShell)
	}
	if s.workdir != "" {
		t.Fatalf("workdir = %q, want empty", s.workdir)
	}
	if len(s.env) != 0 {
		t.Fatalf("env = %v, want empty", s.env)
	}
	if len(s.expose) != 0 || len(s.command) != 0 {
		t.Fatalf("expose = %v, command = %v, want empty", s.expose, s.command)
	}
}

func TestApply(t *testing.T) {
	s := newStepState()

	s.apply(manifest.Step{Shell: "/bin/bash"})
	if s.shell != "/bin/bash" {
		t.Fatalf("shell = %q, want /bin/bash", s.shell)
	}

	s.apply(manifest.Step{Workdir: "/app"})
	if s.workdir != "/app" {
		t.Fatalf("workdir = %q, want /app", s.workdir)
	}
	if s.shell != "/bin/bash" {
		t.Fatalf("shell changed to %q after workdir apply", s.shell)
	}

	s.apply(manifest.Step{Env: map[string]string{"A": "1", "B": "2"}})
	if s.env["A"] != "1" || s.env["B"] != "2" {
		t.Fatalf("env = %v, want A=1 B=2", s.env)
	}

	s.apply(manifest.Step{Env: map[string]string{"A": "override"}})
	if s.env["A"] != "override" {
		t.Fatalf("env[A] = %q, want override", s.env["A"])
	}
	if s.env["B"] != "2" {
		t.Fatalf("env[B] = %q, want 2 (preserved)", s.env["B"])
	}
}

func TestApplyExposeAccumulates(t *testing.T) {
	s := newStepState()

	s.apply(manifest.Step{Expose: []int{8501}})
	s.apply(manifest.Step{Expose: []int{9000, 8501}})

	if len(s.expose) != 2 {
		t.Fatalf("expose = %v, want two unique ports", s.expose)
	}
	if s.expose[0] != 8501 || s.expose[1] != 9000 {
		t.Fatalf("expose = %v, want [8501 9000]", s.expose)
	}
}

func TestApplyCommandReplaces(t *testing.T) {
	s := newStepState()

	s.apply(manifest.Step{Command: []string{"python", "app.py"}})
	s.apply(manifest.Step{Command: []string{"streamlit", "run", "app.py"}})

	if len(s.command) != 3 || s.command[0] != "streamlit" {
		t.Fatalf("command = %v, want streamlit run app.py", s.command)
	}

	s.apply(manifest.Step{Workdir: "/app"})
	if len(s.command) != 3 {
		t.Fatalf("command = %v, mutated by unrelated apply", s.command)
	}
}

func TestApplyEmptyFieldsNoOp(t *testing.T) {
	s := newStepState()
	s.apply(manifest.Step{Shell: "/bin/zsh", Workdir: "/opt"})
	s.apply(manifest.Step{})
	if s.shell != "/bin/zsh" {
		t.Fatalf("shell = %q, want /bin/zsh", s.shell)
	}
	if s.workdir != "/opt" {
		t.Fatalf("workdir = %q, want /opt", s.workdir)
	}
}

func TestResolve(t *testing.T) {
	s := newStepState()
	s.apply(manifest.Step{
		Shell:   "/bin/bash",
		Workdir: "/app",
		Env:     map[string]string{"A": "1"},
	})

	resolved := s.resolve(manifest.Step{
		Shell:   "/bin/zsh",
		Workdir: "/tmp",
		Env:     map[string]string{"B": "2"},
	})

	if resolved.shell != "/bin/zsh" {
		t.Fatalf("resolved.shell = %q, want /bin/zsh", resolved.shell)
	}
	if resolved.workdir != "/tmp" {
		t.Fatalf("resolved.workdir = %q, want /tmp", resolved.workdir)
	}
	if resolved.env["A"] != "1" || resolved.env["B"] != "2" {
		t.Fatalf("resolved.env = %v, want A=1 B=2", resolved.env)
	}

	// Original state is unchanged.
	if s.shell != "/bin/bash" {
		t.Fatalf("original shell mutated to %q", s.shell)
	}
	if s.workdir != "/app" {
		t.Fatalf("original workdir mutated to %q", s.workdir)
	}
	if _, ok := s.env["B"]; ok {
		t.Fatal("original env mutated: B leaked in")
	}
}

func TestResolveInheritsState(t *testing.T) {
	s := newStepState()
	s.apply(manifest.Step{Shell: "/bin/bash", Workdir: "/app"})

	resolved := s.resolve(manifest.Step{})
	if resolved.shell != "/bin/bash" {
		t.Fatalf("shell = %q, want /bin/bash", resolved.shell)
	}
	if resolved.workdir != "/app" {
		t.Fatalf("workdir = %q, want /app", resolved.workdir)
	}
}

func TestResolveEnvOverride(t *testing.T) {
	s := newStepState()
	s.apply(manifest.Step{Env: map[string]string{"K": "base"}})

	resolved := s.resolve(manifest.Step{Env: map[string]string{"K": "override"}})
	if resolved.env["K"] != "override" {
		t.Fatalf("env[K] = %q, want override", resolved.env["K"])
	}
	if s.env["K"] != "base" {
		t.Fatalf("original env[K] mutated to %q", s.env["K"])
	}
}

func TestEnviron(t *testing.T) {
	s := newStepState()
	if len(s.environ()) != 0 {
		t.Fatal("empty state should produce no environ entries")
	}

	s.apply(manifest.Step{Env: map[string]string{"PATH": "/usr/bin", "HOME": "/root"}})
	env := s.environ()
	if len(env) != 2 {
		t.Fatalf("len(environ) = %d, want 2", len(env))
	}

	// Entries come out sorted so the exported image config is stable.
	if env[0] != "HOME=/root" || env[1] != "PATH=/usr/bin" {
		t.Fatalf("environ = %v, want sorted [HOME=/root PATH=/usr/bin]", env)
	}
}

func TestImageConfig(t *testing.T) {
	s := newStepState()
	s.apply(manifest.Step{
		Workdir: "/app",
		Env:     map[string]string{"PORT": "8501"},
		Expose:  []int{8501},
		Command: []string{"streamlit", "run", "app.py"},
	})

	cfg := s.imageConfig()
	if cfg.Workdir != "/app" {
		t.Fatalf("workdir = %q, want /app", cfg.Workdir)
	}
	if len(cfg.Env) != 1 || cfg.Env[0] != "PORT=8501" {
		t.Fatalf("env = %v, want [PORT=8501]", cfg.Env)
	}
	if len(cfg.Expose) != 1 || cfg.Expose[0] != 8501 {
		t.Fatalf("expose = %v, want [8501]", cfg.Expose)
	}
	if len(cfg.Command) != 3 {
		t.Fatalf("command = %v, want 3 args", cfg.Command)
	}

	// The config holds copies, not aliases of the state's slices.
	cfg.Expose[0] = 9999
	if s.expose[0] != 8501 {
		t.Fatal("image config aliases the state's expose slice")
	}
}
