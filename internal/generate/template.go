package generate

import (
	"bytes"
	"fmt"
	"text/template"
)

// Fields substituted into the recipe template.
type params struct {
	BaseImage  string
	Install    string
	Entrypoint string
	Port       int
}

// Recipe rendered for a detected Streamlit application.
//
// The environment disables stdout buffering and bytecode cache writes, and
// forces headless server operation so the container never blocks on a
// prompt or tries to open a browser. The exposed port is advisory; the
// command binds the server to all interfaces so connections routed into
// the container's network namespace are accepted.
const recipeTemplate = `stages:
  - name: app
    from: {{ .BaseImage }}
    steps:
      - run: pip install --no-cache-dir uv
      - copy: ". /app"
      - workdir: /app
      - run: {{ .Install }}
      - env:
          PYTHONUNBUFFERED: "1"
          PYTHONDONTWRITEBYTECODE: "1"
          STREAMLIT_SERVER_PORT: "{{ .Port }}"
          STREAMLIT_SERVER_HEADLESS: "true"
      - expose: [{{ .Port }}]
      - command: ["streamlit", "run", "{{ .Entrypoint }}", "--server.address=0.0.0.0"]
`

var recipeTmpl = template.Must(template.New("recipe").Parse(recipeTemplate))

// Renders the recipe template.
func render(p params) ([]byte, error) {
	var buf bytes.Buffer
	if err := recipeTmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("rendering recipe: %w", err)
	}
	return buf.Bytes(), nil
}
