// Package generate scaffolds recipes for Python web applications.
//
// Given a project root, the generator inspects the source tree for a
// package manifest (pyproject.toml or requirements.txt) and a Streamlit
// entry point, then writes a recipe that bakes the conventional container
// for such an app: a slim Python base, the uv installer, the source tree
// under /app, an editable install, unbuffered and bytecode-free Python,
// headless Streamlit on an exposed port, and a command binding the server
// to all interfaces.
//
// The generator never guesses: with no recognizable manifest or entry
// point it fails and writes nothing.
package generate
