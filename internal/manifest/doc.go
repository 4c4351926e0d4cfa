// Package manifest defines the recipe format for image builds.
//
// A recipe is an ordered list of stages, each started from a base image and
// executed as a sequence of steps. Steps either perform an operation (a
// shell command or a file copy), adjust build state (shell, workdir,
// environment, exposed ports, launch command), or group nested steps. The
// single non-transient stage becomes the output image.
//
// Recipes are written in YAML, conventionally in a file named kiln.yaml at
// the project root:
//
//	stages:
//	  - name: app
//	    from: docker.io/library/python:3.13-slim
//	    steps:
//	      - run: pip install --no-cache-dir uv
//	      - copy: ". /app"
//	      - workdir: /app
//	      - run: uv pip install --system -e .
//	      - env:
//	          PYTHONUNBUFFERED: "1"
//	      - expose: [8501]
//	      - command: ["streamlit", "run", "src/streamlit_app.py", "--server.address=0.0.0.0"]
package manifest
