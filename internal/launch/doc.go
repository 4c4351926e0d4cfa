// Package launch starts built images as application containers.
//
// A launch creates exactly one container from an exported archive and runs
// the image's command as the container's foreground process. The process
// exit code is propagated verbatim to the caller; there is no restart
// policy, health check, or retry. Cancelling the context (e.g. on SIGINT)
// terminates the process and returns.
//
// When the image declares an exposed port, launch can optionally probe it
// until the application accepts TCP connections, reporting readiness in the
// log without affecting the launch outcome.
package launch
