package protocol

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kilnhq/kilnd/internal/manifest"
)

// A command name carried in a message envelope.
type Command string

// Commands sent by clients, plus the two response commands written by the
// daemon.
const (
	CmdBuild    Command = "build"
	CmdLaunch   Command = "launch"
	CmdStop     Command = "stop"
	CmdStatus   Command = "status"
	CmdShutdown Command = "shutdown"

	CmdOK    Command = "ok"
	CmdError Command = "error"
)

// Observed state of a container.
type ContainerState string

const (
	ContainerRunning    ContainerState = "running"
	ContainerStopped    ContainerState = "stopped"
	ContainerNotCreated ContainerState = "not-created"
)

// A single protocol message.
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Asks the daemon to execute a recipe.
type BuildRequest struct {
	Recipe    *manifest.Recipe `json:"recipe"`
	App       string           `json:"app"`
	Output    string           `json:"output"`
	Root      string           `json:"root"`
	Platforms []string         `json:"platforms,omitempty"`
	NoCache   bool             `json:"no_cache,omitempty"`
}

// Reports a completed build.
type BuildResult struct {
	Output string `json:"output"`
	Cached bool   `json:"cached,omitempty"`
}

// Asks the daemon to launch a built image as a detached container.
type LaunchRequest struct {
	Archive string            `json:"archive"`
	ID      string            `json:"id"`
	Env     map[string]string `json:"env,omitempty"`
}

// Reports a launched container.
type LaunchResult struct {
	ID    string         `json:"id"`
	State ContainerState `json:"state"`
}

// Asks the daemon to stop a launched container.
type StopRequest struct {
	ID string `json:"id"`
}

// Reports a stopped container. State is the container's state as observed
// before the stop, so callers can tell a running stop from a no-op.
type StopResult struct {
	ID    string         `json:"id"`
	State ContainerState `json:"state"`
}

// Reports the daemon's status.
type StatusResult struct {
	Running  bool   `json:"running"`
	Version  string `json:"version"`
	Pid      int    `json:"pid"`
	Uptime   string `json:"uptime"`
	Builds   int    `json:"builds"`
	Launches int    `json:"launches"`
}

// Carries an error message back to the client.
type ErrorResult struct {
	Message string `json:"message"`
}

// Serializes a command and payload into an envelope.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		env.Payload = raw
	}

	return json.Marshal(env)
}

// Parses an envelope from a single message line.
//
// Returns the envelope and its raw payload for command-specific decoding
// via [DecodePayload].
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if env.Command == "" {
		return nil, nil, fmt.Errorf("envelope missing command")
	}
	return &env, env.Payload, nil
}

// Flattens an env map into sorted "key=value" entries.
//
// Sorting keeps the derived container and image environments deterministic
// regardless of map iteration order.
func Environ(env map[string]string) []string {
	entries := make([]string, 0, len(env))
	for k, v := range env {
		entries = append(entries, k+"="+v)
	}
	sort.Strings(entries)
	return entries
}

// Parses a raw payload into a concrete request or result type.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var v T
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty payload")
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return &v, nil
}
