package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kilnhq/kilnd/internal"
	"github.com/kilnhq/kilnd/internal/build"
	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/protocol"
)

// Handles a build command.
//
// Receives a recipe from the client and executes it against the container
// runtime, consulting the build cache when one is available.
func (s *Server) handleBuild(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.BuildRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	if req.Recipe == nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: "build request missing recipe"})
		return
	}
	if err := req.Recipe.Validate(); err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	result, err := build.Run(ctx, s.runtime, build.Options{
		Recipe:    req.Recipe,
		App:       req.App,
		Output:    req.Output,
		Root:      req.Root,
		Platforms: req.Platforms,
		Cache:     s.cache,
		NoCache:   req.NoCache,
	})
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.mu.Lock()
	s.builds++
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.BuildResult{
		Output: result.Output,
		Cached: result.Cached,
	})
}

// Handles a launch command.
//
// Daemon launches are detached: the container's process runs with no
// attached IO and is managed afterwards via stop and status commands.
func (s *Server) handleLaunch(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.LaunchRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	if req.ID == "" {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: "launch request missing container ID"})
		return
	}

	source := manifest.Source{Kind: manifest.SourceArchive, Value: req.Archive}

	ctr, err := s.runtime.CreateApp(ctx, source, req.ID, protocol.Environ(req.Env))
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	if err := ctr.StartDetached(ctx); err != nil {
		ctr.Destroy(ctx)
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	s.mu.Lock()
	s.launches++
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.LaunchResult{
		ID:    ctr.ID(),
		State: protocol.ContainerRunning,
	})
}

// Handles a stop command.
//
// The response carries the container's state as observed before the stop,
// so clients can distinguish stopping a live container from a no-op on one
// that had already exited or was never created.
func (s *Server) handleStop(ctx context.Context, conn net.Conn, payload json.RawMessage) {
	req, err := protocol.DecodePayload[protocol.StopRequest](payload)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	ctr := s.runtime.Container(req.ID)

	state, err := ctr.Status(ctx)
	if err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}

	if err := ctr.Stop(ctx); err != nil {
		s.respond(conn, protocol.CmdError, &protocol.ErrorResult{Message: err.Error()})
		return
	}
	ctr.Destroy(ctx)

	s.respond(conn, protocol.CmdOK, &protocol.StopResult{
		ID:    req.ID,
		State: state,
	})
}

// Handles a status command.
func (s *Server) handleStatus(conn net.Conn) {
	s.mu.Lock()
	builds := s.builds
	launches := s.launches
	s.mu.Unlock()

	s.respond(conn, protocol.CmdOK, &protocol.StatusResult{
		Running:  true,
		Version:  internal.VersionString(),
		Pid:      os.Getpid(),
		Uptime:   humanize.RelTime(s.startedAt, time.Now(), "", ""),
		Builds:   builds,
		Launches: launches,
	})
}

// Handles a shutdown command.
func (s *Server) handleShutdown(conn net.Conn) {
	s.respond(conn, protocol.CmdOK, nil)
	slog.Info("shutdown requested")

	go func() {
		s.Stop()
	}()
}
