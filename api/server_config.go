package api

import (
	"log/slog"
	"time"
)

// HTTPServerConfig configures the registry dashboard and JSON API listener.
// Built from command line flags by cmd/flags.ConfigureServer.
type HTTPServerConfig struct {
	// ListenAddr serves the dashboard, /ui form posts and /api routes.
	ListenAddr string

	// MetricsAddr serves Prometheus metrics on its own listener. Empty disables it.
	MetricsAddr string

	// EnablePprof mounts the profiler under /debug on ListenAddr.
	EnablePprof bool

	Log *slog.Logger

	// DrainDuration is how long Shutdown keeps serving with /readyz failing
	// before closing the listener.
	DrainDuration time.Duration

	// GracefulShutdownDuration bounds how long pending register and
	// deregister submissions may take once the listener is closed.
	GracefulShutdownDuration time.Duration

	// ReadTimeout covers reading a whole request, claim paste included.
	ReadTimeout time.Duration

	// WriteTimeout covers writing the response. Transaction submission to the
	// chain happens within it.
	WriteTimeout time.Duration
}
