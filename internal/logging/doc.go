// Terminal logging for the daemon.
//
// The package provides a [Handler] for log/slog that renders compact,
// optionally colored lines to a stream. The handler starts out buffering:
// records logged before flag parsing are held in memory and written by
// [Handler.Flush] once the final level, verbosity, and stream are known.
package logging
