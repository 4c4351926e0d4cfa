// Wire protocol between the kiln CLI and the kilnd daemon.
//
// Messages are newline-delimited JSON envelopes carrying a command name and
// a command-specific payload. Each connection performs a single
// request-response exchange. The payload types in this package define the
// daemon's full command surface: building recipes, launching and stopping
// containers, and querying daemon status.
package protocol
