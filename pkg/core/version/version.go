// ============================================================================
// mdwterm - Terminal Command Routing
// ============================================================================
//
// Package:     version
// Description: Central version management for the router and its transports
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// Version constants. Framework is the routing pipeline, Protocol the wire
// envelope shared by all transports.
const (
	Framework = "1.0.0"
	Protocol  = "1.0.0"

	// Transport versions
	TCP     = "1.0.0"
	UDP     = "1.0.0"
	HTTP    = "1.0.0"
	GRPC    = "1.0.0"
	Console = "1.0.0"
)

// Build information, set with -ldflags "-X".
var (
	Commit    = "unknown"
	BuildDate = "unknown"
)

// TransportVersion returns the version for a given transport name
func TransportVersion(name string) string {
	switch name {
	case "tcp":
		return TCP
	case "udp":
		return UDP
	case "http":
		return HTTP
	case "grpc":
		return GRPC
	case "console":
		return Console
	default:
		return Framework
	}
}

// String returns a one-line build description
func String() string {
	return fmt.Sprintf("mdwterm %s (protocol %s, commit %s, built %s, %s)",
		Framework, Protocol, Commit, BuildDate, runtime.Version())
}
