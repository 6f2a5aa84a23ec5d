// Package metrics owns the Prometheus collectors exported by the daemon.
//
// A Recorder wraps a private registry so tests can construct independent
// instances without colliding on the global default registerer. A nil
// *Recorder is valid and records nothing.
package metrics
