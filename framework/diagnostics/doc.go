// Package diagnostics exposes manager readiness over HTTP.
package diagnostics
