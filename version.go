// Package engine identifies the meshweave engine build
package engine

const (
	// Name is the service name reported in logs and health responses
	Name = "meshweave-engine"

	// Version is the engine build version
	Version = "0.1.0"
)
