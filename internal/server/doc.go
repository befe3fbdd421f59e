// Package server implements the local HTTP control surface
//
// This package provides REST endpoints for joining sessions, driving step
// actions, inspecting merged progress, auditing the channel mesh, and a
// WebSocket progress stream
package server
