// Package api defines the core data types shared across the flow engine
//
// This package contains flow specifications, session and invitation records,
// per-step state, progress documents, channel markers, permission manifests,
// and the shared-namespace path layout used on the sync substrate
package api
