package api

import (
	"regexp"
	"strings"
)

type (
	// SessionID uniquely identifies one collaborative flow session
	SessionID string

	// RunID identifies a single run of a flow within a session
	RunID string

	// StepID is a unique identifier for a step within a flow
	StepID string

	// Identity is a participant's datasite identity (an email address)
	Identity string

	// Role is the participant's role within a session (e.g. "aggregator")
	Role string

	// GroupName names a set of datasites declared by a flow
	GroupName string

	// SessionStep identifies a step within a session
	SessionStep struct {
		SessionID SessionID
		StepID    StepID
	}
)

// InvalidIDChars matches characters not permitted in flow and step IDs. Valid
// characters are: letters, digits, underscore, dot, hyphen, plus, space
var InvalidIDChars = regexp.MustCompile(`[^a-zA-Z0-9_.\-+ ]`)

// SanitizeID lowercases an ID, removes invalid characters, replaces spaces
// with hyphens, and trims leading and trailing hyphens
func SanitizeID[T ~string](id T) T {
	lower := strings.ToLower(string(id))
	sanitized := InvalidIDChars.ReplaceAllString(lower, "")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	return T(strings.Trim(sanitized, "-"))
}
