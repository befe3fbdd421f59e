package api

import (
	"errors"
	"slices"
	"time"
)

type (
	// Participant pairs a datasite identity with its role in a session
	Participant struct {
		Identity Identity `json:"identity"`
		Role     Role     `json:"role"`
	}

	// Invitation carries everything a participant needs to join a session.
	// The flow spec and participant list are embedded by value, never by
	// reference, so every acceptor observes an identical snapshot without a
	// round-trip to the inviter
	Invitation struct {
		FlowName     string        `json:"flow_name"`
		SessionID    SessionID     `json:"session_id"`
		RunID        RunID         `json:"run_id"`
		Participants []Participant `json:"participants"`
		FlowSpec     *FlowSpec     `json:"flow_spec"`
	}

	// Session binds a frozen FlowSpec snapshot and a run identifier to an
	// ordered participant list. The participant order is significant: mesh
	// channel indices are derived from positions in this list
	Session struct {
		ID           SessionID     `json:"session_id"`
		RunID        RunID         `json:"run_id"`
		FlowName     string        `json:"flow_name"`
		Participants []Participant `json:"participants"`
		Spec         *FlowSpec     `json:"flow_spec"`
		CreatedAt    time.Time     `json:"created_at"`
	}
)

var (
	ErrInvitationNoSession      = errors.New("invitation has no session ID")
	ErrInvitationNoRun          = errors.New("invitation has no run ID")
	ErrInvitationNoSpec         = errors.New("invitation has no flow spec")
	ErrInvitationNoParticipants = errors.New("invitation has no participants")
)

// Validate checks that the invitation embeds everything required to
// reconstruct an identical session on any participant
func (inv *Invitation) Validate() error {
	if inv.SessionID == "" {
		return ErrInvitationNoSession
	}
	if inv.RunID == "" {
		return ErrInvitationNoRun
	}
	if inv.FlowSpec == nil {
		return ErrInvitationNoSpec
	}
	if len(inv.Participants) == 0 {
		return ErrInvitationNoParticipants
	}
	return inv.FlowSpec.Validate()
}

// Includes reports whether an identity appears in the invitation's
// participant list
func (inv *Invitation) Includes(id Identity) bool {
	return slices.ContainsFunc(inv.Participants, func(p Participant) bool {
		return p.Identity == id
	})
}

// Identities returns the participant identities in session order
func (s *Session) Identities() []Identity {
	ids := make([]Identity, len(s.Participants))
	for i, p := range s.Participants {
		ids[i] = p.Identity
	}
	return ids
}

// ParticipantIndex returns the position of an identity in the ordered
// participant list, or -1 when the identity is not a session member
func (s *Session) ParticipantIndex(id Identity) int {
	return slices.IndexFunc(s.Participants, func(p Participant) bool {
		return p.Identity == id
	})
}

// RoleOf returns the role recorded for an identity
func (s *Session) RoleOf(id Identity) Role {
	if i := s.ParticipantIndex(id); i >= 0 {
		return s.Participants[i].Role
	}
	return ""
}

// ResolveTargets expands a step's runs_on entries to concrete identities.
// Entries may be direct identities, flow group names, or TargetAll. The
// result preserves session participant order so every participant derives
// the same target list
func (s *Session) ResolveTargets(step *Step) []Identity {
	if step.Barrier != nil && len(step.RunsOn) == 0 {
		return s.Identities()
	}
	members := map[Identity]bool{}
	for _, target := range step.RunsOn {
		if target == TargetAll {
			for _, p := range s.Participants {
				members[p.Identity] = true
			}
			continue
		}
		if group, ok := s.Spec.Groups[GroupName(target)]; ok {
			for _, m := range group {
				members[Identity(m)] = true
			}
			continue
		}
		members[Identity(target)] = true
	}

	var out []Identity
	for _, p := range s.Participants {
		if members[p.Identity] {
			out = append(out, p.Identity)
		}
	}
	return out
}

// ResolveReaders expands a share declaration to the exact identity set that
// a permission manifest must name, in session participant order
func (s *Session) ResolveReaders(share *ShareSpec) []Identity {
	if share == nil {
		return nil
	}
	members := map[Identity]bool{}
	for _, target := range share.To {
		if target == TargetAll {
			for _, p := range s.Participants {
				members[p.Identity] = true
			}
			continue
		}
		if group, ok := s.Spec.Groups[GroupName(target)]; ok {
			for _, m := range group {
				members[Identity(m)] = true
			}
			continue
		}
		members[Identity(target)] = true
	}

	var out []Identity
	for _, p := range s.Participants {
		if members[p.Identity] {
			out = append(out, p.Identity)
		}
	}
	return out
}

// IsTarget reports whether the identity belongs to the step's resolved
// target group
func (s *Session) IsTarget(step *Step, id Identity) bool {
	return slices.Contains(s.ResolveTargets(step), id)
}
