package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meshweave/engine/pkg/api"
	"github.com/meshweave/engine/pkg/log"
)

// Invite creates a new session as the organizer: it freezes the flow spec,
// generates the session and run identifiers, and performs the same local
// setup that acceptors perform on join. The returned invitation embeds the
// full spec and participant list by value so every acceptor reconstructs an
// identical session
func (e *Engine) Invite(
	ctx context.Context, spec *api.FlowSpec, participants []api.Participant,
) (*api.Invitation, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	inv := &api.Invitation{
		FlowName:     spec.Name,
		SessionID:    api.SessionID(uuid.NewString()),
		RunID:        api.RunID(uuid.NewString()),
		Participants: participants,
		FlowSpec:     spec,
	}
	if _, err := e.Join(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Join binds the invitation's embedded spec snapshot and run identifier to
// a local session. Join is idempotent: joining the same invitation twice
// yields the identical session, and a second join never disturbs local
// step state
func (e *Engine) Join(
	ctx context.Context, inv *api.Invitation,
) (*api.Session, error) {
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	// A misdelivered invitation is ordinary input; an engine must never
	// bind a session it is not a member of
	if !inv.Includes(e.identity) {
		return nil, fmt.Errorf("%w: %s", ErrNotParticipant, e.identity)
	}

	if existing, ok := e.sessions.Load(inv.SessionID); ok {
		ss := existing.(*sessionState)
		if ss.session.RunID != inv.RunID {
			return nil, fmt.Errorf(
				"session %s already joined with run %s",
				inv.SessionID, ss.session.RunID,
			)
		}
		return ss.session, nil
	}

	session := &api.Session{
		ID:           inv.SessionID,
		RunID:        inv.RunID,
		FlowName:     inv.FlowName,
		Participants: inv.Participants,
		Spec:         inv.FlowSpec,
		CreatedAt:    time.Now().UTC(),
	}

	ss := &sessionState{
		session: session,
		steps:   make(map[api.StepID]*api.StepState, len(inv.FlowSpec.Steps)),
		locks:   map[api.StepID]*sync.Mutex{},
	}
	for _, step := range inv.FlowSpec.Steps {
		ss.steps[step.ID] = &api.StepState{
			StepID:   step.ID,
			Status:   api.StepWaitingForDependencies,
			MyAction: session.IsTarget(step, e.identity),
		}
	}
	ss.logged = append(ss.logged, api.ProgressEvent{
		Event:     "joined",
		Role:      session.RoleOf(e.identity),
		Timestamp: session.CreatedAt,
	})

	actual, loaded := e.sessions.LoadOrStore(inv.SessionID, ss)
	if loaded {
		return actual.(*sessionState).session, nil
	}

	if err := e.publishProgress(ctx, ss); err != nil {
		return nil, err
	}
	if session.Spec.Mesh != nil {
		if err := e.publishChannels(ctx, session); err != nil {
			return nil, err
		}
	}
	if err := e.Evaluate(ctx, session.ID); err != nil {
		return nil, err
	}

	slog.Info("Joined session",
		log.SessionID(session.ID),
		log.RunID(session.RunID),
		log.Participant(e.identity))
	return session, nil
}

// GetState returns the session and the local per-step status list in flow
// step order
func (e *Engine) GetState(
	sessionID api.SessionID,
) (*api.Session, []*api.StepState, error) {
	ss, err := e.getSession(sessionID)
	if err != nil {
		return nil, nil, err
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	states := make([]*api.StepState, 0, len(ss.steps))
	for _, step := range ss.session.Spec.Steps {
		if st, ok := ss.steps[step.ID]; ok {
			copied := *st
			states = append(states, &copied)
		}
	}
	return ss.session, states, nil
}

// Sessions returns the IDs of all joined sessions
func (e *Engine) Sessions() []api.SessionID {
	var ids []api.SessionID
	e.sessions.Range(func(key, _ any) bool {
		ids = append(ids, key.(api.SessionID))
		return true
	})
	return ids
}
