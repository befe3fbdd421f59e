package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/meshweave/engine/internal/substrate"
	"github.com/meshweave/engine/pkg/api"
)

// publishProgress uploads the local participant's progress document: the
// per-step status snapshot plus the append-only transition log. The engine
// never pushes commands to peers; this document is the only way a local
// transition becomes visible to them
func (e *Engine) publishProgress(
	ctx context.Context, ss *sessionState,
) error {
	// pubMu is held across snapshot build and upload. Concurrent run/share
	// tasks publish independently; without serialization an older snapshot
	// could land after a newer one and remain the last write
	ss.pubMu.Lock()
	defer ss.pubMu.Unlock()

	ss.mu.Lock()
	doc := &api.ProgressDocument{
		Owner:     e.identity,
		Role:      ss.session.RoleOf(e.identity),
		RunID:     ss.session.RunID,
		Steps:     make(map[api.StepID]*api.ProgressEntry, len(ss.steps)),
		UpdatedAt: time.Now().UTC(),
	}
	for id, st := range ss.steps {
		entry := &api.ProgressEntry{
			Status:    st.Status,
			OutputDir: st.OutputDir,
		}
		if !st.CompletedAt.IsZero() {
			entry.Timestamp = st.CompletedAt.Unix()
		} else if !st.StartedAt.IsZero() {
			entry.Timestamp = st.StartedAt.Unix()
		}
		doc.Steps[id] = entry
	}
	logged := make([]api.ProgressEvent, len(ss.logged))
	copy(logged, ss.logged)
	root := e.runRoot(ss.session, e.identity)
	ss.mu.Unlock()

	state, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	logData, err := json.Marshal(logged)
	if err != nil {
		return err
	}

	if err := e.ensureProgressManifest(ctx, ss.session, root); err != nil {
		return err
	}
	if err := e.sub.WriteAll(
		ctx, api.ProgressStateKey(root), state,
	); err != nil {
		return err
	}
	return e.sub.WriteAll(ctx, api.ProgressLogKey(root), logData)
}

// ensureProgressManifest grants every session participant read access to
// the progress directory; written once, never widened or narrowed after
func (e *Engine) ensureProgressManifest(
	ctx context.Context, session *api.Session, root string,
) error {
	key := api.ProgressManifestKey(root)
	ok, err := e.sub.Exists(ctx, key)
	if err != nil || ok {
		return err
	}
	manifest := api.NewShareManifest(e.identity, session.Identities())
	data, err := manifest.Marshal()
	if err != nil {
		return err
	}
	return e.sub.WriteAll(ctx, key, data)
}

// Aggregate reconstructs the whole-session progress view by pulling every
// participant's progress document and merging per (participant, step) by
// the furthest status observed. A missing or stale document means "not yet
// known", never failure
func (e *Engine) Aggregate(
	ctx context.Context, sessionID api.SessionID,
) (*api.SessionProgress, error) {
	ss, err := e.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	session := ss.session

	progress := &api.SessionProgress{
		SessionID:    session.ID,
		RunID:        session.RunID,
		Participants: map[api.Identity]*api.ParticipantProgress{},
	}

	for _, p := range session.Participants {
		pp := &api.ParticipantProgress{
			Identity: p.Identity,
			Role:     p.Role,
			Steps:    map[api.StepID]*api.ProgressEntry{},
		}
		progress.Participants[p.Identity] = pp

		root := e.runRoot(session, p.Identity)
		data, err := e.sub.ReadAll(ctx, api.ProgressStateKey(root))
		if err != nil {
			if errors.Is(err, substrate.ErrNotFound) {
				continue
			}
			return nil, err
		}
		mergeProgressDocument(pp, data)
	}

	// The local in-memory state is authoritative for this participant and
	// may be ahead of its last published snapshot
	ss.mu.Lock()
	local := progress.Participants[e.identity]
	for id, st := range ss.steps {
		entry := &api.ProgressEntry{
			Status:    st.Status,
			OutputDir: st.OutputDir,
		}
		if !st.CompletedAt.IsZero() {
			entry.Timestamp = st.CompletedAt.Unix()
		}
		if entry.Better(local.Steps[id]) {
			local.Steps[id] = entry
		}
	}
	ss.mu.Unlock()

	return progress, nil
}

// mergeProgressDocument folds one peer's published snapshot into the view.
// Documents are parsed leniently: peers may run older engines whose status
// vocabulary differs, so raw strings are normalized and unknown fields are
// ignored
func mergeProgressDocument(pp *api.ParticipantProgress, data []byte) {
	steps := gjson.GetBytes(data, "steps")
	if !steps.Exists() {
		return
	}
	steps.ForEach(func(key, value gjson.Result) bool {
		id := api.StepID(key.String())
		entry := &api.ProgressEntry{
			Status:    api.NormalizeStatus(value.Get("status").String()),
			Timestamp: value.Get("timestamp").Int(),
			OutputDir: value.Get("output_dir").String(),
		}
		if entry.Better(pp.Steps[id]) {
			pp.Steps[id] = entry
		}
		return true
	})
}

// runRoot returns a participant's run root on the substrate
func (e *Engine) runRoot(session *api.Session, owner api.Identity) string {
	return api.RunRoot(owner, session.FlowName, session.RunID)
}

// ProgressLog returns a peer's published append-only progress log
func (e *Engine) ProgressLog(
	ctx context.Context, sessionID api.SessionID, owner api.Identity,
) ([]api.ProgressEvent, error) {
	ss, err := e.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if ss.session.ParticipantIndex(owner) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, owner)
	}
	data, err := e.sub.ReadAll(
		ctx, api.ProgressLogKey(e.runRoot(ss.session, owner)),
	)
	if err != nil {
		return nil, err
	}
	var events []api.ProgressEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, err
	}
	return events, nil
}
