package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meshweave/engine/pkg/api"
	"github.com/meshweave/engine/pkg/log"
)

// publishChannels writes the local participant's side of the secure-channel
// mesh: one directed channel directory per peer, each holding the derived
// connection marker, the accept flag, and a two-party manifest. Ports are a
// pure function of the run ID and participant positions, so every
// participant publishes immediately without waiting on anyone
func (e *Engine) publishChannels(
	ctx context.Context, session *api.Session,
) error {
	ids := session.Identities()
	if len(ids) < 2 {
		return nil
	}
	i := session.ParticipantIndex(e.identity)
	if i < 0 {
		return nil
	}
	root := e.runRoot(session, e.identity)

	manifest, err := api.NewShareManifest(e.identity, ids).Marshal()
	if err != nil {
		return err
	}
	if err := e.sub.WriteAll(
		ctx, api.MPCManifestKey(root), manifest,
	); err != nil {
		return err
	}

	for j, peer := range ids {
		if j == i {
			continue
		}
		channelID := api.ChannelID(i, j)
		marker, err := json.Marshal(
			api.NewChannelMarker(session.RunID, ids, i, j),
		)
		if err != nil {
			return err
		}
		grant, err := api.NewChannelManifest(e.identity, peer).Marshal()
		if err != nil {
			return err
		}

		if err := e.sub.WriteAll(
			ctx, api.ChannelManifestKey(root, channelID), grant,
		); err != nil {
			return err
		}
		if err := e.sub.WriteAll(
			ctx, api.MarkerKey(root, channelID), marker,
		); err != nil {
			return err
		}
		if err := e.sub.WriteAll(
			ctx, api.AcceptKey(root, channelID), []byte(api.AcceptValue),
		); err != nil {
			return err
		}
	}

	slog.Info("Published channel topology",
		log.SessionID(session.ID),
		log.RunID(session.RunID),
		log.Participant(e.identity))
	return nil
}

// verifyMesh blocks until every directed channel of the full mesh is
// observable and accepted, then cross-checks each unordered pair: the two
// directed markers must carry an identical port and port map, and both must
// equal the locally derived values. A missing marker is a sync timeout; a
// present-but-disagreeing marker is a topology inconsistency, which is
// fatal rather than retried
func (e *Engine) verifyMesh(
	ctx context.Context, session *api.Session,
) error {
	ids := session.Identities()
	if len(ids) < 2 {
		return nil
	}

	markers := map[string]*api.ChannelMarker{}
	for _, ch := range api.MeshChannels(len(ids)) {
		i, j := ch[0], ch[1]
		owner := ids[i]
		root := e.runRoot(session, owner)
		channelID := api.ChannelID(i, j)
		data, err := e.waiter.Wait(ctx, api.MarkerKey(root, channelID))
		if err != nil {
			return err
		}
		accept, err := e.waiter.Wait(ctx, api.AcceptKey(root, channelID))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(accept)) != api.AcceptValue {
			return fmt.Errorf(
				"%w: channel %s not accepted by %s",
				ErrTopologyMismatch, channelID, owner,
			)
		}
		var marker api.ChannelMarker
		if err := json.Unmarshal(data, &marker); err != nil {
			return fmt.Errorf(
				"%w: unreadable marker for %s: %v",
				ErrTopologyMismatch, channelID, err,
			)
		}
		markers[channelID] = &marker
	}

	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			forward := markers[api.ChannelID(i, j)]
			reverse := markers[api.ChannelID(j, i)]
			expected := api.NewChannelMarker(session.RunID, ids, i, j)
			if !forward.Matches(reverse) || !forward.Matches(expected) ||
				forward.From != ids[i] || forward.To != ids[j] ||
				reverse.From != ids[j] || reverse.To != ids[i] {
				return &TopologyError{
					ChannelID: api.ChannelID(i, j),
					Forward:   forward,
					Reverse:   reverse,
				}
			}
		}
	}

	slog.Info("Channel mesh verified",
		log.SessionID(session.ID),
		log.Participant(e.identity))
	return nil
}

// Diagnostics snapshots the observable state of every directed channel in
// the mesh without blocking on replication. Channels whose artifacts have
// not arrived yet report marker/accept as false
func (e *Engine) Diagnostics(
	ctx context.Context, sessionID api.SessionID,
) ([]api.ChannelDiagnostics, error) {
	ss, err := e.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	session := ss.session
	ids := session.Identities()

	var all []api.ChannelDiagnostics
	for _, ch := range api.MeshChannels(len(ids)) {
		i, j := ch[0], ch[1]
		root := e.runRoot(session, ids[i])
		channelID := api.ChannelID(i, j)
		diag := api.ChannelDiagnostics{
			ChannelID: channelID,
			From:      ids[i],
			To:        ids[j],
		}

		data, err := e.sub.ReadAll(ctx, api.MarkerKey(root, channelID))
		if err == nil {
			diag.Marker = true
			var marker api.ChannelMarker
			if json.Unmarshal(data, &marker) == nil {
				diag.Port = marker.Port
			}
		}
		ok, err := e.sub.Exists(ctx, api.AcceptKey(root, channelID))
		if err == nil && ok {
			diag.Accept = true
		}
		all = append(all, diag)
	}
	return all, nil
}
