package api

import (
	"fmt"
	"hash/fnv"
	"maps"
)

type (
	// ChannelMarker is the connection record published for one directed
	// channel (from -> to). Both endpoints of an unordered pair derive the
	// same port and the same port map from the run ID and their positions in
	// the participant list, so the two directed markers agree without either
	// side observing the other's write first
	ChannelMarker struct {
		From  Identity         `json:"from"`
		To    Identity         `json:"to"`
		Port  int              `json:"port"`
		Ports map[Identity]int `json:"ports"`
	}

	// ChannelDiagnostics reports the observable state of one directed
	// channel for topology audit
	ChannelDiagnostics struct {
		ChannelID string   `json:"channel_id"`
		From      Identity `json:"from,omitempty"`
		To        Identity `json:"to,omitempty"`
		Port      int      `json:"port,omitempty"`
		Marker    bool     `json:"marker"`
		Accept    bool     `json:"accept"`
	}
)

// Port derivation is a pure function of (run ID, participant indices, party
// count). The run hash picks a base inside a fixed range, each party gets a
// listener band of PortStride above it, and pairs are laid out triangularly
// within a band so no two pairs collide
const (
	PortRangeBase = 23000
	PortRangeSpan = 20000
	PortStride    = 1000
)

// ChannelID names the directed channel directory for participant indices
// i -> j
func ChannelID(i, j int) string {
	return fmt.Sprintf("%d_to_%d", i, j)
}

// MeshChannels enumerates the directed channel index pairs of a full mesh
// over n participants, owner-major. A full mesh has exactly n*(n-1) entries
func MeshChannels(n int) [][2]int {
	pairs := make([][2]int, 0, n*(n-1))
	for i := range n {
		for j := range n {
			if i != j {
				pairs = append(pairs, [2]int{i, j})
			}
		}
	}
	return pairs
}

// BasePort derives the run-wide base port from the run identifier
func BasePort(runID RunID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(runID))
	return PortRangeBase + int(h.Sum32()%PortRangeSpan)
}

// pairOffset lays the unordered pairs of a P-party mesh out triangularly.
// It is symmetric in (i, j)
func pairOffset(i, j, parties int) int {
	lo, hi := min(i, j), max(i, j)
	return lo*parties - lo*(lo+1)/2 + (hi - lo)
}

// ChannelPort derives the shared rendezvous port for the unordered pair
// {i, j}. Both endpoints compute the same value independently
func ChannelPort(runID RunID, i, j, parties int) int {
	return BasePort(runID) + pairOffset(i, j, parties)
}

// PartyPort derives the per-party listener port for pid's side of the
// unordered pair {i, j}
func PartyPort(runID RunID, pid, i, j, parties int) int {
	return BasePort(runID) + pid*PortStride + pairOffset(i, j, parties)
}

// NewChannelMarker builds the directed marker for from -> to given the
// participant index order. The port map names both endpoints so either side
// can locate its listener without further coordination
func NewChannelMarker(
	runID RunID, ids []Identity, from, to int,
) *ChannelMarker {
	parties := max(len(ids), 2)
	return &ChannelMarker{
		From: ids[from],
		To:   ids[to],
		Port: ChannelPort(runID, from, to, parties),
		Ports: map[Identity]int{
			ids[from]: PartyPort(runID, from, from, to, parties),
			ids[to]:   PartyPort(runID, to, from, to, parties),
		},
	}
}

// Matches reports whether two directed markers for the same unordered pair
// carry an identical port and an identical port map. A mismatch indicates a
// derivation bug or tampering, never a transient delay
func (m *ChannelMarker) Matches(other *ChannelMarker) bool {
	if m == nil || other == nil {
		return false
	}
	return m.Port == other.Port && maps.Equal(m.Ports, other.Ports)
}
