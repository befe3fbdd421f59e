package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meshweave/engine/pkg/api"
)

func TestBasePortRange(t *testing.T) {
	for _, runID := range []api.RunID{"run-a", "run-b", "0", ""} {
		base := api.BasePort(runID)
		assert.GreaterOrEqual(t, base, api.PortRangeBase)
		assert.Less(t, base, api.PortRangeBase+api.PortRangeSpan)
	}
	// Same run derives the same base on every participant
	assert.Equal(t, api.BasePort("run-a"), api.BasePort("run-a"))
}

func TestChannelPortSymmetry(t *testing.T) {
	const parties = 4
	runID := api.RunID("f3b2c1")
	for i := range parties {
		for j := range parties {
			if i == j {
				continue
			}
			assert.Equal(t,
				api.ChannelPort(runID, i, j, parties),
				api.ChannelPort(runID, j, i, parties),
				"pair {%d,%d}", i, j)
		}
	}
}

func TestPairOffsetsDistinct(t *testing.T) {
	const parties = 5
	runID := api.RunID("collision-check")
	seen := map[int]string{}
	for i := range parties {
		for j := i + 1; j < parties; j++ {
			port := api.ChannelPort(runID, i, j, parties)
			prev, dup := seen[port]
			assert.False(t, dup,
				"pair {%d,%d} collides with %s on port %d", i, j, prev, port)
			seen[port] = api.ChannelID(i, j)
		}
	}
}

func TestPartyPortsWithinStride(t *testing.T) {
	const parties = 4
	runID := api.RunID("stride-check")
	base := api.BasePort(runID)
	for pid := range parties {
		for i := range parties {
			for j := i + 1; j < parties; j++ {
				port := api.PartyPort(runID, pid, i, j, parties)
				assert.GreaterOrEqual(t, port, base+pid*api.PortStride)
				assert.Less(t, port, base+(pid+1)*api.PortStride)
			}
		}
	}
}

func TestMarkersAgreeAcrossDirections(t *testing.T) {
	ids := []api.Identity{
		"alice@example.com", "bob@example.com", "carol@example.com",
	}
	runID := api.RunID("agreement")
	for i := range ids {
		for j := range ids {
			if i == j {
				continue
			}
			forward := api.NewChannelMarker(runID, ids, i, j)
			reverse := api.NewChannelMarker(runID, ids, j, i)
			assert.True(t, forward.Matches(reverse))
			assert.Equal(t, ids[i], forward.From)
			assert.Equal(t, ids[j], forward.To)
			assert.Len(t, forward.Ports, 2)
		}
	}
}

func TestMarkerMismatchDetected(t *testing.T) {
	ids := []api.Identity{"alice@example.com", "bob@example.com"}
	forward := api.NewChannelMarker("run", ids, 0, 1)
	reverse := api.NewChannelMarker("run", ids, 1, 0)

	reverse.Port++
	assert.False(t, forward.Matches(reverse))

	reverse.Port--
	reverse.Ports[ids[0]]++
	assert.False(t, forward.Matches(reverse))

	assert.False(t, forward.Matches(nil))
}

func TestChannelIDNaming(t *testing.T) {
	assert.Equal(t, "0_to_1", api.ChannelID(0, 1))
	assert.Equal(t, "2_to_0", api.ChannelID(2, 0))
}

func TestMeshChannels(t *testing.T) {
	const parties = 4
	channels := api.MeshChannels(parties)
	assert.Len(t, channels, parties*(parties-1))

	seen := map[string]bool{}
	for _, ch := range channels {
		assert.NotEqual(t, ch[0], ch[1])
		seen[api.ChannelID(ch[0], ch[1])] = true
	}
	assert.Len(t, seen, parties*(parties-1))

	assert.Empty(t, api.MeshChannels(1))
}
