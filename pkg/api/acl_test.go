package api_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meshweave/engine/pkg/api"
)

func TestShareManifestExactReaders(t *testing.T) {
	owner := api.Identity("carol@example.com")
	readers := []api.Identity{"alice@example.com", "bob@example.com"}

	rs := api.NewShareManifest(owner, readers)
	assert.Len(t, rs.Rules, 1)

	rule := rs.Rules[0]
	assert.Equal(t, "**", rule.Pattern)
	assert.Equal(t, []api.Identity{owner}, rule.Access.Admin)
	assert.Equal(t, readers, rule.Access.Read)
	assert.Empty(t, rule.Access.Write)
	assert.NotNil(t, rule.Access.Write)
}

func TestChannelManifestBothEndpoints(t *testing.T) {
	owner := api.Identity("alice@example.com")
	peer := api.Identity("bob@example.com")

	rs := api.NewChannelManifest(owner, peer)
	rule := rs.Rules[0]
	assert.Equal(t, []api.Identity{owner}, rule.Access.Admin)
	assert.ElementsMatch(t, []api.Identity{owner, peer}, rule.Access.Read)
	assert.ElementsMatch(t, []api.Identity{owner, peer}, rule.Access.Write)
}

func TestManifestRoundTrip(t *testing.T) {
	rs := api.NewShareManifest(
		"carol@example.com",
		[]api.Identity{"alice@example.com", "bob@example.com"},
	)
	data, err := rs.Marshal()
	assert.NoError(t, err)

	parsed, err := api.ParseRuleset(data)
	assert.NoError(t, err)
	assert.Equal(t, rs.Rules, parsed.Rules)
	assert.Equal(t,
		[]api.Identity{"alice@example.com", "bob@example.com"},
		parsed.Readers())
}

func TestParseRulesetRejectsGarbage(t *testing.T) {
	_, err := api.ParseRuleset([]byte("rules: [not a mapping"))
	assert.Error(t, err)
}
