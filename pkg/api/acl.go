package api

import "github.com/goccy/go-yaml"

type (
	// Ruleset is the permission manifest written beside shared artifacts.
	// The sync substrate enforces it; the engine's contract is that the
	// manifest names exactly the declared identity set, no more, no fewer
	Ruleset struct {
		Rules []Rule `json:"rules" yaml:"rules"`
	}

	// Rule grants access to paths matching a pattern
	Rule struct {
		Pattern string `json:"pattern" yaml:"pattern"`
		Access  Access `json:"access" yaml:"access"`
	}

	// Access lists the identities holding each permission
	Access struct {
		Admin []Identity `json:"admin" yaml:"admin"`
		Read  []Identity `json:"read" yaml:"read"`
		Write []Identity `json:"write" yaml:"write"`
	}
)

// ManifestFileName is the permission manifest's name within a shared
// directory. The manifest itself stays readable by all session participants
// so the granted scope can be audited
const ManifestFileName = "syft.pub.yaml"

// NewShareManifest grants read access to the declared reader set, with the
// owner as administrator and sole writer
func NewShareManifest(owner Identity, readers []Identity) *Ruleset {
	return &Ruleset{
		Rules: []Rule{{
			Pattern: "**",
			Access: Access{
				Admin: []Identity{owner},
				Read:  readers,
				Write: []Identity{},
			},
		}},
	}
}

// NewChannelManifest restricts a channel directory to its two endpoints.
// Both ends may read and write; the publishing endpoint administers
func NewChannelManifest(owner, peer Identity) *Ruleset {
	return &Ruleset{
		Rules: []Rule{{
			Pattern: "**",
			Access: Access{
				Admin: []Identity{owner},
				Read:  []Identity{owner, peer},
				Write: []Identity{owner, peer},
			},
		}},
	}
}

// Marshal encodes the manifest as YAML
func (r *Ruleset) Marshal() ([]byte, error) {
	return yaml.Marshal(r)
}

// ParseRuleset decodes a permission manifest
func ParseRuleset(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Readers returns the union of read grants across all rules, in rule order
func (r *Ruleset) Readers() []Identity {
	seen := map[Identity]bool{}
	var out []Identity
	for _, rule := range r.Rules {
		for _, id := range rule.Access.Read {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}
