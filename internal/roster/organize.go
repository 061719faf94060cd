package roster

import (
	"sort"

	"github.com/google/uuid"
)

// Organized holds the display-ready grouping of agents and the deduplicated
// certification set per agent.
type Organized struct {
	// GroupedAgents maps a group name to its agents, sorted for display.
	GroupedAgents map[string][]Agent
	// GroupNames lists bucket names in display order: the canonical groups
	// first, then any on-demand buckets in order of first occurrence.
	GroupNames []string
	// CertsByAgent maps an agent to its unique post codes, sorted so that
	// identical inputs always produce identical output.
	CertsByAgent map[uuid.UUID][]string
}

// Organize buckets agents by group and collapses certification rows into a
// per-agent set of unique post codes. It is pure: identical inputs yield
// structurally identical output regardless of input order.
func Organize(agents []Agent, certs []Certification) Organized {
	grouped := make(map[string][]Agent, len(GroupOrder))
	names := make([]string, 0, len(GroupOrder))
	for _, name := range GroupOrder {
		grouped[name] = []Agent{}
		names = append(names, name)
	}

	for _, agent := range agents {
		name := agent.GroupName()
		if _, ok := grouped[name]; !ok {
			grouped[name] = []Agent{}
			names = append(names, name)
		}
		grouped[name] = append(grouped[name], agent)
	}

	// Roulement rows come before reserve, ties break on the display order
	// integer. Stable so equal keys keep their input order.
	for name := range grouped {
		bucket := grouped[name]
		sort.SliceStable(bucket, func(i, j int) bool {
			if bucket[i].Role != bucket[j].Role {
				return bucket[i].Role == RoleRoulement
			}
			return bucket[i].Order < bucket[j].Order
		})
	}

	certsByAgent := make(map[uuid.UUID][]string)
	seen := make(map[uuid.UUID]map[string]bool)
	for _, cert := range certs {
		if seen[cert.AgentID] == nil {
			seen[cert.AgentID] = make(map[string]bool)
		}
		if seen[cert.AgentID][cert.Post] {
			continue
		}
		seen[cert.AgentID][cert.Post] = true
		certsByAgent[cert.AgentID] = append(certsByAgent[cert.AgentID], cert.Post)
	}
	for id := range certsByAgent {
		sort.Strings(certsByAgent[id])
	}

	return Organized{GroupedAgents: grouped, GroupNames: names, CertsByAgent: certsByAgent}
}
