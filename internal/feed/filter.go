package feed

import (
	"strings"

	"bsm/internal/domain"
)

// Query narrows server list for the listservers command.
// Empty string fields are not applied.
type Query struct {
	PlayersRequired int
	Name            string
	Map             string
	Region          string
	Gamemode        string
}

// Filter keeps servers matching every set criterion, preserving feed order.
// Params: feed snapshot and query.
// Returns: matching subset.
func Filter(servers []domain.ServerRecord, query Query) []domain.ServerRecord {
	name := strings.ToLower(strings.TrimSpace(query.Name))
	matches := make([]domain.ServerRecord, 0)
	for _, server := range servers {
		if server.Players < query.PlayersRequired {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(server.Name), name) {
			continue
		}
		if !equalFoldIfSet(query.Map, server.Map) {
			continue
		}
		if !equalFoldIfSet(query.Region, server.Region) {
			continue
		}
		if !equalFoldIfSet(query.Gamemode, server.Gamemode) {
			continue
		}
		matches = append(matches, server)
	}
	return matches
}

func equalFoldIfSet(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, got)
}
