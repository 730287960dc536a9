package domain

import "fmt"

// ServerRecord is one live server row from the public server list.
// Params: display attributes and player counters.
// Returns: transient record refreshed every poll cycle.
type ServerRecord struct {
	Name       string `json:"Name"`
	Map        string `json:"Map"`
	Gamemode   string `json:"Gamemode"`
	Region     string `json:"Region"`
	Players    int    `json:"Players"`
	MaxPlayers int    `json:"MaxPlayers"`
}

// Validate checks counters are non-negative.
// Params: none.
// Returns: validation error with server name.
func (s ServerRecord) Validate() error {
	if s.Players < 0 {
		return fmt.Errorf("server %q has negative players %d", s.Name, s.Players)
	}
	if s.MaxPlayers < 0 {
		return fmt.Errorf("server %q has negative max players %d", s.Name, s.MaxPlayers)
	}
	return nil
}

// PlayersLabel renders "players/max" counter.
// Params: none.
// Returns: formatted population string.
func (s ServerRecord) PlayersLabel() string {
	return fmt.Sprintf("%d/%d", s.Players, s.MaxPlayers)
}
