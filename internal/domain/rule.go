package domain

import (
	"errors"
	"fmt"
	"strings"
)

// AlertRule is one guild-owned subscription to server population changes.
// Params: filters, threshold, delivery target, and below-threshold toggle.
// Returns: rule record shared by store, engine, and command layers.
type AlertRule struct {
	ID                  int64  `json:"id"`
	GuildID             string `json:"guild_id"`
	NameFilter          string `json:"name_filter,omitempty"`
	MapFilter           string `json:"map_filter,omitempty"`
	MinPlayers          *int   `json:"min_players,omitempty"`
	TargetChannel       string `json:"target_channel"`
	PingTarget          string `json:"ping_target,omitempty"`
	BelowWarningEnabled bool   `json:"below_warning_enabled"`
}

// HasThreshold reports whether rule carries a configured player threshold.
// Params: none.
// Returns: true when MinPlayers is set.
func (r AlertRule) HasThreshold() bool {
	return r.MinPlayers != nil
}

// Threshold returns configured player threshold.
// Params: none.
// Returns: threshold value and presence flag.
func (r AlertRule) Threshold() (int, bool) {
	if r.MinPlayers == nil {
		return 0, false
	}
	return *r.MinPlayers, true
}

// MatchesName reports case-insensitive substring match of the name filter.
// Params: live server display name.
// Returns: false when the filter is unset.
func (r AlertRule) MatchesName(serverName string) bool {
	if r.NameFilter == "" {
		return false
	}
	return strings.Contains(strings.ToLower(serverName), strings.ToLower(r.NameFilter))
}

// MatchesMap reports case-insensitive equality of the map filter.
// Params: live server map name.
// Returns: false when the filter is unset.
func (r AlertRule) MatchesMap(mapName string) bool {
	if r.MapFilter == "" {
		return false
	}
	return strings.EqualFold(r.MapFilter, mapName)
}

// Validate checks rule fields accepted by stores.
// Params: none.
// Returns: validation error for missing guild/channel or negative threshold.
func (r AlertRule) Validate() error {
	if strings.TrimSpace(r.GuildID) == "" {
		return errors.New("guild id is required")
	}
	if strings.TrimSpace(r.TargetChannel) == "" {
		return errors.New("target channel is required")
	}
	if r.MinPlayers != nil && *r.MinPlayers < 0 {
		return fmt.Errorf("min players must be >=0, got %d", *r.MinPlayers)
	}
	return nil
}

// RulePatch is a partial rule update; nil fields keep stored values.
type RulePatch struct {
	NameFilter          *string `json:"name_filter,omitempty"`
	MapFilter           *string `json:"map_filter,omitempty"`
	MinPlayers          *int    `json:"min_players,omitempty"`
	TargetChannel       *string `json:"target_channel,omitempty"`
	PingTarget          *string `json:"ping_target,omitempty"`
	BelowWarningEnabled *bool   `json:"below_warning_enabled,omitempty"`
}

// IsEmpty reports whether patch changes nothing.
// Params: none.
// Returns: true when every field is nil.
func (p RulePatch) IsEmpty() bool {
	return p.NameFilter == nil &&
		p.MapFilter == nil &&
		p.MinPlayers == nil &&
		p.TargetChannel == nil &&
		p.PingTarget == nil &&
		p.BelowWarningEnabled == nil
}

// Apply returns rule copy with patch fields applied.
// Params: current stored rule.
// Returns: updated rule; ID and guild are never changed.
func (p RulePatch) Apply(rule AlertRule) AlertRule {
	if p.NameFilter != nil {
		rule.NameFilter = *p.NameFilter
	}
	if p.MapFilter != nil {
		rule.MapFilter = *p.MapFilter
	}
	if p.MinPlayers != nil {
		value := *p.MinPlayers
		rule.MinPlayers = &value
	}
	if p.TargetChannel != nil {
		rule.TargetChannel = *p.TargetChannel
	}
	if p.PingTarget != nil {
		rule.PingTarget = *p.PingTarget
	}
	if p.BelowWarningEnabled != nil {
		rule.BelowWarningEnabled = *p.BelowWarningEnabled
	}
	return rule
}

// Fields lists patched field names in stable order.
// Params: none.
// Returns: snake_case names of set fields.
func (p RulePatch) Fields() []string {
	fields := make([]string, 0, 6)
	if p.NameFilter != nil {
		fields = append(fields, "name_filter")
	}
	if p.MapFilter != nil {
		fields = append(fields, "map_filter")
	}
	if p.MinPlayers != nil {
		fields = append(fields, "min_players")
	}
	if p.TargetChannel != nil {
		fields = append(fields, "target_channel")
	}
	if p.PingTarget != nil {
		fields = append(fields, "ping_target")
	}
	if p.BelowWarningEnabled != nil {
		fields = append(fields, "below_warning_enabled")
	}
	return fields
}

// IntPtr returns pointer to a copy of value.
func IntPtr(value int) *int {
	return &value
}

// StringPtr returns pointer to a copy of value.
func StringPtr(value string) *string {
	return &value
}

// BoolPtr returns pointer to a copy of value.
func BoolPtr(value bool) *bool {
	return &value
}
