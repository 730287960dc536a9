package domain

// MatchKind tells which rule filter produced a match.
type MatchKind string

const (
	// MatchKindName marks server name substring matches.
	MatchKindName MatchKind = "name"
	// MatchKindMap marks map equality matches.
	MatchKindMap MatchKind = "map"
)

// EventKind is the threshold crossing direction.
type EventKind string

const (
	// EventKindEntered marks players reaching the threshold.
	EventKindEntered EventKind = "entered"
	// EventKindExited marks players dropping below the threshold.
	EventKindExited EventKind = "exited"
)

// EmbedColor is the semantic embed color.
type EmbedColor string

const (
	// EmbedColorAlert is used for entered notifications.
	EmbedColorAlert EmbedColor = "alert"
	// EmbedColorWarning is used for exited notifications.
	EmbedColorWarning EmbedColor = "warning"
)

// EmbedField is one ordered embed field.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Embed is the structured notification body.
// Params: title, description, color, and ordered fields.
// Returns: platform-neutral rich message model.
type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       EmbedColor   `json:"color"`
	Fields      []EmbedField `json:"fields"`
}

// Event is one notification emitted by a threshold crossing.
// Params: rule identity, crossing kind, match key, destination, and payload.
// Returns: delivery request for the notifier.
type Event struct {
	RuleID   int64        `json:"rule_id"`
	GuildID  string       `json:"guild_id"`
	Kind     EventKind    `json:"kind"`
	Match    MatchKind    `json:"match"`
	MatchKey string       `json:"match_key"`
	Channel  string       `json:"channel"`
	Ping     string       `json:"ping,omitempty"`
	Server   ServerRecord `json:"server"`
	Embed    Embed        `json:"embed"`
}
