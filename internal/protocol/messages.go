package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	User            string `json:"user"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	User            string     `json:"user"`
	WorldID         string     `json:"world_id"`
	Catalog         CatalogRef `json:"catalog"`
	Elevated        bool       `json:"elevated,omitempty"`
}

type CatalogRef struct {
	Digest      string `json:"digest"`
	Count       int    `json:"count"`
	StatsDigest string `json:"stats_digest,omitempty"`
	StatCount   int    `json:"stat_count"`
}

// OPEN (client -> server)
type OpenMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Screen          string `json:"screen"`
}

// EVENT (client -> server) is one interaction with the open screen.
type EventMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Action          string `json:"action"`
	Tab             string `json:"tab,omitempty"`
	Page            int    `json:"page,omitempty"`
	Slot            int    `json:"slot,omitempty"`
	Shift           bool   `json:"shift,omitempty"`
}

// STAT (client -> server) manages custom statistics.
type StatMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id,omitempty"`
	Op              string `json:"op"`
	Key             string `json:"key,omitempty"`
	Name            string `json:"name,omitempty"`
	Target          string `json:"target,omitempty"`
	Value           int    `json:"value,omitempty"`
	Scope           string `json:"scope,omitempty"`
	Entry           string `json:"entry,omitempty"`
}

// CLOSE (client -> server) closes the current screen.
type CloseMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// VIEW (server -> client) is a full render of the open screen.
type ViewMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Screen          string       `json:"screen"`
	Title           string       `json:"title"`
	Tabs            []TabView    `json:"tabs"`
	Criterion       ButtonView   `json:"criterion"`
	Order           ButtonView   `json:"order"`
	Toggles         []ToggleView `json:"toggles,omitempty"`
	Entries         []EntryView  `json:"entries"`
	Page            PageView     `json:"page"`
}

type TabView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Icon     string `json:"icon,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

type ButtonView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  string `json:"icon,omitempty"`
}

type ToggleView struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	On    bool   `json:"on"`
}

type EntryView struct {
	Slot    int      `json:"slot"`
	EntryID string   `json:"entry_id,omitempty"`
	Name    string   `json:"name"`
	Icon    string   `json:"icon,omitempty"`
	Lore    []string `json:"lore,omitempty"`
}

type PageView struct {
	Page      int `json:"page"`
	PageCount int `json:"page_count"`
}

// CHAT (server -> client)
type ChatMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Lines           []string `json:"lines"`
}

// GIVE (server -> client) asks the host to hand an item to the user.
type GiveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	EntryID         string `json:"entry_id"`
	FullStack       bool   `json:"full_stack,omitempty"`
}

// RESULT (server -> client) answers a STAT request.
type ResultMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id,omitempty"`
	OK              bool            `json:"ok"`
	Code            string          `json:"code,omitempty"`
	Message         string          `json:"message,omitempty"`
	Statistics      []StatisticView `json:"statistics,omitempty"`
}

type StatisticView struct {
	Key          string         `json:"key"`
	DisplayName  string         `json:"display_name"`
	Owner        string         `json:"owner"`
	Maintainers  []string       `json:"maintainers"`
	Scores       map[string]int `json:"scores"`
	DisplayEntry string         `json:"display_entry,omitempty"`
}
