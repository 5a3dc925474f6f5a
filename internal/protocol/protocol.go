package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeOpen    = "OPEN"
	TypeEvent   = "EVENT"
	TypeStat    = "STAT"
	TypeClose   = "CLOSE"
	TypeView    = "VIEW"
	TypeChat    = "CHAT"
	TypeGive    = "GIVE"
	TypeResult  = "RESULT"
)

// Screens a client can open.
const (
	ScreenCreative   = "creative"
	ScreenStatistics = "statistics"
)

// EVENT actions.
const (
	ActionSelectTab       = "select_tab"
	ActionNextCriterion   = "next_criterion"
	ActionPrevCriterion   = "prev_criterion"
	ActionNextOrder       = "next_order"
	ActionPrevOrder       = "prev_order"
	ActionToggleHideEmpty = "toggle_hide_empty"
	ActionSetPage         = "set_page"
	ActionClick           = "click"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
