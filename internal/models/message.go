package models

// 客戶端透過 WebSocket 送出的操作類型
const (
	ActionRoomCreate     = "room:create"
	ActionRoomJoin       = "room:join"
	ActionVoteSubmit     = "vote:submit"
	ActionRoundStart     = "round:start"
	ActionRoundReveal    = "round:reveal"
	ActionRoundReset     = "round:reset"
	ActionUpdateSettings = "room:update-settings"
)

// 伺服器推送的事件類型
const (
	EventAck        = "ack"
	EventRoomState  = "room:state"
	EventRoomsState = "rooms:state"
)

// ClientMessage 是客戶端請求的統一封包格式
// Type 指定操作，其餘欄位依操作選填
type ClientMessage struct {
	Type          string   `json:"type"`
	RoomID        string   `json:"roomId,omitempty"`
	Name          string   `json:"name,omitempty"`
	ClientID      string   `json:"clientId,omitempty"`
	Vote          string   `json:"vote,omitempty"`
	VotingOptions []string `json:"votingOptions,omitempty"`
}

// Ack 是對單一請求的同步回應
// 請求失敗時 OK 為 false 並附上原因；成功時依操作附帶額外欄位
type Ack struct {
	Type          string   `json:"type"`
	Action        string   `json:"action"`
	OK            bool     `json:"ok"`
	Error         string   `json:"error,omitempty"`
	RoomID        string   `json:"roomId,omitempty"`
	URL           string   `json:"url,omitempty"`
	IsAdmin       *bool    `json:"isAdmin,omitempty"`
	VotingOptions []string `json:"votingOptions,omitempty"`
}

// NewAck 建立一個成功的回應
func NewAck(action string) Ack {
	return Ack{Type: EventAck, Action: action, OK: true}
}

// NewErrorAck 建立一個帶有失敗原因的回應
func NewErrorAck(action, message string) Ack {
	return Ack{Type: EventAck, Action: action, Error: message}
}

// RoomStateEvent 包裝推送給房間訂閱者的狀態快照
type RoomStateEvent struct {
	Type string `json:"type"`
	RoomState
}

// RoomsStateEvent 包裝推送給所有連線的房間列表
type RoomsStateEvent struct {
	Type string `json:"type"`
	RoomsSummary
}

// NewRoomStateEvent 包裝房間快照為推送事件
func NewRoomStateEvent(state RoomState) RoomStateEvent {
	return RoomStateEvent{Type: EventRoomState, RoomState: state}
}

// NewRoomsStateEvent 包裝房間列表為推送事件
func NewRoomsStateEvent(summary RoomsSummary) RoomsStateEvent {
	return RoomsStateEvent{Type: EventRoomsState, RoomsSummary: summary}
}
