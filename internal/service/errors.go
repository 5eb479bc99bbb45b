package service

import "errors"

// 操作失敗的分類，由傳輸層轉換為回應給客戶端的訊息
// 任何一種錯誤都不改變房間狀態，也不影響其他房間
var (
	ErrInvalidPayload    = errors.New("invalid payload")
	ErrDuplicateName     = errors.New("name already exists in this room")
	ErrNotAdmin          = errors.New("caller is not the room admin")
	ErrInvalidTransition = errors.New("operation not legal for current room status")
	ErrVotingNotActive   = errors.New("voting is not active")
	ErrNoActiveRound     = errors.New("no active voting round")
	ErrInvalidVote       = errors.New("invalid vote option")
	ErrInvalidScale      = errors.New("invalid voting scale")
	ErrNotParticipant    = errors.New("client is not a participant of the room")
)
