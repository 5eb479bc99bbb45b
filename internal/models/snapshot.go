package models

import "time"

// ParticipantState 是成員在房間快照中的公開投影
// Vote 只在開票後才有值，回合進行中一律為 null，避免洩漏隱藏的票值
type ParticipantState struct {
	ClientID string  `json:"clientId"`
	Name     string  `json:"name"`
	HasVoted bool    `json:"hasVoted"`
	Vote     *string `json:"vote"`
}

// RoomState 是推送給房間訂閱者的完整狀態快照
type RoomState struct {
	ID            string             `json:"id"`
	AdminClientID string             `json:"adminClientId"`
	Status        RoomStatus         `json:"status"`
	CurrentRound  int                `json:"currentRound"`
	Settings      RoomSettings       `json:"settings"`
	Participants  []ParticipantState `json:"participants"`
	History       []RoundRecord      `json:"history"`
}

// SummaryParticipant 是監控視圖中顯示的成員摘要
type SummaryParticipant struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
}

// RoomSummary 是單一房間的唯讀監控投影
// 不包含任何進行中的票值，監控視圖不能成為偷看票的後門
type RoomSummary struct {
	ID               string               `json:"id"`
	Status           RoomStatus           `json:"status"`
	CurrentRound     int                  `json:"currentRound"`
	ParticipantCount int                  `json:"participantCount"`
	Participants     []SummaryParticipant `json:"participants"`
	AdminName        *string              `json:"adminName"`
	CreatorName      *string              `json:"creatorName"`
	HistoryCount     int                  `json:"historyCount"`
	CreatedAt        time.Time            `json:"createdAt"`
	LastActiveAt     time.Time            `json:"lastActiveAt"`
}

// RoomsSummary 是推送給所有連線的全域房間列表
type RoomsSummary struct {
	Rooms       []RoomSummary `json:"rooms"`
	TotalRooms  int           `json:"totalRooms"`
	GeneratedAt time.Time     `json:"generatedAt"`
}

// NewRoomState 依房間目前狀態建立快照，呼叫時必須持有房間鎖
func NewRoomState(room *Room) RoomState {
	participants := make([]ParticipantState, 0, len(room.Participants))
	for _, p := range room.Participants {
		vote, hasVoted := room.RoundVotes[p.ClientID]
		state := ParticipantState{
			ClientID: p.ClientID,
			Name:     p.Name,
			HasVoted: hasVoted,
		}
		if room.Status == RoomStatusRevealed && hasVoted {
			state.Vote = &vote
		}
		participants = append(participants, state)
	}

	history := make([]RoundRecord, len(room.History))
	copy(history, room.History)

	return RoomState{
		ID:            room.ID,
		AdminClientID: room.AdminClientID,
		Status:        room.Status,
		CurrentRound:  room.CurrentRound,
		Settings:      RoomSettings{VotingOptions: append([]string(nil), room.Settings.VotingOptions...)},
		Participants:  participants,
		History:       history,
	}
}

// NewRoomSummary 建立房間的監控摘要，呼叫時必須持有房間鎖
func NewRoomSummary(room *Room) RoomSummary {
	participants := make([]SummaryParticipant, 0, len(room.Participants))
	for _, p := range room.Participants {
		participants = append(participants, SummaryParticipant{ClientID: p.ClientID, Name: p.Name})
	}

	summary := RoomSummary{
		ID:               room.ID,
		Status:           room.Status,
		CurrentRound:     room.CurrentRound,
		ParticipantCount: len(room.Participants),
		Participants:     participants,
		HistoryCount:     len(room.History),
		CreatedAt:        room.CreatedAt,
		LastActiveAt:     room.LastActiveAt,
	}
	if admin := room.FindParticipant(room.AdminClientID); room.AdminClientID != "" && admin != nil {
		summary.AdminName = &admin.Name
	}
	if creator := room.FindParticipant(room.CreatedByClientID); room.CreatedByClientID != "" && creator != nil {
		summary.CreatorName = &creator.Name
	}
	return summary
}
