package models

import (
	"strings"
	"sync"
	"time"
)

// RoomStatus 定義房間狀態的類型
type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"  // 等待中，尚未開始投票
	RoomStatusVoting   RoomStatus = "voting"   // 投票進行中，票值對所有人隱藏
	RoomStatusRevealed RoomStatus = "revealed" // 本回合已開票
)

// Participant 代表房間內的一位成員
// ClientID 由客戶端自行產生，重新連線時保持不變；ChannelID 則在每次連線時重新綁定
type Participant struct {
	ClientID  string
	ChannelID string
	Name      string
}

// VoteDetail 記錄開票當下的名字與票值
// 因為成員之後可能改名或離開，所以在開票時先行快照
type VoteDetail struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	Vote     string `json:"vote"`
}

// RoundRecord 表示一個已完成回合的歷史紀錄，加入後不再修改
type RoundRecord struct {
	Round        int               `json:"round"`
	Votes        map[string]string `json:"votes"`
	VoteDetails  []VoteDetail      `json:"voteDetails"`
	Average      *float64          `json:"average"`
	RevealedAt   time.Time         `json:"revealedAt"`
	AutoRevealed bool              `json:"autoRevealed"`
}

// RoomSettings 存放房間的可調整設定
type RoomSettings struct {
	VotingOptions []string `json:"votingOptions"`
}

// Room 表示一個估點房間
// 所有欄位的讀寫都必須在持有內嵌鎖的情況下進行，房間之間互不影響
type Room struct {
	sync.Mutex

	ID                string
	CreatedByClientID string
	AdminClientID     string
	Status            RoomStatus
	CurrentRound      int
	Participants      []*Participant
	RoundVotes        map[string]string
	// ParticipantDirectory 保留 clientId 到最後已知名字的對照
	// 成員離開後仍然留存，供歷史紀錄解析名字使用
	ParticipantDirectory map[string]string
	History              []RoundRecord
	Settings             RoomSettings
	CreatedAt            time.Time
	LastActiveAt         time.Time
}

// NewRoom 建立一個處於等待狀態的新房間
func NewRoom(id, createdByClientID string, votingOptions []string, now time.Time) *Room {
	options := make([]string, len(votingOptions))
	copy(options, votingOptions)

	return &Room{
		ID:                   id,
		CreatedByClientID:    createdByClientID,
		Status:               RoomStatusWaiting,
		CurrentRound:         1,
		Participants:         make([]*Participant, 0),
		RoundVotes:           make(map[string]string),
		ParticipantDirectory: make(map[string]string),
		History:              make([]RoundRecord, 0),
		Settings:             RoomSettings{VotingOptions: options},
		CreatedAt:            now,
		LastActiveAt:         now,
	}
}

// FindParticipant 依 clientId 尋找成員，找不到時回傳 nil
func (r *Room) FindParticipant(clientID string) *Participant {
	for _, p := range r.Participants {
		if p.ClientID == clientID {
			return p
		}
	}
	return nil
}

// FindParticipantByChannel 依綁定的通道尋找成員
func (r *Room) FindParticipantByChannel(channelID string) *Participant {
	for _, p := range r.Participants {
		if p.ChannelID == channelID {
			return p
		}
	}
	return nil
}

// FindParticipantByName 依名字（不分大小寫）尋找 clientId 不同的成員
// 用於加入房間時的重複名字判斷
func (r *Room) FindParticipantByName(name, excludeClientID string) *Participant {
	lower := strings.ToLower(name)
	for _, p := range r.Participants {
		if strings.ToLower(p.Name) == lower && p.ClientID != excludeClientID {
			return p
		}
	}
	return nil
}

// IsAdmin 判斷指定的 clientId 是否為目前的管理員
func (r *Room) IsAdmin(clientID string) bool {
	return clientID != "" && r.AdminClientID == clientID
}

// EnsureAdmin 維持管理員不變量：AdminClientID 若非空必須指向現存成員
// 目前的管理員已離開時，由加入順序最早的成員遞補；房間清空則設為無
func (r *Room) EnsureAdmin() {
	if r.AdminClientID != "" && r.FindParticipant(r.AdminClientID) != nil {
		return
	}
	if len(r.Participants) > 0 {
		r.AdminClientID = r.Participants[0].ClientID
		return
	}
	r.AdminClientID = ""
}

// AllVoted 判斷是否所有現存成員都已投票
// 房間沒有任何成員時視為尚未完成
func (r *Room) AllVoted() bool {
	if len(r.Participants) == 0 {
		return false
	}
	for _, p := range r.Participants {
		if _, ok := r.RoundVotes[p.ClientID]; !ok {
			return false
		}
	}
	return true
}

// IsValidVote 判斷票值是否在目前允許的選項中
func (r *Room) IsValidVote(vote string) bool {
	for _, option := range r.Settings.VotingOptions {
		if option == vote {
			return true
		}
	}
	return false
}
