package service

import (
	"github.com/jonboulle/clockwork"

	"planning_poker/internal/repository"
	"planning_poker/pkg/config"
)

type Services struct {
	Room      *RoomService
	WebSocket *WebSocketManager
	Reaper    *Reaper
}

func NewServices(repos *repository.Repositories, cfg *config.Config, clock clockwork.Clock) *Services {
	wsManager := NewWebSocketManager(cfg.WebSocket)

	roomService := NewRoomService(repos.Room, wsManager, clock, cfg.Room.VotingOptions)
	reaper := NewReaper(roomService, wsManager, clock, cfg.Room.IdleTTL, cfg.Room.CleanupInterval)

	return &Services{
		Room:      roomService,
		WebSocket: wsManager,
		Reaper:    reaper,
	}
}
