package service

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Reaper 定期清除沒有成員且長時間閒置的房間
type Reaper struct {
	roomService *RoomService
	wsManager   *WebSocketManager
	clock       clockwork.Clock
	ttl         time.Duration
	interval    time.Duration
}

func NewReaper(roomService *RoomService, wsManager *WebSocketManager, clock clockwork.Clock, ttl, interval time.Duration) *Reaper {
	return &Reaper{
		roomService: roomService,
		wsManager:   wsManager,
		clock:       clock,
		ttl:         ttl,
		interval:    interval,
	}
}

// Run 開始背景清理，直到 ctx 取消才返回
// 只有真的清掉房間時才推送更新後的房間列表
func (r *Reaper) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("ttl", r.ttl).Dur("interval", r.interval).Msg("idle room reaper started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("idle room reaper stopped")
			return
		case <-ticker.Chan():
			if r.roomService.EvictIdle(r.ttl) {
				r.wsManager.BroadcastRoomsSummary(r.roomService.ListSummaries())
			}
		}
	}
}
