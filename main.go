package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"planning_poker/internal/api"
	"planning_poker/internal/repository"
	"planning_poker/internal/service"
	"planning_poker/pkg/config"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// 載入應用程式配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// 初始化記憶體房間庫
	// 系統不落地任何狀態，程序重啟後所有房間消失
	repos := repository.NewRepositories()

	// 初始化服務
	services := service.NewServices(repos, cfg, clockwork.NewRealClock())

	// 啟動背景的閒置房間清理
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go services.Reaper.Run(ctx)

	// 設置 Gin 路由
	r := gin.Default()
	api.SetupRoutes(r, services, cfg)

	// 啟動伺服器
	log.Info().Str("address", cfg.Server.Address).Msg("planning poker server starting")
	if err := r.Run(cfg.Server.Address); err != nil {
		log.Fatal().Err(err).Msg("failed to run server")
	}
}
