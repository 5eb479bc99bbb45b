package config

import (
	"errors"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Room      RoomConfig
	WebSocket WebSocketConfig
}

type ServerConfig struct {
	Address        string
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RoomConfig struct {
	// 空房間閒置超過 IdleTTL 後由背景清理移除
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	// 新房間的預設投票選項
	VotingOptions []string `mapstructure:"voting_options"`
}

type WebSocketConfig struct {
	ReadLimit    int64         `mapstructure:"read_limit"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PongTimeout  time.Duration `mapstructure:"pong_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./pkg/config")
	viper.AddConfigPath(".")

	viper.SetDefault("server.address", ":3000")
	viper.SetDefault("room.idle_ttl", 30*time.Minute)
	viper.SetDefault("room.cleanup_interval", time.Minute)
	viper.SetDefault("room.voting_options", []string{"1", "2", "3", "5", "8", "13", "21", "?", "☕"})
	viper.SetDefault("websocket.read_limit", 4096)
	viper.SetDefault("websocket.write_timeout", 10*time.Second)
	viper.SetDefault("websocket.pong_timeout", 60*time.Second)
	viper.SetDefault("websocket.ping_interval", 54*time.Second)

	// 找不到配置文件時使用預設值，其他錯誤照常回報
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
