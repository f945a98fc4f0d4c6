package service

import (
	"time"

	"github.com/wfunc/wager-game/internal/repository"
	"github.com/wfunc/wager-game/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config 服务配置
type Config struct {
	Mint               string
	MinBet             uint64
	MaxBet             uint64 // 0表示不限制
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Mint:               "mint-usdc",
		MinBet:             1,
		MaxBet:             1000000,
		JWTSecret:          "your-secret-key-change-in-production",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	}
}

// Services 服务集合
type Services struct {
	Wager  *WagerService
	Auth   AuthService
	Events *EventHub
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, config *Config, log *zap.Logger) *Services {
	authorityRepo := repository.NewAuthorityRepository(db)

	jwtManager := utils.NewJWTManager(
		config.JWTSecret,
		config.AccessTokenExpiry,
		config.RefreshTokenExpiry,
	)

	events := NewEventHub()
	wagerService := NewWagerService(db, config, events, log)
	authService := NewAuthService(db, authorityRepo, jwtManager, log)

	return &Services{
		Wager:  wagerService,
		Auth:   authService,
		Events: events,
	}
}
