package models

import (
	"time"
)

// WagerSession 对局会话表（聚合根的持久化形态）
type WagerSession struct {
	BaseModel
	SessionID      string     `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	Authority      string     `gorm:"size:64;not null;index" json:"authority"`
	SessionBet     uint64     `gorm:"not null" json:"session_bet"`
	GameMode       string     `gorm:"size:32;not null" json:"game_mode"`
	Status         string     `gorm:"size:32;not null;index" json:"status"` // waiting_for_players, in_progress, completed
	TeamData       string     `gorm:"type:text" json:"team_data"`           // JSON格式的两队席位数据
	VaultAddress   string     `gorm:"size:64;not null" json:"vault_address"`
	Bump           uint8      `json:"bump"`
	VaultBump      uint8      `json:"vault_bump"`
	VaultTokenBump uint8      `json:"vault_token_bump"`
	StartedAt      time.Time  `json:"started_at"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
}

// TableName 指定表名
func (WagerSession) TableName() string {
	return "wager_sessions"
}

// TokenAccount 代币账户表（含玩家账户与会话金库账户）
type TokenAccount struct {
	BaseModel
	Address string `gorm:"uniqueIndex;size:64;not null" json:"address"`
	Owner   string `gorm:"size:64;not null;index" json:"owner"`
	Mint    string `gorm:"size:64;not null;index" json:"mint"`
	Balance uint64 `gorm:"default:0" json:"balance"`
	IsVault bool   `gorm:"default:false" json:"is_vault"` // 是否为会话金库账户
}

// TableName 指定表名
func (TokenAccount) TableName() string {
	return "token_accounts"
}

// PayoutRecord 派奖流水表，每笔转账一条记录
type PayoutRecord struct {
	BaseModel
	OrderNo     string  `gorm:"uniqueIndex;size:64;not null" json:"order_no"`
	SessionID   string  `gorm:"size:64;not null;index" json:"session_id"`
	Player      string  `gorm:"size:64;not null;index" json:"player"`
	FromAccount string  `gorm:"size:64;not null" json:"from_account"`
	ToAccount   string  `gorm:"size:64;not null" json:"to_account"`
	Amount      uint64  `gorm:"not null" json:"amount"`
	PayoutType  string  `gorm:"size:32;not null" json:"payout_type"` // refund, winnings, escrow, spawn_purchase
	Status      string  `gorm:"size:20;default:'success'" json:"status"`
	Metadata    JSONMap `gorm:"type:json" json:"metadata"`
}

// TableName 指定表名
func (PayoutRecord) TableName() string {
	return "payout_records"
}

// GameAuthority 游戏服务器权威表（结算调用方）
type GameAuthority struct {
	BaseModel
	Identity   string     `gorm:"uniqueIndex;size:64;not null" json:"identity"`
	SecretHash string     `gorm:"size:255;not null" json:"-"`
	Status     string     `gorm:"size:20;default:'active'" json:"status"` // active, disabled
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

// TableName 指定表名
func (GameAuthority) TableName() string {
	return "game_authorities"
}

// IsActive 判断权威是否可用
func (a *GameAuthority) IsActive() bool {
	return a.Status == "active"
}
