package game

import (
	"time"

	"github.com/wfunc/wager-game/internal/errors"
)

// MaxPlayersPerTeam 每队固定席位数（与模式无关）
const MaxPlayersPerTeam = 5

// SpawnReplenish 单次购买补充的复活次数
const SpawnReplenish = 10

// GameMode 游戏模式枚举
type GameMode string

const (
	ModeWinnerTakesAllOneVsOne     GameMode = "winner_takes_all_1v1" // 1v1 赢家通吃
	ModeWinnerTakesAllThreeVsThree GameMode = "winner_takes_all_3v3" // 3v3 赢家通吃
	ModeWinnerTakesAllFiveVsFive   GameMode = "winner_takes_all_5v5" // 5v5 赢家通吃
	ModePayToSpawnOneVsOne         GameMode = "pay_to_spawn_1v1"     // 1v1 付费复活
	ModePayToSpawnThreeVsThree     GameMode = "pay_to_spawn_3v3"     // 3v3 付费复活
	ModePayToSpawnFiveVsFive       GameMode = "pay_to_spawn_5v5"     // 5v5 付费复活
)

// PlayersPerTeam 返回该模式下每队需要的玩家数
func (m GameMode) PlayersPerTeam() int {
	switch m {
	case ModeWinnerTakesAllOneVsOne, ModePayToSpawnOneVsOne:
		return 1
	case ModeWinnerTakesAllThreeVsThree, ModePayToSpawnThreeVsThree:
		return 3
	case ModeWinnerTakesAllFiveVsFive, ModePayToSpawnFiveVsFive:
		return 5
	default:
		return 0
	}
}

// IsPayToSpawn 判断是否为付费复活模式
func (m GameMode) IsPayToSpawn() bool {
	switch m {
	case ModePayToSpawnOneVsOne, ModePayToSpawnThreeVsThree, ModePayToSpawnFiveVsFive:
		return true
	default:
		return false
	}
}

// Valid 判断模式是否合法
func (m GameMode) Valid() bool {
	return m.PlayersPerTeam() > 0
}

// GameStatus 会话状态枚举（只允许单向推进）
type GameStatus string

const (
	StatusWaitingForPlayers GameStatus = "waiting_for_players" // 等待玩家加入
	StatusInProgress        GameStatus = "in_progress"         // 对局进行中
	StatusCompleted         GameStatus = "completed"           // 已结算，终态
)

// TeamSide 队伍选择器，仅允许A/B两个值
type TeamSide uint8

const (
	TeamA TeamSide = 0
	TeamB TeamSide = 1
)

// Valid 判断队伍选择器是否合法
func (s TeamSide) Valid() bool {
	return s == TeamA || s == TeamB
}

// String 队伍名称
func (s TeamSide) String() string {
	switch s {
	case TeamA:
		return "team_a"
	case TeamB:
		return "team_b"
	default:
		return "unknown"
	}
}

// Slot 队伍中的一个席位
type Slot struct {
	Player string `json:"player"` // 玩家标识，空字符串表示空席位
	Kills  uint16 `json:"kills"`  // 击杀数
	Spawns uint16 `json:"spawns"` // 剩余复活次数
}

// Occupied 判断席位是否已被占用。
// 空席位的表示方式只在这里判定，其他代码一律通过本方法判断。
func (s *Slot) Occupied() bool {
	return s.Player != ""
}

// Team 一支队伍，固定5个席位；实际可用席位数由游戏模式决定
type Team struct {
	Slots    [MaxPlayersPerTeam]Slot `json:"slots"`
	TotalBet uint64                  `json:"total_bet"` // 队伍累计投注额
}

// FindEmptySlot 返回前playerCount个席位中第一个空席位的索引
func (t *Team) FindEmptySlot(playerCount int) (int, error) {
	for i := 0; i < playerCount && i < MaxPlayersPerTeam; i++ {
		if !t.Slots[i].Occupied() {
			return i, nil
		}
	}
	return 0, errors.New(errors.ErrTeamIsFull)
}

// IsFull 判断前playerCount个席位是否全部占用。
// 与FindEmptySlot使用同一扫描逻辑，但以显式布尔值表达，不依赖错误内省。
func (t *Team) IsFull(playerCount int) bool {
	for i := 0; i < playerCount && i < MaxPlayersPerTeam; i++ {
		if !t.Slots[i].Occupied() {
			return false
		}
	}
	return true
}

// PlayerIndex 返回玩家在队伍中的席位索引
func (t *Team) PlayerIndex(player string) (int, error) {
	if player == "" {
		return 0, errors.New(errors.ErrPlayerNotFound)
	}
	for i := range t.Slots {
		if t.Slots[i].Player == player {
			return i, nil
		}
	}
	return 0, errors.New(errors.ErrPlayerNotFound)
}

// VaultAuthority 金库签名权威证明。
// 由外部存储基座从会话标识派生，本核心只消费、不计算。
type VaultAuthority struct {
	Address string `json:"address"` // 金库地址
	Bump    uint8  `json:"bump"`    // 派生bump
}

// TokenAccount 代币账户凭证（由调用方随结算请求附带）
type TokenAccount struct {
	Address string `json:"address"` // 账户地址
	Owner   string `json:"owner"`   // 账户属主
	Mint    string `json:"mint"`    // 代币类型
	Balance uint64 `json:"balance"` // 当前余额
}

// RemainingAccount 结算凭证列表中的一项。
// 偶数位为玩家凭证，奇数位为对应的代币账户凭证。
type RemainingAccount struct {
	Address string        `json:"address"`
	Token   *TokenAccount `json:"token,omitempty"` // 非代币账户时为nil
}

// GameSession 对局会话聚合根
type GameSession struct {
	SessionID  string     `json:"session_id"`  // 会话唯一标识
	Authority  string     `json:"authority"`   // 创建者（游戏服务器）标识
	SessionBet uint64     `json:"session_bet"` // 每位玩家的固定投注额，创建后不可变
	Mode       GameMode   `json:"game_mode"`
	TeamA      Team       `json:"team_a"`
	TeamB      Team       `json:"team_b"`
	Status     GameStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`

	// 金库派生元数据，由存储基座产生并随会话保存
	Bump           uint8 `json:"bump"`
	VaultBump      uint8 `json:"vault_bump"`
	VaultTokenBump uint8 `json:"vault_token_bump"`
}
