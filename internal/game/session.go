package game

import (
	"time"

	"github.com/wfunc/wager-game/internal/errors"
)

// NewGameSession 创建一个等待玩家加入的新会话
func NewGameSession(sessionID, authority string, sessionBet uint64, mode GameMode) (*GameSession, error) {
	if !mode.Valid() {
		return nil, errors.Newf(errors.ErrInvalidGameMode, "mode: %s", mode)
	}
	if sessionBet == 0 {
		return nil, errors.New(errors.ErrInvalidBetAmount, "投注额必须大于0")
	}
	return &GameSession{
		SessionID:  sessionID,
		Authority:  authority,
		SessionBet: sessionBet,
		Mode:       mode,
		Status:     StatusWaitingForPlayers,
		CreatedAt:  time.Now(),
	}, nil
}

// Team 按选择器返回队伍
func (g *GameSession) Team(side TeamSide) (*Team, error) {
	switch side {
	case TeamA:
		return &g.TeamA, nil
	case TeamB:
		return &g.TeamB, nil
	default:
		return nil, errors.Newf(errors.ErrInvalidTeam, "team: %d", side)
	}
}

// FindEmptySlot 返回指定队伍中第一个可用席位
func (g *GameSession) FindEmptySlot(side TeamSide) (int, error) {
	team, err := g.Team(side)
	if err != nil {
		return 0, err
	}
	return team.FindEmptySlot(g.Mode.PlayersPerTeam())
}

// CheckAllFilled 判断两支队伍是否全部满员
func (g *GameSession) CheckAllFilled() bool {
	playerCount := g.Mode.PlayersPerTeam()
	return g.TeamA.IsFull(playerCount) && g.TeamB.IsFull(playerCount)
}

// HasPlayer 判断玩家是否已在任一队伍中
func (g *GameSession) HasPlayer(player string) bool {
	if _, err := g.TeamA.PlayerIndex(player); err == nil {
		return true
	}
	if _, err := g.TeamB.PlayerIndex(player); err == nil {
		return true
	}
	return false
}

// JoinPlayer 将玩家分配到指定队伍的最低空席位。
// 重复加入在此处即被拒绝，不等到结算时再发现。
// 两队全部满员后会话自动进入对局状态。
func (g *GameSession) JoinPlayer(side TeamSide, player string) (int, error) {
	if g.Status != StatusWaitingForPlayers {
		return 0, errors.Newf(errors.ErrGameNotInProgress, "当前状态: %s", g.Status)
	}
	if player == "" {
		return 0, errors.New(errors.ErrInvalidPlayer, "玩家标识为空")
	}
	if g.HasPlayer(player) {
		return 0, errors.Newf(errors.ErrPlayerAlreadyJoined, "player: %s", player)
	}

	team, err := g.Team(side)
	if err != nil {
		return 0, err
	}
	slot, err := team.FindEmptySlot(g.Mode.PlayersPerTeam())
	if err != nil {
		return 0, err
	}

	team.Slots[slot].Player = player
	team.Slots[slot].Spawns = SpawnReplenish
	team.Slots[slot].Kills = 0

	// 投注额累计，检查溢出
	totalBet, err := checkedAdd(team.TotalBet, g.SessionBet)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrArithmeticOverflow)
	}
	team.TotalBet = totalBet

	if g.CheckAllFilled() {
		g.Status = StatusInProgress
	}

	return slot, nil
}

// AllPlayers 返回两队共10个席位的玩家标识（含空席位），
// 顺序固定为A队0..4、B队0..4。结算引擎依赖此顺序。
func (g *GameSession) AllPlayers() []string {
	players := make([]string, 0, MaxPlayersPerTeam*2)
	for i := range g.TeamA.Slots {
		players = append(players, g.TeamA.Slots[i].Player)
	}
	for i := range g.TeamB.Slots {
		players = append(players, g.TeamB.Slots[i].Player)
	}
	return players
}

// PlayerIndex 返回玩家在指定队伍中的席位索引
func (g *GameSession) PlayerIndex(side TeamSide, player string) (int, error) {
	team, err := g.Team(side)
	if err != nil {
		return 0, err
	}
	return team.PlayerIndex(player)
}

// KillsAndSpawns 返回玩家的击杀数与剩余复活次数之和。
// 付费复活模式的派奖按此积分计算。
func (g *GameSession) KillsAndSpawns(player string) (uint32, error) {
	if idx, err := g.TeamA.PlayerIndex(player); err == nil {
		return uint32(g.TeamA.Slots[idx].Kills) + uint32(g.TeamA.Slots[idx].Spawns), nil
	}
	if idx, err := g.TeamB.PlayerIndex(player); err == nil {
		return uint32(g.TeamB.Slots[idx].Kills) + uint32(g.TeamB.Slots[idx].Spawns), nil
	}
	return 0, errors.Newf(errors.ErrPlayerNotFound, "player: %s", player)
}

// AddKill 为击杀者记一次击杀，并扣减被击杀者一次复活。
// 复活次数为0时扣减是致命错误，绝不允许回绕。
func (g *GameSession) AddKill(killerSide TeamSide, killer string, victimSide TeamSide, victim string) error {
	if g.Status != StatusInProgress {
		return errors.Newf(errors.ErrGameNotInProgress, "当前状态: %s", g.Status)
	}

	killerTeam, err := g.Team(killerSide)
	if err != nil {
		return err
	}
	victimTeam, err := g.Team(victimSide)
	if err != nil {
		return err
	}

	killerIndex, err := killerTeam.PlayerIndex(killer)
	if err != nil {
		return errors.Wrapf(err, errors.ErrPlayerNotFound, "killer: %s", killer)
	}
	victimIndex, err := victimTeam.PlayerIndex(victim)
	if err != nil {
		return errors.Wrapf(err, errors.ErrPlayerNotFound, "victim: %s", victim)
	}

	if victimTeam.Slots[victimIndex].Spawns == 0 {
		return errors.Newf(errors.ErrSpawnUnderflow, "victim: %s", victim)
	}

	killerTeam.Slots[killerIndex].Kills++
	victimTeam.Slots[victimIndex].Spawns--

	return nil
}

// AddSpawns 为指定席位补充复活次数。
// 计数器只允许在对局进行中变更。
func (g *GameSession) AddSpawns(side TeamSide, slotIndex int) error {
	if g.Status != StatusInProgress {
		return errors.Newf(errors.ErrGameNotInProgress, "当前状态: %s", g.Status)
	}

	team, err := g.Team(side)
	if err != nil {
		return err
	}
	if slotIndex < 0 || slotIndex >= g.Mode.PlayersPerTeam() {
		return errors.Newf(errors.ErrInvalidSlotIndex, "slot: %d", slotIndex)
	}
	if !team.Slots[slotIndex].Occupied() {
		return errors.Newf(errors.ErrPlayerNotFound, "slot %d 为空席位", slotIndex)
	}

	team.Slots[slotIndex].Spawns += SpawnReplenish
	return nil
}
