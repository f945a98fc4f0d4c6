package game

import (
	"context"

	"github.com/wfunc/wager-game/internal/errors"
	"go.uber.org/zap"
)

// TokenTransferrer 资金划转原语。
// 由外部账本实现：按金库签名权威授权，从金库向目标账户转移指定数额，
// 余额不足、属主不符、代币类型不符时原子性失败。
type TokenTransferrer interface {
	Transfer(ctx context.Context, from, to string, amount uint64, auth *VaultAuthority) error
}

// SettlementInput 一次结算调用的外部输入
type SettlementInput struct {
	Caller     string             // 调用者身份，必须等于会话创建者
	Vault      *VaultAuthority    // 金库签名权威（外部派生）
	VaultToken *TokenAccount      // 金库代币账户凭证
	Remaining  []RemainingAccount // 凭证对列表: [玩家1, 玩家1代币账户, 玩家2, ...]
}

// SettlementEngine 结算引擎。
// 校验全部前置，再逐个玩家执行转账，最后将会话置为终态。
// 调用间的串行化由外部基座保证，引擎自身不加锁。
type SettlementEngine struct {
	transfer TokenTransferrer
	mint     string // 期望的代币类型
	logger   *zap.Logger
}

// NewSettlementEngine 创建结算引擎
func NewSettlementEngine(transfer TokenTransferrer, mint string, logger *zap.Logger) *SettlementEngine {
	return &SettlementEngine{
		transfer: transfer,
		mint:     mint,
		logger:   logger,
	}
}

// payout 一笔待执行的派奖
type payout struct {
	player  string
	account string
	amount  uint64
}

// Refund 等额退款结算：每位已入座玩家退回一份session_bet。
// 全部校验通过前不发生任何转账；全部转账完成后才置为Completed。
func (e *SettlementEngine) Refund(ctx context.Context, session *GameSession, in *SettlementInput) error {
	if err := e.validateCommon(session, in); err != nil {
		return err
	}

	players := session.AllPlayers()
	e.logger.Info("开始退款结算",
		zap.String("session_id", session.SessionID),
		zap.Int("players", len(players)),
		zap.Int("remaining_accounts", len(in.Remaining)))

	// 凭证对必须与全部席位一一对应
	if err := validateRemainingPairs(in.Remaining, len(players)); err != nil {
		return err
	}
	if err := checkDuplicatePlayers(players); err != nil {
		return err
	}

	// 敞口上限：按已入座人数计算总额，校验金库余额
	occupied := uint64(0)
	for _, p := range players {
		if p != "" {
			occupied++
		}
	}
	total, err := checkedMul(session.SessionBet, occupied)
	if err != nil {
		return errors.Wrap(err, errors.ErrTotalPotCalculation)
	}
	if in.VaultToken.Balance < total {
		return errors.Newf(errors.ErrInsufficientVaultBalance,
			"需要: %d, 实际: %d", total, in.VaultToken.Balance)
	}

	// 逐玩家计算退款并定位凭证，转账前全部校验完毕
	payouts := make([]payout, 0, occupied)
	for _, player := range players {
		if player == "" {
			continue
		}

		// 与派奖路径保持同样的受检算术，即便加数为0
		refund, err := checkedAdd(session.SessionBet, 0)
		if err != nil {
			return errors.Wrap(err, errors.ErrWinningsCalculation)
		}

		account, err := e.resolvePlayerAccount(in.Remaining, player)
		if err != nil {
			return err
		}
		payouts = append(payouts, payout{player: player, account: account, amount: refund})
	}

	if err := e.executePayouts(ctx, session, in, payouts); err != nil {
		return err
	}

	session.Status = StatusCompleted
	e.logger.Info("退款结算完成",
		zap.String("session_id", session.SessionID),
		zap.Uint64("total", total))
	return nil
}

// DistributeWinnings 按模式派发奖金并结束会话。
// 赢家通吃: 胜方每位玩家获得 session_bet*2。
// 付费复活: 每位玩家按 (击杀+剩余复活)*session_bet/10 计酬，零积分者跳过。
func (e *SettlementEngine) DistributeWinnings(ctx context.Context, session *GameSession, winningSide TeamSide, in *SettlementInput) error {
	if err := e.validateCommon(session, in); err != nil {
		return err
	}
	if session.Status != StatusInProgress {
		return errors.Newf(errors.ErrGameNotInProgress, "当前状态: %s", session.Status)
	}

	if session.Mode.IsPayToSpawn() {
		return e.distributePayToSpawn(ctx, session, in)
	}
	return e.distributeWinnerTakesAll(ctx, session, winningSide, in)
}

// distributeWinnerTakesAll 赢家通吃派奖
func (e *SettlementEngine) distributeWinnerTakesAll(ctx context.Context, session *GameSession, winningSide TeamSide, in *SettlementInput) error {
	winners, err := session.Team(winningSide)
	if err != nil {
		return err
	}

	playerCount := session.Mode.PlayersPerTeam()
	if err := validateRemainingPairs(in.Remaining, playerCount); err != nil {
		return err
	}
	if err := checkDuplicatePlayers(session.AllPlayers()); err != nil {
		return err
	}

	// 每位胜者获得双倍投注
	perWinner, err := checkedMul(session.SessionBet, 2)
	if err != nil {
		return errors.Wrap(err, errors.ErrWinningsCalculation)
	}
	total, err := checkedMul(perWinner, uint64(playerCount))
	if err != nil {
		return errors.Wrap(err, errors.ErrTotalPotCalculation)
	}
	if in.VaultToken.Balance < total {
		return errors.Newf(errors.ErrInsufficientVaultBalance,
			"需要: %d, 实际: %d", total, in.VaultToken.Balance)
	}

	payouts := make([]payout, 0, playerCount)
	for i := 0; i < playerCount; i++ {
		winner := winners.Slots[i].Player
		if winner == "" {
			return errors.Newf(errors.ErrInvalidPlayer, "胜方席位 %d 为空", i)
		}
		account, err := e.resolvePlayerAccount(in.Remaining, winner)
		if err != nil {
			return err
		}
		payouts = append(payouts, payout{player: winner, account: account, amount: perWinner})
	}

	if err := e.executePayouts(ctx, session, in, payouts); err != nil {
		return err
	}

	session.Status = StatusCompleted
	e.logger.Info("赢家通吃派奖完成",
		zap.String("session_id", session.SessionID),
		zap.String("winning_team", winningSide.String()),
		zap.Uint64("total", total))
	return nil
}

// distributePayToSpawn 付费复活按积分派奖。
// 凭证对只覆盖已入座玩家，与退款的全席位凭证不同。
func (e *SettlementEngine) distributePayToSpawn(ctx context.Context, session *GameSession, in *SettlementInput) error {
	players := session.AllPlayers()
	occupied := 0
	for _, p := range players {
		if p != "" {
			occupied++
		}
	}
	if err := validateRemainingPairs(in.Remaining, occupied); err != nil {
		return err
	}
	if err := checkDuplicatePlayers(players); err != nil {
		return err
	}

	payouts := make([]payout, 0, len(players))
	total := uint64(0)
	for _, player := range players {
		if player == "" {
			continue
		}

		score, err := session.KillsAndSpawns(player)
		if err != nil {
			return err
		}

		// 每积分计酬十分之一份投注
		gross, err := checkedMul(uint64(score), session.SessionBet)
		if err != nil {
			return errors.Wrap(err, errors.ErrWinningsCalculation)
		}
		earnings := gross / SpawnReplenish
		if earnings == 0 {
			continue
		}

		account, err := e.resolvePlayerAccount(in.Remaining, player)
		if err != nil {
			return err
		}

		total, err = checkedAdd(total, earnings)
		if err != nil {
			return errors.Wrap(err, errors.ErrTotalPotCalculation)
		}
		payouts = append(payouts, payout{player: player, account: account, amount: earnings})
	}

	if in.VaultToken.Balance < total {
		return errors.Newf(errors.ErrInsufficientVaultBalance,
			"需要: %d, 实际: %d", total, in.VaultToken.Balance)
	}

	if err := e.executePayouts(ctx, session, in, payouts); err != nil {
		return err
	}

	session.Status = StatusCompleted
	e.logger.Info("付费复活派奖完成",
		zap.String("session_id", session.SessionID),
		zap.Uint64("total", total))
	return nil
}

// validateCommon 所有结算路径共享的前置校验
func (e *SettlementEngine) validateCommon(session *GameSession, in *SettlementInput) error {
	if in == nil || in.Vault == nil || in.VaultToken == nil {
		return errors.New(errors.ErrInvalidParam, "缺少金库凭证")
	}
	if in.Caller != session.Authority {
		return errors.Newf(errors.ErrUnauthorizedDistribution,
			"caller: %s, authority: %s", in.Caller, session.Authority)
	}
	// 显式的幂等保护：已完成的会话拒绝再次结算
	if session.Status == StatusCompleted {
		return errors.Newf(errors.ErrSessionCompleted, "session: %s", session.SessionID)
	}
	if in.VaultToken.Mint != e.mint {
		return errors.Newf(errors.ErrInvalidTokenMint, "金库账户mint: %s", in.VaultToken.Mint)
	}
	return nil
}

// resolvePlayerAccount 在凭证对中按玩家身份定位代币账户，
// 并校验属主与代币类型。
func (e *SettlementEngine) resolvePlayerAccount(remaining []RemainingAccount, player string) (string, error) {
	pairIndex := -1
	for i := 0; i < len(remaining); i += 2 {
		if remaining[i].Address == player {
			pairIndex = i
			break
		}
	}
	if pairIndex < 0 {
		return "", errors.Newf(errors.ErrInvalidPlayer, "凭证中未找到玩家: %s", player)
	}

	token := remaining[pairIndex+1].Token
	if token == nil {
		return "", errors.Newf(errors.ErrInvalidPlayerTokenAccount, "player: %s", player)
	}
	if token.Owner != player {
		return "", errors.Newf(errors.ErrInvalidPlayerTokenAccount,
			"账户属主 %s 与玩家 %s 不符", token.Owner, player)
	}
	if token.Mint != e.mint {
		return "", errors.Newf(errors.ErrInvalidTokenMint, "mint: %s", token.Mint)
	}
	return token.Address, nil
}

// executePayouts 按玩家顺序串行执行转账
func (e *SettlementEngine) executePayouts(ctx context.Context, session *GameSession, in *SettlementInput, payouts []payout) error {
	for _, p := range payouts {
		e.logger.Info("执行派奖转账",
			zap.String("session_id", session.SessionID),
			zap.String("player", p.player),
			zap.String("account", p.account),
			zap.Uint64("amount", p.amount))

		if err := e.transfer.Transfer(ctx, in.VaultToken.Address, p.account, p.amount, in.Vault); err != nil {
			return errors.Wrapf(err, errors.ErrTransferFailed,
				"player: %s, amount: %d", p.player, p.amount)
		}
	}
	return nil
}

// validateRemainingPairs 校验凭证列表形状：非空、偶数、
// 数量为玩家数的两倍，且每个奇数位都必须是代币账户。
func validateRemainingPairs(remaining []RemainingAccount, playerCount int) error {
	if len(remaining) == 0 {
		return errors.New(errors.ErrInvalidRemainingAccounts, "凭证列表为空")
	}
	if len(remaining)%2 != 0 {
		return errors.Newf(errors.ErrInvalidRemainingAccounts, "凭证数量为奇数: %d", len(remaining))
	}
	if len(remaining) != 2*playerCount {
		return errors.Newf(errors.ErrInvalidRemainingAccounts,
			"凭证数量 %d 与玩家席位数 %d 不匹配", len(remaining), playerCount)
	}
	for i := 1; i < len(remaining); i += 2 {
		if remaining[i].Token == nil {
			return errors.Newf(errors.ErrInvalidPlayerTokenAccount, "凭证 %d 不是代币账户", i)
		}
	}
	return nil
}

// checkDuplicatePlayers 校验非空玩家身份在两队间全局唯一
func checkDuplicatePlayers(players []string) error {
	seen := make(map[string]struct{}, len(players))
	for _, player := range players {
		if player == "" {
			continue
		}
		if _, ok := seen[player]; ok {
			return errors.Newf(errors.ErrDuplicatePlayer, "player: %s", player)
		}
		seen[player] = struct{}{}
	}
	return nil
}
