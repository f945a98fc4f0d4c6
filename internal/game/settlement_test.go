package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/wager-game/internal/errors"
	"go.uber.org/zap"
)

const testMint = "mint-usdc"

// transferCall 一次转账调用记录
type transferCall struct {
	From   string
	To     string
	Amount uint64
}

// fakeTransferrer 记录全部转账调用的测试替身
type fakeTransferrer struct {
	calls   []transferCall
	failAll bool
}

func (f *fakeTransferrer) Transfer(ctx context.Context, from, to string, amount uint64, auth *VaultAuthority) error {
	if f.failAll {
		return apperrors.New(errFailCode)
	}
	f.calls = append(f.calls, transferCall{From: from, To: to, Amount: amount})
	return nil
}

const errFailCode = apperrors.ErrTransferFailed

// settlementFixture 结算测试夹具
type settlementFixture struct {
	session  *GameSession
	engine   *SettlementEngine
	transfer *fakeTransferrer
	input    *SettlementInput
}

// newRefundFixture 构造1v1会话: alice/bob各投注100，金库余额可指定
func newRefundFixture(t *testing.T, vaultBalance uint64) *settlementFixture {
	t.Helper()

	session, err := NewGameSession("session-1", "server", 100, ModeWinnerTakesAllOneVsOne)
	require.NoError(t, err)
	_, err = session.JoinPlayer(TeamA, "alice")
	require.NoError(t, err)
	_, err = session.JoinPlayer(TeamB, "bob")
	require.NoError(t, err)

	transfer := &fakeTransferrer{}
	engine := NewSettlementEngine(transfer, testMint, zap.NewNop())

	return &settlementFixture{
		session:  session,
		engine:   engine,
		transfer: transfer,
		input: &SettlementInput{
			Caller: "server",
			Vault:  &VaultAuthority{Address: "vault-1", Bump: 254},
			VaultToken: &TokenAccount{
				Address: "vault-token-1",
				Owner:   "vault-1",
				Mint:    testMint,
				Balance: vaultBalance,
			},
			Remaining: remainingFor(session),
		},
	}
}

// remainingFor 按会话席位构造配套的凭证对列表
func remainingFor(session *GameSession) []RemainingAccount {
	players := session.AllPlayers()
	remaining := make([]RemainingAccount, 0, len(players)*2)
	for i, player := range players {
		remaining = append(remaining, RemainingAccount{Address: player})
		remaining = append(remaining, RemainingAccount{
			Address: tokenAddr(player, i),
			Token: &TokenAccount{
				Address: tokenAddr(player, i),
				Owner:   player,
				Mint:    testMint,
			},
		})
	}
	return remaining
}

func tokenAddr(player string, i int) string {
	if player == "" {
		return "empty-token"
	}
	return player + "-token"
}

// remainingForOccupied 只为已入座玩家构造凭证对（付费复活派奖用）
func remainingForOccupied(session *GameSession) []RemainingAccount {
	var remaining []RemainingAccount
	for i, player := range session.AllPlayers() {
		if player == "" {
			continue
		}
		remaining = append(remaining, RemainingAccount{Address: player})
		remaining = append(remaining, RemainingAccount{
			Address: tokenAddr(player, i),
			Token: &TokenAccount{
				Address: tokenAddr(player, i),
				Owner:   player,
				Mint:    testMint,
			},
		})
	}
	return remaining
}

// 测试退款成功路径：每人退回一份投注，会话进入终态
func TestSettlementEngine_Refund(t *testing.T) {
	f := newRefundFixture(t, 200)

	err := f.engine.Refund(context.Background(), f.session, f.input)
	require.NoError(t, err)

	// 恰好两笔转账，各100，按玩家顺序
	require.Len(t, f.transfer.calls, 2)
	assert.Equal(t, transferCall{From: "vault-token-1", To: "alice-token", Amount: 100}, f.transfer.calls[0])
	assert.Equal(t, transferCall{From: "vault-token-1", To: "bob-token", Amount: 100}, f.transfer.calls[1])
	assert.Equal(t, StatusCompleted, f.session.Status)
}

// 测试金库余额不足：零转账、状态不变
func TestSettlementEngine_Refund_InsufficientVault(t *testing.T) {
	f := newRefundFixture(t, 150)

	err := f.engine.Refund(context.Background(), f.session, f.input)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInsufficientVaultBalance))
	assert.Empty(t, f.transfer.calls)
	assert.Equal(t, StatusInProgress, f.session.Status)
}

// 测试凭证列表形状校验
func TestSettlementEngine_Refund_InvalidRemaining(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(f *settlementFixture)
	}{
		{"空列表", func(f *settlementFixture) {
			f.input.Remaining = nil
		}},
		{"奇数长度", func(f *settlementFixture) {
			f.input.Remaining = f.input.Remaining[:19]
		}},
		{"数量与席位数不匹配", func(f *settlementFixture) {
			f.input.Remaining = f.input.Remaining[:18]
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := newRefundFixture(t, 200)
			c.mutate(f)

			err := f.engine.Refund(context.Background(), f.session, f.input)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrInvalidRemainingAccounts))
			assert.Empty(t, f.transfer.calls)
			assert.Equal(t, StatusInProgress, f.session.Status)
		})
	}
}

// 测试奇数位必须是代币账户
func TestSettlementEngine_Refund_NonTokenAccountInPair(t *testing.T) {
	f := newRefundFixture(t, 200)
	f.input.Remaining[1].Token = nil

	err := f.engine.Refund(context.Background(), f.session, f.input)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidPlayerTokenAccount))
	assert.Empty(t, f.transfer.calls)
}

// 测试跨队重复玩家导致结算失败
func TestSettlementEngine_Refund_DuplicatePlayer(t *testing.T) {
	f := newRefundFixture(t, 200)
	// 直接篡改聚合状态模拟越过加入检查的脏数据
	f.session.TeamB.Slots[0].Player = "alice"
	f.input.Remaining = remainingFor(f.session)

	err := f.engine.Refund(context.Background(), f.session, f.input)
	assert.True(t, apperrors.Is(err, apperrors.ErrDuplicatePlayer))
	assert.Empty(t, f.transfer.calls)
}

// 测试凭证中缺少玩家
func TestSettlementEngine_Refund_MissingPlayerClaim(t *testing.T) {
	f := newRefundFixture(t, 200)
	f.input.Remaining[0].Address = "mallory"

	err := f.engine.Refund(context.Background(), f.session, f.input)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidPlayer))
	assert.Empty(t, f.transfer.calls)
}

// 测试代币账户属主与玩家不符
func TestSettlementEngine_Refund_WrongOwner(t *testing.T) {
	f := newRefundFixture(t, 200)
	f.input.Remaining[1].Token.Owner = "mallory"

	err := f.engine.Refund(context.Background(), f.session, f.input)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidPlayerTokenAccount))
	assert.Empty(t, f.transfer.calls)
}

// 测试代币类型不匹配
func TestSettlementEngine_Refund_WrongMint(t *testing.T) {
	f := newRefundFixture(t, 200)
	f.input.Remaining[1].Token.Mint = "mint-other"

	err := f.engine.Refund(context.Background(), f.session, f.input)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTokenMint))
	assert.Empty(t, f.transfer.calls)
}

// 测试非创建者无权结算
func TestSettlementEngine_Refund_Unauthorized(t *testing.T) {
	f := newRefundFixture(t, 200)
	f.input.Caller = "intruder"

	err := f.engine.Refund(context.Background(), f.session, f.input)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorizedDistribution))
	assert.Empty(t, f.transfer.calls)
}

// 测试重复结算被显式拒绝
func TestSettlementEngine_Refund_AlreadyCompleted(t *testing.T) {
	f := newRefundFixture(t, 200)

	require.NoError(t, f.engine.Refund(context.Background(), f.session, f.input))
	require.Len(t, f.transfer.calls, 2)

	err := f.engine.Refund(context.Background(), f.session, f.input)
	assert.True(t, apperrors.Is(err, apperrors.ErrSessionCompleted))
	// 没有追加新的转账
	assert.Len(t, f.transfer.calls, 2)
}

// 测试奖池总额计算溢出
func TestSettlementEngine_Refund_TotalPotOverflow(t *testing.T) {
	f := newRefundFixture(t, 200)
	f.session.SessionBet = ^uint64(0)

	err := f.engine.Refund(context.Background(), f.session, f.input)
	assert.True(t, apperrors.Is(err, apperrors.ErrTotalPotCalculation))
	assert.Empty(t, f.transfer.calls)
}

// 测试部分满员会话的退款只覆盖已入座玩家
func TestSettlementEngine_Refund_PartiallyFilled(t *testing.T) {
	session, err := NewGameSession("session-1", "server", 100, ModeWinnerTakesAllThreeVsThree)
	require.NoError(t, err)
	_, err = session.JoinPlayer(TeamA, "alice")
	require.NoError(t, err)
	_, err = session.JoinPlayer(TeamB, "bob")
	require.NoError(t, err)
	// 会话仍在等待玩家，属于可退款状态

	transfer := &fakeTransferrer{}
	engine := NewSettlementEngine(transfer, testMint, zap.NewNop())
	input := &SettlementInput{
		Caller:     "server",
		Vault:      &VaultAuthority{Address: "vault-1", Bump: 253},
		VaultToken: &TokenAccount{Address: "vault-token-1", Owner: "vault-1", Mint: testMint, Balance: 200},
		Remaining:  remainingFor(session),
	}

	require.NoError(t, engine.Refund(context.Background(), session, input))
	assert.Len(t, transfer.calls, 2)
	assert.Equal(t, StatusCompleted, session.Status)
}

// 测试赢家通吃派奖：胜方每人获得双倍投注
func TestSettlementEngine_DistributeWinnings_WinnerTakesAll(t *testing.T) {
	f := newRefundFixture(t, 200)
	// 胜方凭证只覆盖胜方玩家
	f.input.Remaining = []RemainingAccount{
		{Address: "alice"},
		{Address: "alice-token", Token: &TokenAccount{Address: "alice-token", Owner: "alice", Mint: testMint}},
	}

	err := f.engine.DistributeWinnings(context.Background(), f.session, TeamA, f.input)
	require.NoError(t, err)

	require.Len(t, f.transfer.calls, 1)
	assert.Equal(t, transferCall{From: "vault-token-1", To: "alice-token", Amount: 200}, f.transfer.calls[0])
	assert.Equal(t, StatusCompleted, f.session.Status)
}

// 测试赢家通吃在未开局时拒绝派奖
func TestSettlementEngine_DistributeWinnings_NotInProgress(t *testing.T) {
	session, err := NewGameSession("session-1", "server", 100, ModeWinnerTakesAllOneVsOne)
	require.NoError(t, err)
	_, err = session.JoinPlayer(TeamA, "alice")
	require.NoError(t, err)

	transfer := &fakeTransferrer{}
	engine := NewSettlementEngine(transfer, testMint, zap.NewNop())
	input := &SettlementInput{
		Caller:     "server",
		Vault:      &VaultAuthority{Address: "vault-1"},
		VaultToken: &TokenAccount{Address: "vault-token-1", Owner: "vault-1", Mint: testMint, Balance: 200},
		Remaining:  remainingFor(session),
	}

	err = engine.DistributeWinnings(context.Background(), session, TeamA, input)
	assert.True(t, apperrors.Is(err, apperrors.ErrGameNotInProgress))
	assert.Empty(t, transfer.calls)
}

// 测试付费复活按积分派奖
func TestSettlementEngine_DistributeWinnings_PayToSpawn(t *testing.T) {
	session, err := NewGameSession("session-1", "server", 100, ModePayToSpawnOneVsOne)
	require.NoError(t, err)
	_, err = session.JoinPlayer(TeamA, "alice")
	require.NoError(t, err)
	_, err = session.JoinPlayer(TeamB, "bob")
	require.NoError(t, err)

	// alice击杀bob三次: alice积分 3+10=13, bob积分 7
	for i := 0; i < 3; i++ {
		require.NoError(t, session.AddKill(TeamA, "alice", TeamB, "bob"))
	}

	transfer := &fakeTransferrer{}
	engine := NewSettlementEngine(transfer, testMint, zap.NewNop())
	input := &SettlementInput{
		Caller:     "server",
		Vault:      &VaultAuthority{Address: "vault-1"},
		VaultToken: &TokenAccount{Address: "vault-token-1", Owner: "vault-1", Mint: testMint, Balance: 200},
		Remaining:  remainingForOccupied(session),
	}

	err = engine.DistributeWinnings(context.Background(), session, TeamA, input)
	require.NoError(t, err)

	// 每积分计酬 bet/10 = 10: alice 130, bob 70
	require.Len(t, transfer.calls, 2)
	assert.Equal(t, transferCall{From: "vault-token-1", To: "alice-token", Amount: 130}, transfer.calls[0])
	assert.Equal(t, transferCall{From: "vault-token-1", To: "bob-token", Amount: 70}, transfer.calls[1])
	assert.Equal(t, StatusCompleted, session.Status)
}

// 测试转账原语失败时结算中止且不置为终态
func TestSettlementEngine_Refund_TransferFails(t *testing.T) {
	f := newRefundFixture(t, 200)
	f.transfer.failAll = true

	err := f.engine.Refund(context.Background(), f.session, f.input)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransferFailed))
	assert.Equal(t, StatusInProgress, f.session.Status)
}
