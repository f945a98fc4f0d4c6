package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/wager-game/internal/errors"
	"github.com/wfunc/wager-game/internal/game"
	"github.com/wfunc/wager-game/internal/models"
	"github.com/wfunc/wager-game/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EvidencePair 结算请求中的一对凭证：玩家身份与其收款代币账户。
// 退款时空席位也要占一对，玩家身份留空。
type EvidencePair struct {
	Player       string `json:"player"`
	TokenAccount string `json:"token_account" binding:"required"`
}

// WagerService 对局与结算编排服务
type WagerService struct {
	db          *gorm.DB
	sessionRepo repository.WagerSessionRepository
	accountRepo repository.TokenAccountRepository
	payoutRepo  repository.PayoutRepository
	events      *EventHub
	mint        string
	minBet      uint64
	maxBet      uint64
	logger      *zap.Logger

	// 每个会话一把锁，进程内串行化同一会话的并发操作
	sessionLocks sync.Map
}

// NewWagerService 创建对局服务
func NewWagerService(db *gorm.DB, cfg *Config, events *EventHub, logger *zap.Logger) *WagerService {
	return &WagerService{
		db:          db,
		sessionRepo: repository.NewWagerSessionRepository(db),
		accountRepo: repository.NewTokenAccountRepository(db),
		payoutRepo:  repository.NewPayoutRepository(db),
		events:      events,
		mint:        cfg.Mint,
		minBet:      cfg.MinBet,
		maxBet:      cfg.MaxBet,
		logger:      logger,
	}
}

// lockSession 获取会话级互斥锁
func (s *WagerService) lockSession(sessionID string) func() {
	value, _ := s.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// CreateSession 创建新会话并开设金库代币账户
func (s *WagerService) CreateSession(ctx context.Context, authority string, sessionBet uint64, mode game.GameMode) (*game.GameSession, error) {
	if sessionBet < s.minBet || (s.maxBet > 0 && sessionBet > s.maxBet) {
		return nil, apperrors.Newf(apperrors.ErrInvalidBetAmount,
			"bet: %d, 允许范围: [%d, %d]", sessionBet, s.minBet, s.maxBet)
	}

	sessionID := uuid.New().String()

	session, err := game.NewGameSession(sessionID, authority, sessionBet, mode)
	if err != nil {
		return nil, err
	}

	vault := DeriveVault(sessionID)
	session.Bump = vault.Bump
	session.VaultBump = vault.VaultBump
	session.VaultTokenBump = vault.TokenBump

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.sessionRepo.WithTx(tx).Create(ctx, session, vault.Authority.Address); err != nil {
			return err
		}
		return s.accountRepo.WithTx(tx).Create(ctx, &models.TokenAccount{
			Address: vault.TokenAddress,
			Owner:   vault.Authority.Address,
			Mint:    s.mint,
			Balance: 0,
			IsVault: true,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("创建对局会话",
		zap.String("session_id", sessionID),
		zap.String("authority", authority),
		zap.Uint64("session_bet", sessionBet),
		zap.String("mode", string(mode)))

	s.events.Publish(EventSessionCreated, sessionID, map[string]interface{}{
		"authority":   authority,
		"session_bet": sessionBet,
		"mode":        string(mode),
	})
	return session, nil
}

// JoinSession 玩家加入会话并托管一份投注到金库
func (s *WagerService) JoinSession(ctx context.Context, sessionID string, side game.TeamSide, player, playerAccount string) (int, error) {
	unlock := s.lockSession(sessionID)
	defer unlock()

	var slot int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessionRepo := s.sessionRepo.WithTx(tx)
		accountRepo := s.accountRepo.WithTx(tx)
		payoutRepo := s.payoutRepo.WithTx(tx)

		session, err := sessionRepo.LockBySessionID(ctx, sessionID)
		if err != nil {
			return err
		}

		source, err := accountRepo.FindByAddress(ctx, playerAccount)
		if err != nil {
			return err
		}
		if source.Owner != player {
			return apperrors.Newf(apperrors.ErrInvalidPlayerTokenAccount,
				"账户属主 %s 与玩家 %s 不符", source.Owner, player)
		}
		if source.Mint != s.mint {
			return apperrors.Newf(apperrors.ErrInvalidTokenMint, "mint: %s", source.Mint)
		}

		slot, err = session.JoinPlayer(side, player)
		if err != nil {
			return err
		}

		// 托管投注: 玩家账户 -> 金库代币账户
		vault := DeriveVault(sessionID)
		if err := accountRepo.Transfer(ctx, playerAccount, vault.TokenAddress, session.SessionBet); err != nil {
			return err
		}
		if err := payoutRepo.Create(ctx, &models.PayoutRecord{
			OrderNo:     uuid.New().String(),
			SessionID:   sessionID,
			Player:      player,
			FromAccount: playerAccount,
			ToAccount:   vault.TokenAddress,
			Amount:      session.SessionBet,
			PayoutType:  "escrow",
			Status:      "success",
		}); err != nil {
			return err
		}

		return sessionRepo.Save(ctx, session)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("玩家加入会话",
		zap.String("session_id", sessionID),
		zap.String("player", player),
		zap.String("team", side.String()),
		zap.Int("slot", slot))

	s.events.Publish(EventPlayerJoined, sessionID, map[string]interface{}{
		"player": player,
		"team":   side.String(),
		"slot":   slot,
	})
	return slot, nil
}

// RecordKill 记录一次击杀（仅会话创建者可上报）
func (s *WagerService) RecordKill(ctx context.Context, caller, sessionID string, killerSide game.TeamSide, killer string, victimSide game.TeamSide, victim string) error {
	unlock := s.lockSession(sessionID)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessionRepo := s.sessionRepo.WithTx(tx)

		session, err := sessionRepo.LockBySessionID(ctx, sessionID)
		if err != nil {
			return err
		}
		if caller != session.Authority {
			return apperrors.Newf(apperrors.ErrUnauthorizedDistribution,
				"caller: %s, authority: %s", caller, session.Authority)
		}

		if err := session.AddKill(killerSide, killer, victimSide, victim); err != nil {
			return err
		}
		return sessionRepo.Save(ctx, session)
	})
	if err != nil {
		return err
	}

	s.events.Publish(EventKillRecorded, sessionID, map[string]interface{}{
		"killer": killer,
		"victim": victim,
	})
	return nil
}

// PayToSpawn 付费复活：玩家再付一份投注换取复活次数补充
func (s *WagerService) PayToSpawn(ctx context.Context, sessionID string, side game.TeamSide, player, playerAccount string) error {
	unlock := s.lockSession(sessionID)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessionRepo := s.sessionRepo.WithTx(tx)
		accountRepo := s.accountRepo.WithTx(tx)
		payoutRepo := s.payoutRepo.WithTx(tx)

		session, err := sessionRepo.LockBySessionID(ctx, sessionID)
		if err != nil {
			return err
		}
		if !session.Mode.IsPayToSpawn() {
			return apperrors.Newf(apperrors.ErrNotPayToSpawn, "mode: %s", session.Mode)
		}

		slotIndex, err := session.PlayerIndex(side, player)
		if err != nil {
			return err
		}

		source, err := accountRepo.FindByAddress(ctx, playerAccount)
		if err != nil {
			return err
		}
		if source.Owner != player {
			return apperrors.Newf(apperrors.ErrInvalidPlayerTokenAccount,
				"账户属主 %s 与玩家 %s 不符", source.Owner, player)
		}

		if err := session.AddSpawns(side, slotIndex); err != nil {
			return err
		}

		vault := DeriveVault(sessionID)
		if err := accountRepo.Transfer(ctx, playerAccount, vault.TokenAddress, session.SessionBet); err != nil {
			return err
		}
		if err := payoutRepo.Create(ctx, &models.PayoutRecord{
			OrderNo:     uuid.New().String(),
			SessionID:   sessionID,
			Player:      player,
			FromAccount: playerAccount,
			ToAccount:   vault.TokenAddress,
			Amount:      session.SessionBet,
			PayoutType:  "spawn_purchase",
			Status:      "success",
		}); err != nil {
			return err
		}

		return sessionRepo.Save(ctx, session)
	})
	if err != nil {
		return err
	}

	s.events.Publish(EventSpawnPurchased, sessionID, map[string]interface{}{
		"player": player,
		"team":   side.String(),
	})
	return nil
}

// RefundWager 等额退款结算整个会话
func (s *WagerService) RefundWager(ctx context.Context, caller, sessionID string, pairs []EvidencePair) error {
	return s.settle(ctx, sessionID, "refund", func(ctx context.Context, engine *game.SettlementEngine, session *game.GameSession, in *game.SettlementInput) error {
		return engine.Refund(ctx, session, in)
	}, caller, pairs, nil)
}

// DistributeWinnings 按模式派发奖金结算整个会话
func (s *WagerService) DistributeWinnings(ctx context.Context, caller, sessionID string, winningSide game.TeamSide, pairs []EvidencePair) error {
	return s.settle(ctx, sessionID, "winnings", func(ctx context.Context, engine *game.SettlementEngine, session *game.GameSession, in *game.SettlementInput) error {
		return engine.DistributeWinnings(ctx, session, winningSide, in)
	}, caller, pairs, &winningSide)
}

// settleFunc 一次具体结算路径的执行函数
type settleFunc func(ctx context.Context, engine *game.SettlementEngine, session *game.GameSession, in *game.SettlementInput) error

// settle 结算公共骨架：会话锁 + 单事务内校验、转账与状态落库
func (s *WagerService) settle(ctx context.Context, sessionID, payoutType string, run settleFunc, caller string, pairs []EvidencePair, winningSide *game.TeamSide) error {
	unlock := s.lockSession(sessionID)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessionRepo := s.sessionRepo.WithTx(tx)
		accountRepo := s.accountRepo.WithTx(tx)
		payoutRepo := s.payoutRepo.WithTx(tx)

		session, err := sessionRepo.LockBySessionID(ctx, sessionID)
		if err != nil {
			return err
		}

		vault := DeriveVault(sessionID)
		vaultToken, err := s.loadTokenEvidence(ctx, accountRepo, vault.TokenAddress)
		if err != nil {
			return err
		}
		if vaultToken == nil {
			return apperrors.Newf(apperrors.ErrAccountNotFound, "金库账户: %s", vault.TokenAddress)
		}

		remaining, err := s.buildRemaining(ctx, accountRepo, pairs)
		if err != nil {
			return err
		}

		engine := game.NewSettlementEngine(&ledgerTransferrer{
			accountRepo: accountRepo,
			payoutRepo:  payoutRepo,
			sessionID:   sessionID,
			payoutType:  payoutType,
			logger:      s.logger,
		}, s.mint, s.logger)

		input := &game.SettlementInput{
			Caller:     caller,
			Vault:      &vault.Authority,
			VaultToken: vaultToken,
			Remaining:  remaining,
		}
		if err := run(ctx, engine, session, input); err != nil {
			return err
		}

		if err := sessionRepo.Save(ctx, session); err != nil {
			return err
		}
		return sessionRepo.MarkSettled(ctx, sessionID)
	})
	if err != nil {
		return err
	}

	data := map[string]interface{}{"payout_type": payoutType}
	if winningSide != nil {
		data["winning_team"] = winningSide.String()
	}
	s.events.Publish(EventSessionSettled, sessionID, data)

	s.logger.Info("会话结算完成",
		zap.String("session_id", sessionID),
		zap.String("payout_type", payoutType))
	return nil
}

// buildRemaining 将凭证对展开为引擎所需的有序列表，
// 并从账本加载代币账户证据；账户不存在时保留nil由引擎拒绝。
func (s *WagerService) buildRemaining(ctx context.Context, accountRepo repository.TokenAccountRepository, pairs []EvidencePair) ([]game.RemainingAccount, error) {
	remaining := make([]game.RemainingAccount, 0, len(pairs)*2)
	for _, pair := range pairs {
		token, err := s.loadTokenEvidence(ctx, accountRepo, pair.TokenAccount)
		if err != nil {
			return nil, err
		}
		remaining = append(remaining,
			game.RemainingAccount{Address: pair.Player},
			game.RemainingAccount{Address: pair.TokenAccount, Token: token},
		)
	}
	return remaining, nil
}

// loadTokenEvidence 加载代币账户证据，不存在时返回nil
func (s *WagerService) loadTokenEvidence(ctx context.Context, accountRepo repository.TokenAccountRepository, address string) (*game.TokenAccount, error) {
	account, err := accountRepo.FindByAddress(ctx, address)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrAccountNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &game.TokenAccount{
		Address: account.Address,
		Owner:   account.Owner,
		Mint:    account.Mint,
		Balance: account.Balance,
	}, nil
}

// GetSession 查询会话聚合
func (s *WagerService) GetSession(ctx context.Context, sessionID string) (*game.GameSession, error) {
	return s.sessionRepo.FindBySessionID(ctx, sessionID)
}

// ListSessions 按状态分页查询会话
func (s *WagerService) ListSessions(ctx context.Context, status string, p *repository.Pagination) ([]*models.WagerSession, error) {
	return s.sessionRepo.List(ctx, status, p)
}

// GetPayouts 查询会话派奖流水
func (s *WagerService) GetPayouts(ctx context.Context, sessionID string) ([]*models.PayoutRecord, error) {
	return s.payoutRepo.FindBySessionID(ctx, sessionID)
}
