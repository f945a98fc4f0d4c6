package service

import (
	"context"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/wager-game/internal/errors"
	"github.com/wfunc/wager-game/internal/game"
	"github.com/wfunc/wager-game/internal/models"
	"github.com/wfunc/wager-game/internal/repository"
	"go.uber.org/zap"
)

// ledgerTransferrer 以数据库账本实现资金划转原语。
// 每笔成功的划转同时写入一条派奖流水。
// 必须绑定到一个事务内的仓储，保证扣减、入账与流水同生共死。
type ledgerTransferrer struct {
	accountRepo repository.TokenAccountRepository
	payoutRepo  repository.PayoutRepository
	sessionID   string
	payoutType  string
	logger      *zap.Logger
}

// Transfer 从金库向目标账户移动指定数额
func (t *ledgerTransferrer) Transfer(ctx context.Context, from, to string, amount uint64, auth *game.VaultAuthority) error {
	if auth == nil || auth.Address == "" {
		return apperrors.New(apperrors.ErrUnauthorizedDistribution, "缺少金库签名权威")
	}

	// 校验金库代币账户确由该权威持有
	source, err := t.accountRepo.FindByAddress(ctx, from)
	if err != nil {
		return err
	}
	if source.Owner != auth.Address {
		return apperrors.Newf(apperrors.ErrUnauthorizedDistribution,
			"账户属主 %s 与签名权威 %s 不符", source.Owner, auth.Address)
	}

	dest, err := t.accountRepo.FindByAddress(ctx, to)
	if err != nil {
		return err
	}
	if dest.Mint != source.Mint {
		return apperrors.Newf(apperrors.ErrInvalidTokenMint,
			"源账户mint %s 与目标账户mint %s 不符", source.Mint, dest.Mint)
	}

	if err := t.accountRepo.Transfer(ctx, from, to, amount); err != nil {
		return err
	}

	record := &models.PayoutRecord{
		OrderNo:     uuid.New().String(),
		SessionID:   t.sessionID,
		Player:      dest.Owner,
		FromAccount: from,
		ToAccount:   to,
		Amount:      amount,
		PayoutType:  t.payoutType,
		Status:      "success",
	}
	if err := t.payoutRepo.Create(ctx, record); err != nil {
		return err
	}

	t.logger.Debug("账本划转完成",
		zap.String("session_id", t.sessionID),
		zap.String("from", from),
		zap.String("to", to),
		zap.Uint64("amount", amount))
	return nil
}
