package repository

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/wager-game/internal/errors"
	"github.com/wfunc/wager-game/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenAccountRepository 代币账户仓储接口
type TokenAccountRepository interface {
	BaseRepository
	Create(ctx context.Context, account *models.TokenAccount) error
	FindByAddress(ctx context.Context, address string) (*models.TokenAccount, error)
	FindByOwner(ctx context.Context, owner string) ([]*models.TokenAccount, error)
	LockForUpdate(ctx context.Context, address string) (*models.TokenAccount, error)
	AddBalance(ctx context.Context, address string, amount uint64) error
	DeductBalance(ctx context.Context, address string, amount uint64) error
	Transfer(ctx context.Context, from, to string, amount uint64) error
	WithTx(tx *gorm.DB) TokenAccountRepository
}

// tokenAccountRepo 代币账户仓储实现
type tokenAccountRepo struct {
	*BaseRepo
}

// NewTokenAccountRepository 创建代币账户仓储
func NewTokenAccountRepository(db *gorm.DB) TokenAccountRepository {
	return &tokenAccountRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// WithTx 使用事务
func (r *tokenAccountRepo) WithTx(tx *gorm.DB) TokenAccountRepository {
	return &tokenAccountRepo{BaseRepo: &BaseRepo{db: tx}}
}

// Create 创建代币账户
func (r *tokenAccountRepo) Create(ctx context.Context, account *models.TokenAccount) error {
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}
	return nil
}

// FindByAddress 按地址查找账户
func (r *tokenAccountRepo) FindByAddress(ctx context.Context, address string) (*models.TokenAccount, error) {
	var account models.TokenAccount
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrAccountNotFound, "address: %s", address)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return &account, nil
}

// FindByOwner 按属主查找全部账户
func (r *tokenAccountRepo) FindByOwner(ctx context.Context, owner string) ([]*models.TokenAccount, error) {
	var accounts []*models.TokenAccount
	err := r.db.WithContext(ctx).Where("owner = ?", owner).Find(&accounts).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return accounts, nil
}

// LockForUpdate 以悲观锁加载账户
func (r *tokenAccountRepo) LockForUpdate(ctx context.Context, address string) (*models.TokenAccount, error) {
	var account models.TokenAccount
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("address = ?", address).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrAccountNotFound, "address: %s", address)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return &account, nil
}

// AddBalance 增加余额
func (r *tokenAccountRepo) AddBalance(ctx context.Context, address string, amount uint64) error {
	result := r.db.WithContext(ctx).
		Model(&models.TokenAccount{}).
		Where("address = ?", address).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return apperrors.Wrap(result.Error, apperrors.ErrDatabaseUpdate)
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrAccountNotFound, "address: %s", address)
	}
	return nil
}

// DeductBalance 扣减余额，余额不足时拒绝
func (r *tokenAccountRepo) DeductBalance(ctx context.Context, address string, amount uint64) error {
	result := r.db.WithContext(ctx).
		Model(&models.TokenAccount{}).
		Where("address = ? AND balance >= ?", address, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if result.Error != nil {
		return apperrors.Wrap(result.Error, apperrors.ErrDatabaseUpdate)
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrInsufficientBalance, "address: %s, amount: %d", address, amount)
	}
	return nil
}

// Transfer 在两个账户间移动余额。
// 应在调用方事务内使用，扣减与入账要么同时生效、要么同时回滚。
func (r *tokenAccountRepo) Transfer(ctx context.Context, from, to string, amount uint64) error {
	if err := r.DeductBalance(ctx, from, amount); err != nil {
		return err
	}
	if err := r.AddBalance(ctx, to, amount); err != nil {
		return err
	}
	return nil
}
