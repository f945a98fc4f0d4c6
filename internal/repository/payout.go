package repository

import (
	"context"

	apperrors "github.com/wfunc/wager-game/internal/errors"
	"github.com/wfunc/wager-game/internal/models"
	"gorm.io/gorm"
)

// PayoutRepository 派奖流水仓储接口
type PayoutRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.PayoutRecord) error
	FindBySessionID(ctx context.Context, sessionID string) ([]*models.PayoutRecord, error)
	FindByPlayer(ctx context.Context, player string, p *Pagination) ([]*models.PayoutRecord, error)
	WithTx(tx *gorm.DB) PayoutRepository
}

// payoutRepo 派奖流水仓储实现
type payoutRepo struct {
	*BaseRepo
}

// NewPayoutRepository 创建派奖流水仓储
func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// WithTx 使用事务
func (r *payoutRepo) WithTx(tx *gorm.DB) PayoutRepository {
	return &payoutRepo{BaseRepo: &BaseRepo{db: tx}}
}

// Create 写入一条流水
func (r *payoutRepo) Create(ctx context.Context, record *models.PayoutRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}
	return nil
}

// FindBySessionID 查询会话的全部流水
func (r *payoutRepo) FindBySessionID(ctx context.Context, sessionID string) ([]*models.PayoutRecord, error) {
	var records []*models.PayoutRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return records, nil
}

// FindByPlayer 分页查询玩家的流水
func (r *payoutRepo) FindByPlayer(ctx context.Context, player string, p *Pagination) ([]*models.PayoutRecord, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PayoutRecord{}).
		Where("player = ?", player)

	if err := query.Count(&p.Total).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	var records []*models.PayoutRecord
	err := query.Scopes(Paginate(p)).Order("id DESC").Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return records, nil
}
