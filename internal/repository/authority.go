package repository

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/wfunc/wager-game/internal/errors"
	"github.com/wfunc/wager-game/internal/models"
	"gorm.io/gorm"
)

// AuthorityRepository 游戏服务器权威仓储接口
type AuthorityRepository interface {
	BaseRepository
	Create(ctx context.Context, authority *models.GameAuthority) error
	FindByIdentity(ctx context.Context, identity string) (*models.GameAuthority, error)
	TouchLastSeen(ctx context.Context, identity string) error
}

// authorityRepo 权威仓储实现
type authorityRepo struct {
	*BaseRepo
}

// NewAuthorityRepository 创建权威仓储
func NewAuthorityRepository(db *gorm.DB) AuthorityRepository {
	return &authorityRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// Create 注册新的权威
func (r *authorityRepo) Create(ctx context.Context, authority *models.GameAuthority) error {
	if err := r.db.WithContext(ctx).Create(authority).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}
	return nil
}

// FindByIdentity 按身份查找权威
func (r *authorityRepo) FindByIdentity(ctx context.Context, identity string) (*models.GameAuthority, error) {
	var authority models.GameAuthority
	err := r.db.WithContext(ctx).Where("identity = ?", identity).First(&authority).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrNotFound, "authority: %s", identity)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return &authority, nil
}

// TouchLastSeen 更新最近活跃时间
func (r *authorityRepo) TouchLastSeen(ctx context.Context, identity string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.GameAuthority{}).
		Where("identity = ?", identity).
		Update("last_seen_at", &now).Error
}
