package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	apperrors "github.com/wfunc/wager-game/internal/errors"
	"github.com/wfunc/wager-game/internal/game"
	"github.com/wfunc/wager-game/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WagerSessionRepository 对局会话仓储接口
type WagerSessionRepository interface {
	BaseRepository
	Create(ctx context.Context, session *game.GameSession, vaultAddress string) error
	FindBySessionID(ctx context.Context, sessionID string) (*game.GameSession, error)
	LockBySessionID(ctx context.Context, sessionID string) (*game.GameSession, error)
	Save(ctx context.Context, session *game.GameSession) error
	MarkSettled(ctx context.Context, sessionID string) error
	List(ctx context.Context, status string, p *Pagination) ([]*models.WagerSession, error)
	WithTx(tx *gorm.DB) WagerSessionRepository
}

// wagerSessionRepo 对局会话仓储实现
type wagerSessionRepo struct {
	*BaseRepo
}

// NewWagerSessionRepository 创建对局会话仓储
func NewWagerSessionRepository(db *gorm.DB) WagerSessionRepository {
	return &wagerSessionRepo{
		BaseRepo: &BaseRepo{db: db},
	}
}

// WithTx 使用事务
func (r *wagerSessionRepo) WithTx(tx *gorm.DB) WagerSessionRepository {
	return &wagerSessionRepo{BaseRepo: &BaseRepo{db: tx}}
}

// teamPayload 两队席位数据的JSON载荷
type teamPayload struct {
	TeamA game.Team `json:"team_a"`
	TeamB game.Team `json:"team_b"`
}

// Create 持久化新会话
func (r *wagerSessionRepo) Create(ctx context.Context, session *game.GameSession, vaultAddress string) error {
	record, err := toRecord(session, vaultAddress)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert)
	}
	return nil
}

// FindBySessionID 按会话标识加载聚合
func (r *wagerSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*game.GameSession, error) {
	var record models.WagerSession
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrSessionNotFound, "session: %s", sessionID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return fromRecord(&record)
}

// LockBySessionID 以行锁加载聚合（结算路径使用，保证单写者）
func (r *wagerSessionRepo) LockBySessionID(ctx context.Context, sessionID string) (*game.GameSession, error) {
	var record models.WagerSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("session_id = ?", sessionID).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrSessionNotFound, "session: %s", sessionID)
		}
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return fromRecord(&record)
}

// Save 回写聚合的可变部分（队伍数据与状态）
func (r *wagerSessionRepo) Save(ctx context.Context, session *game.GameSession) error {
	teamData, err := marshalTeams(session)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"status":    string(session.Status),
		"team_data": teamData,
	}

	result := r.db.WithContext(ctx).
		Model(&models.WagerSession{}).
		Where("session_id = ?", session.SessionID).
		Updates(updates)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, apperrors.ErrDatabaseUpdate)
	}
	if result.RowsAffected == 0 {
		return apperrors.Newf(apperrors.ErrSessionNotFound, "session: %s", session.SessionID)
	}
	return nil
}

// MarkSettled 记录结算完成时间
func (r *wagerSessionRepo) MarkSettled(ctx context.Context, sessionID string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.WagerSession{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":     string(game.StatusCompleted),
			"settled_at": &now,
		}).Error
}

// List 按状态分页查询会话
func (r *wagerSessionRepo) List(ctx context.Context, status string, p *Pagination) ([]*models.WagerSession, error) {
	query := r.db.WithContext(ctx).Model(&models.WagerSession{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&p.Total).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}

	var records []*models.WagerSession
	err := query.Scopes(Paginate(p)).Order("created_at DESC").Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery)
	}
	return records, nil
}

// toRecord 聚合转持久化记录
func toRecord(session *game.GameSession, vaultAddress string) (*models.WagerSession, error) {
	teamData, err := marshalTeams(session)
	if err != nil {
		return nil, err
	}
	return &models.WagerSession{
		SessionID:      session.SessionID,
		Authority:      session.Authority,
		SessionBet:     session.SessionBet,
		GameMode:       string(session.Mode),
		Status:         string(session.Status),
		TeamData:       teamData,
		VaultAddress:   vaultAddress,
		Bump:           session.Bump,
		VaultBump:      session.VaultBump,
		VaultTokenBump: session.VaultTokenBump,
		StartedAt:      session.CreatedAt,
	}, nil
}

// fromRecord 持久化记录转聚合
func fromRecord(record *models.WagerSession) (*game.GameSession, error) {
	var teams teamPayload
	if record.TeamData != "" {
		if err := json.Unmarshal([]byte(record.TeamData), &teams); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrDataIntegrity, "队伍数据损坏")
		}
	}

	return &game.GameSession{
		SessionID:      record.SessionID,
		Authority:      record.Authority,
		SessionBet:     record.SessionBet,
		Mode:           game.GameMode(record.GameMode),
		TeamA:          teams.TeamA,
		TeamB:          teams.TeamB,
		Status:         game.GameStatus(record.Status),
		CreatedAt:      record.StartedAt,
		Bump:           record.Bump,
		VaultBump:      record.VaultBump,
		VaultTokenBump: record.VaultTokenBump,
	}, nil
}

// marshalTeams 序列化两队席位数据
func marshalTeams(session *game.GameSession) (string, error) {
	data, err := json.Marshal(teamPayload{TeamA: session.TeamA, TeamB: session.TeamB})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrDataIntegrity)
	}
	return string(data), nil
}
