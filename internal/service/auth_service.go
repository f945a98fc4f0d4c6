package service

import (
	"context"
	"errors"

	apperrors "github.com/wfunc/wager-game/internal/errors"
	"github.com/wfunc/wager-game/internal/models"
	"github.com/wfunc/wager-game/internal/repository"
	"github.com/wfunc/wager-game/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("身份或密钥错误")
	ErrAuthorityExists    = errors.New("权威已存在")
	ErrAuthorityDisabled  = errors.New("权威已被禁用")
)

// RegisterRequest 权威注册请求
type RegisterRequest struct {
	Identity string `json:"identity" binding:"required,min=3,max=64"`
	Secret   string `json:"secret" binding:"required,min=8"`
}

// LoginRequest 权威登录请求
type LoginRequest struct {
	Identity string `json:"identity" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

// AuthResponse 认证响应
type AuthResponse struct {
	Identity     string `json:"identity"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// AuthService 游戏服务器权威认证服务
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error)
}

// authService 认证服务实现
type authService struct {
	db            *gorm.DB
	authorityRepo repository.AuthorityRepository
	jwtManager    *utils.JWTManager
	log           *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(db *gorm.DB, authorityRepo repository.AuthorityRepository, jwtManager *utils.JWTManager, log *zap.Logger) AuthService {
	return &authService{
		db:            db,
		authorityRepo: authorityRepo,
		jwtManager:    jwtManager,
		log:           log,
	}
}

// Register 注册游戏服务器权威
func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if existing, _ := s.authorityRepo.FindByIdentity(ctx, req.Identity); existing != nil {
		return nil, ErrAuthorityExists
	}

	secretHash, err := utils.HashSecret(req.Secret)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrAuthentication, "密钥加密失败")
	}

	authority := &models.GameAuthority{
		Identity:   req.Identity,
		SecretHash: secretHash,
		Status:     "active",
	}
	if err := s.authorityRepo.Create(ctx, authority); err != nil {
		s.log.Error("注册权威失败", zap.Error(err), zap.String("identity", req.Identity))
		return nil, err
	}

	s.log.Info("权威注册成功", zap.String("identity", req.Identity))
	return s.issueTokens(req.Identity)
}

// Login 权威登录
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	authority, err := s.authorityRepo.FindByIdentity(ctx, req.Identity)
	if err != nil || authority == nil {
		s.log.Warn("登录失败: 权威不存在", zap.String("identity", req.Identity))
		return nil, ErrInvalidCredentials
	}

	if !authority.IsActive() {
		return nil, ErrAuthorityDisabled
	}

	valid, err := utils.VerifySecret(req.Secret, authority.SecretHash)
	if err != nil || !valid {
		s.log.Warn("登录失败: 密钥错误", zap.String("identity", req.Identity))
		return nil, ErrInvalidCredentials
	}

	_ = s.authorityRepo.TouchLastSeen(ctx, req.Identity)

	s.log.Info("权威登录成功", zap.String("identity", req.Identity))
	return s.issueTokens(req.Identity)
}

// RefreshToken 刷新访问令牌
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrTokenInvalid)
	}
	if claims.TokenType != "refresh" {
		return nil, apperrors.New(apperrors.ErrTokenInvalid, "不是刷新令牌")
	}

	// 权威可能在令牌有效期内被禁用
	authority, err := s.authorityRepo.FindByIdentity(ctx, claims.Identity)
	if err != nil || authority == nil || !authority.IsActive() {
		return nil, ErrAuthorityDisabled
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(claims.Identity, "authority")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrAuthentication, "生成访问令牌失败")
	}

	return &AuthResponse{
		Identity:     claims.Identity,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// ValidateToken 验证令牌并确认权威仍然可用
func (s *authService) ValidateToken(ctx context.Context, token string) (*utils.JWTClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	authority, err := s.authorityRepo.FindByIdentity(ctx, claims.Identity)
	if err != nil || authority == nil {
		return nil, ErrInvalidCredentials
	}
	if !authority.IsActive() {
		return nil, ErrAuthorityDisabled
	}

	return claims, nil
}

// issueTokens 签发一对访问/刷新令牌
func (s *authService) issueTokens(identity string) (*AuthResponse, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(identity, "authority")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrAuthentication, "生成访问令牌失败")
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(identity)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrAuthentication, "生成刷新令牌失败")
	}

	return &AuthResponse{
		Identity:     identity,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}
