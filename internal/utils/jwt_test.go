package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// JWTTestSuite JWT管理器测试套件
type JWTTestSuite struct {
	suite.Suite
	manager *JWTManager
}

func (suite *JWTTestSuite) SetupTest() {
	suite.manager = NewJWTManager("test-secret-key", 15*time.Minute, 7*24*time.Hour)
}

// 测试生成与验证访问令牌
func (suite *JWTTestSuite) TestGenerateAndValidateAccessToken() {
	token, err := suite.manager.GenerateAccessToken("game-server-1", "authority")
	suite.NoError(err)
	suite.NotEmpty(token)

	claims, err := suite.manager.ValidateToken(token)
	suite.NoError(err)
	suite.Equal("game-server-1", claims.Identity)
	suite.Equal("authority", claims.Role)
	suite.Equal("access", claims.TokenType)
	suite.Equal("wager-game", claims.Issuer)
}

// 测试刷新令牌
func (suite *JWTTestSuite) TestRefreshToken() {
	refreshToken, err := suite.manager.GenerateRefreshToken("game-server-1")
	suite.NoError(err)

	claims, err := suite.manager.ValidateToken(refreshToken)
	suite.NoError(err)
	suite.Equal("refresh", claims.TokenType)

	accessToken, err := suite.manager.RefreshAccessToken(refreshToken, "authority")
	suite.NoError(err)
	suite.NotEmpty(accessToken)

	// 访问令牌不能用于刷新
	_, err = suite.manager.RefreshAccessToken(accessToken, "authority")
	suite.Error(err)
}

// 测试错误密钥签名的令牌
func (suite *JWTTestSuite) TestValidateTokenWrongSecret() {
	other := NewJWTManager("another-secret", 15*time.Minute, time.Hour)
	token, err := other.GenerateAccessToken("game-server-1", "authority")
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.Error(err)
}

// 测试过期令牌
func (suite *JWTTestSuite) TestValidateExpiredToken() {
	expired := NewJWTManager("test-secret-key", -time.Minute, time.Hour)
	token, err := expired.GenerateAccessToken("game-server-1", "authority")
	suite.NoError(err)

	_, err = suite.manager.ValidateToken(token)
	suite.Error(err)
}

// 测试令牌过期时间查询
func (suite *JWTTestSuite) TestGetTokenExpiry() {
	suite.Equal(15*time.Minute, suite.manager.GetTokenExpiry("access"))
	suite.Equal(7*24*time.Hour, suite.manager.GetTokenExpiry("refresh"))
}

func TestJWTTestSuite(t *testing.T) {
	suite.Run(t, new(JWTTestSuite))
}
