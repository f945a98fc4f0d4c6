package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/wager-game/internal/models"
	"github.com/wfunc/wager-game/internal/repository"
	"github.com/wfunc/wager-game/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// newTestRouter 在内存数据库上搭建完整路由
func newTestRouter(t *testing.T) (*Router, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db := repository.SetupTestDB()
	t.Cleanup(func() { repository.CleanupTestDB(db) })

	config := service.DefaultConfig()
	config.JWTSecret = "integration-test-secret"
	return NewRouter(db, config, zap.NewNop()), db
}

// doJSON 发送JSON请求
func doJSON(router *Router, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	router.GetEngine().ServeHTTP(w, req)
	return w
}

// registerAuthority 注册并返回访问令牌
func registerAuthority(t *testing.T, router *Router, identity string) string {
	w := doJSON(router, "POST", "/api/v1/auth/register", "", map[string]string{
		"identity": identity,
		"secret":   "super-secret-key",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp service.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

// fundPlayer 直接在账本里开户
func fundPlayer(t *testing.T, db *gorm.DB, player string, balance uint64) string {
	address := player + "-token"
	repo := repository.NewTokenAccountRepository(db)
	require.NoError(t, repo.Create(context.Background(), &models.TokenAccount{
		Address: address,
		Owner:   player,
		Mint:    "mint-usdc",
		Balance: balance,
	}))
	return address
}

// TestHealthCheck 测试健康检查
func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

// TestAuthFlow 测试注册、登录与令牌刷新
func TestAuthFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	// 注册
	w := doJSON(router, "POST", "/api/v1/auth/register", "", map[string]string{
		"identity": "game-server-1",
		"secret":   "super-secret-key",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var registered service.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &registered))

	// 重复注册被拒绝
	w = doJSON(router, "POST", "/api/v1/auth/register", "", map[string]string{
		"identity": "game-server-1",
		"secret":   "another-secret",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 登录
	w = doJSON(router, "POST", "/api/v1/auth/login", "", map[string]string{
		"identity": "game-server-1",
		"secret":   "super-secret-key",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	// 错误密钥
	w = doJSON(router, "POST", "/api/v1/auth/login", "", map[string]string{
		"identity": "game-server-1",
		"secret":   "wrong-secret",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 刷新令牌
	w = doJSON(router, "POST", "/api/v1/auth/refresh", "", map[string]string{
		"refresh_token": registered.RefreshToken,
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestSessionEndpointsRequireAuth 会话接口需要认证
func TestSessionEndpointsRequireAuth(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/api/v1/sessions", "", map[string]interface{}{
		"session_bet": 100,
		"game_mode":   "winner_takes_all_1v1",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(router, "GET", "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestWagerLifecycle 走完创建、入局、击杀、派奖全流程
func TestWagerLifecycle(t *testing.T) {
	router, db := newTestRouter(t)
	token := registerAuthority(t, router, "game-server-1")

	// 创建会话
	w := doJSON(router, "POST", "/api/v1/sessions", token, map[string]interface{}{
		"session_bet": 100,
		"game_mode":   "pay_to_spawn_1v1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created struct {
		Data struct {
			SessionID string `json:"session_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	sessionID := created.Data.SessionID
	require.NotEmpty(t, sessionID)

	aliceToken := fundPlayer(t, db, "alice", 1000)
	bobToken := fundPlayer(t, db, "bob", 1000)

	// 双方入局
	for _, join := range []map[string]interface{}{
		{"team": 0, "player": "alice", "token_account": aliceToken},
		{"team": 1, "player": "bob", "token_account": bobToken},
	} {
		w = doJSON(router, "POST", fmt.Sprintf("/api/v1/sessions/%s/join", sessionID), token, join)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// 余额不足的入局被拒绝
	poorToken := fundPlayer(t, db, "poor", 10)
	w = doJSON(router, "POST", fmt.Sprintf("/api/v1/sessions/%s/join", sessionID), token, map[string]interface{}{
		"team": 0, "player": "poor", "token_account": poorToken,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 上报击杀
	w = doJSON(router, "POST", fmt.Sprintf("/api/v1/sessions/%s/kills", sessionID), token, map[string]interface{}{
		"killer_team": 0, "killer": "alice",
		"victim_team": 1, "victim": "bob",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 派奖结算
	w = doJSON(router, "POST", fmt.Sprintf("/api/v1/sessions/%s/distribute", sessionID), token, map[string]interface{}{
		"winning_team": 0,
		"pairs": []map[string]string{
			{"player": "alice", "token_account": aliceToken},
			{"player": "bob", "token_account": bobToken},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 查询会话已结算
	w = doJSON(router, "GET", "/api/v1/sessions/"+sessionID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "completed")

	// 二次结算被拒绝
	w = doJSON(router, "POST", fmt.Sprintf("/api/v1/sessions/%s/refund", sessionID), token, map[string]interface{}{
		"pairs": []map[string]string{
			{"player": "alice", "token_account": aliceToken},
			{"player": "bob", "token_account": bobToken},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 流水可查
	w = doJSON(router, "GET", fmt.Sprintf("/api/v1/sessions/%s/payouts", sessionID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "winnings")
}

// TestRefundEndpoint 退款结算接口
func TestRefundEndpoint(t *testing.T) {
	router, db := newTestRouter(t)
	token := registerAuthority(t, router, "game-server-1")

	w := doJSON(router, "POST", "/api/v1/sessions", token, map[string]interface{}{
		"session_bet": 100,
		"game_mode":   "winner_takes_all_1v1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var created struct {
		Data struct {
			SessionID string `json:"session_id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	sessionID := created.Data.SessionID

	aliceToken := fundPlayer(t, db, "alice", 1000)
	w = doJSON(router, "POST", fmt.Sprintf("/api/v1/sessions/%s/join", sessionID), token, map[string]interface{}{
		"team": 0, "player": "alice", "token_account": aliceToken,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// 单人等待中的会话也可以退款，9个空席位各用一条占位凭证补齐
	pairs := []map[string]string{{"player": "alice", "token_account": aliceToken}}
	for len(pairs) < 10 {
		pairs = append(pairs, map[string]string{"player": "", "token_account": aliceToken})
	}
	w = doJSON(router, "POST", fmt.Sprintf("/api/v1/sessions/%s/refund", sessionID), token, map[string]interface{}{
		"pairs": pairs,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	accountRepo := repository.NewTokenAccountRepository(db)
	account, err := accountRepo.FindByAddress(context.Background(), aliceToken)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), account.Balance)
}
