package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/wager-game/internal/errors"
	"github.com/wfunc/wager-game/internal/game"
	"github.com/wfunc/wager-game/internal/middleware"
	"github.com/wfunc/wager-game/internal/repository"
	"github.com/wfunc/wager-game/internal/service"
	"go.uber.org/zap"
)

// WagerHandler 对局处理器
type WagerHandler struct {
	wagerService *service.WagerService
	logger       *zap.Logger
}

// NewWagerHandler 创建对局处理器
func NewWagerHandler(wagerService *service.WagerService, logger *zap.Logger) *WagerHandler {
	return &WagerHandler{
		wagerService: wagerService,
		logger:       logger,
	}
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	SessionBet uint64 `json:"session_bet" binding:"required"`
	GameMode   string `json:"game_mode" binding:"required"`
}

// CreateSession 创建对局会话
func (h *WagerHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	identity, _ := middleware.GetIdentity(c)
	session, err := h.wagerService.CreateSession(c.Request.Context(), identity, req.SessionBet, game.GameMode(req.GameMode))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "会话创建成功",
		Data:    session,
	})
}

// JoinSessionRequest 入局请求
type JoinSessionRequest struct {
	Team         uint8  `json:"team"`
	Player       string `json:"player" binding:"required"`
	TokenAccount string `json:"token_account" binding:"required"`
}

// JoinSession 玩家入局
func (h *WagerHandler) JoinSession(c *gin.Context) {
	var req JoinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	slot, err := h.wagerService.JoinSession(c.Request.Context(), c.Param("session_id"),
		game.TeamSide(req.Team), req.Player, req.TokenAccount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "入局成功",
		Data:    gin.H{"slot": slot},
	})
}

// RecordKillRequest 击杀上报请求
type RecordKillRequest struct {
	KillerTeam uint8  `json:"killer_team"`
	Killer     string `json:"killer" binding:"required"`
	VictimTeam uint8  `json:"victim_team"`
	Victim     string `json:"victim" binding:"required"`
}

// RecordKill 上报击杀
func (h *WagerHandler) RecordKill(c *gin.Context) {
	var req RecordKillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	identity, _ := middleware.GetIdentity(c)
	err := h.wagerService.RecordKill(c.Request.Context(), identity, c.Param("session_id"),
		game.TeamSide(req.KillerTeam), req.Killer, game.TeamSide(req.VictimTeam), req.Victim)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "击杀已记录"})
}

// PayToSpawnRequest 付费复活请求
type PayToSpawnRequest struct {
	Team         uint8  `json:"team"`
	Player       string `json:"player" binding:"required"`
	TokenAccount string `json:"token_account" binding:"required"`
}

// PayToSpawn 付费复活
func (h *WagerHandler) PayToSpawn(c *gin.Context) {
	var req PayToSpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	err := h.wagerService.PayToSpawn(c.Request.Context(), c.Param("session_id"),
		game.TeamSide(req.Team), req.Player, req.TokenAccount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "复活次数已补充"})
}

// RefundRequest 退款结算请求
type RefundRequest struct {
	Pairs []service.EvidencePair `json:"pairs" binding:"required"`
}

// RefundWager 退款结算
func (h *WagerHandler) RefundWager(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	identity, _ := middleware.GetIdentity(c)
	err := h.wagerService.RefundWager(c.Request.Context(), identity, c.Param("session_id"), req.Pairs)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "退款结算完成"})
}

// DistributeRequest 派奖结算请求
type DistributeRequest struct {
	WinningTeam uint8                  `json:"winning_team"`
	Pairs       []service.EvidencePair `json:"pairs" binding:"required"`
}

// DistributeWinnings 派奖结算
func (h *WagerHandler) DistributeWinnings(c *gin.Context) {
	var req DistributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	identity, _ := middleware.GetIdentity(c)
	err := h.wagerService.DistributeWinnings(c.Request.Context(), identity, c.Param("session_id"),
		game.TeamSide(req.WinningTeam), req.Pairs)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "派奖结算完成"})
}

// GetSession 查询会话
func (h *WagerHandler) GetSession(c *gin.Context) {
	session, err := h.wagerService.GetSession(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: session})
}

// ListSessions 分页查询会话
func (h *WagerHandler) ListSessions(c *gin.Context) {
	var query struct {
		Status   string `form:"status"`
		Page     int    `form:"page,default=1"`
		PageSize int    `form:"page_size,default=20"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		h.badRequest(c, err)
		return
	}

	p := repository.NewPagination(query.Page, query.PageSize)
	sessions, err := h.wagerService.ListSessions(c.Request.Context(), query.Status, p)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Data: gin.H{
			"sessions":  sessions,
			"total":     p.Total,
			"page":      p.Page,
			"page_size": p.PageSize,
		},
	})
}

// GetPayouts 查询会话派奖流水
func (h *WagerHandler) GetPayouts(c *gin.Context) {
	payouts, err := h.wagerService.GetPayouts(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Data: payouts})
}

// badRequest 参数绑定失败响应
func (h *WagerHandler) badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:    "INVALID_REQUEST",
		Message: "请求参数错误",
		Details: err.Error(),
	})
}

// writeError 业务错误响应，错误码映射HTTP状态
func (h *WagerHandler) writeError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		if apperrors.IsCritical(err) {
			h.logger.Error("请求处理失败", zap.Error(err), zap.String("path", c.FullPath()))
		}
		c.JSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(appErr, c.GetHeader("X-Request-ID")))
		return
	}

	h.logger.Error("未分类错误", zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Code:    "INTERNAL_ERROR",
		Message: err.Error(),
	})
}
