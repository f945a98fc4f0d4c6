package service

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/wfunc/wager-game/internal/game"
)

// VaultDerivation 会话金库的派生结果
type VaultDerivation struct {
	Authority    game.VaultAuthority // 金库签名权威
	TokenAddress string              // 金库代币账户地址
	Bump         uint8               // 会话记录bump
	VaultBump    uint8               // 金库bump
	TokenBump    uint8               // 金库代币账户bump
}

// DeriveVault 从会话标识确定性派生金库地址与签名权威。
// 纯函数：同一会话标识永远得到同一结果。
func DeriveVault(sessionID string) *VaultDerivation {
	sessionSeed := deriveSeed("game_session", sessionID)
	vaultSeed := deriveSeed("vault", sessionID)
	tokenSeed := deriveSeed("vault_token", sessionID)

	return &VaultDerivation{
		Authority: game.VaultAuthority{
			Address: hex.EncodeToString(vaultSeed[:16]),
			Bump:    vaultSeed[31],
		},
		TokenAddress: hex.EncodeToString(tokenSeed[:16]),
		Bump:         sessionSeed[31],
		VaultBump:    vaultSeed[31],
		TokenBump:    tokenSeed[31],
	}
}

// deriveSeed 计算带前缀的派生种子
func deriveSeed(prefix, sessionID string) [32]byte {
	return sha256.Sum256([]byte(prefix + ":" + sessionID))
}
