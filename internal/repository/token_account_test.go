package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	apperrors "github.com/wfunc/wager-game/internal/errors"
	"github.com/wfunc/wager-game/internal/models"
	"gorm.io/gorm"
)

// TokenAccountRepositoryTestSuite 代币账户仓储测试套件
type TokenAccountRepositoryTestSuite struct {
	suite.Suite
	db          *gorm.DB
	accountRepo TokenAccountRepository
	payoutRepo  PayoutRepository
}

func (suite *TokenAccountRepositoryTestSuite) SetupTest() {
	suite.db = SetupTestDB()
	suite.accountRepo = NewTokenAccountRepository(suite.db)
	suite.payoutRepo = NewPayoutRepository(suite.db)
}

func (suite *TokenAccountRepositoryTestSuite) TearDownTest() {
	CleanupTestDB(suite.db)
}

// 创建测试账户
func (suite *TokenAccountRepositoryTestSuite) createTestAccount(address, owner string, balance uint64) *models.TokenAccount {
	account := &models.TokenAccount{
		Address: address,
		Owner:   owner,
		Mint:    "mint-usdc",
		Balance: balance,
	}
	err := suite.accountRepo.Create(context.Background(), account)
	suite.Require().NoError(err)
	return account
}

// TestTokenAccountRepository_CreateAndFind 测试创建与查找
func (suite *TokenAccountRepositoryTestSuite) TestTokenAccountRepository_CreateAndFind() {
	ctx := context.Background()
	suite.createTestAccount("alice-token", "alice", 1000)

	found, err := suite.accountRepo.FindByAddress(ctx, "alice-token")
	suite.Require().NoError(err)
	suite.Equal("alice", found.Owner)
	suite.Equal(uint64(1000), found.Balance)

	_, err = suite.accountRepo.FindByAddress(ctx, "nope")
	suite.True(apperrors.Is(err, apperrors.ErrAccountNotFound))

	accounts, err := suite.accountRepo.FindByOwner(ctx, "alice")
	suite.Require().NoError(err)
	suite.Len(accounts, 1)
}

// TestTokenAccountRepository_AddAndDeduct 测试余额加减
func (suite *TokenAccountRepositoryTestSuite) TestTokenAccountRepository_AddAndDeduct() {
	ctx := context.Background()
	suite.createTestAccount("alice-token", "alice", 1000)

	err := suite.accountRepo.AddBalance(ctx, "alice-token", 500)
	suite.Require().NoError(err)

	err = suite.accountRepo.DeductBalance(ctx, "alice-token", 300)
	suite.Require().NoError(err)

	found, err := suite.accountRepo.FindByAddress(ctx, "alice-token")
	suite.Require().NoError(err)
	suite.Equal(uint64(1200), found.Balance)

	// 余额不足时扣减被拒绝且余额不变
	err = suite.accountRepo.DeductBalance(ctx, "alice-token", 5000)
	suite.True(apperrors.Is(err, apperrors.ErrInsufficientBalance))

	found, err = suite.accountRepo.FindByAddress(ctx, "alice-token")
	suite.Require().NoError(err)
	suite.Equal(uint64(1200), found.Balance)

	// 不存在的账户
	err = suite.accountRepo.AddBalance(ctx, "nope", 100)
	suite.True(apperrors.Is(err, apperrors.ErrAccountNotFound))
}

// TestTokenAccountRepository_Transfer 测试账户间划转
func (suite *TokenAccountRepositoryTestSuite) TestTokenAccountRepository_Transfer() {
	ctx := context.Background()
	suite.createTestAccount("vault-token", "vault", 500)
	suite.createTestAccount("bob-token", "bob", 0)

	err := suite.accountRepo.Transfer(ctx, "vault-token", "bob-token", 200)
	suite.Require().NoError(err)

	vault, err := suite.accountRepo.FindByAddress(ctx, "vault-token")
	suite.Require().NoError(err)
	suite.Equal(uint64(300), vault.Balance)

	bob, err := suite.accountRepo.FindByAddress(ctx, "bob-token")
	suite.Require().NoError(err)
	suite.Equal(uint64(200), bob.Balance)

	// 余额不足的划转整体失败
	err = suite.accountRepo.Transfer(ctx, "vault-token", "bob-token", 9999)
	suite.True(apperrors.Is(err, apperrors.ErrInsufficientBalance))
}

// TestPayoutRepository_CreateAndQuery 测试派奖流水
func (suite *TokenAccountRepositoryTestSuite) TestPayoutRepository_CreateAndQuery() {
	ctx := context.Background()

	records := []*models.PayoutRecord{
		{OrderNo: "order-1", SessionID: "session-1", Player: "alice", FromAccount: "vault-token", ToAccount: "alice-token", Amount: 100, PayoutType: "refund"},
		{OrderNo: "order-2", SessionID: "session-1", Player: "bob", FromAccount: "vault-token", ToAccount: "bob-token", Amount: 100, PayoutType: "refund"},
		{OrderNo: "order-3", SessionID: "session-2", Player: "alice", FromAccount: "vault-token-2", ToAccount: "alice-token", Amount: 200, PayoutType: "winnings"},
	}
	for _, record := range records {
		suite.Require().NoError(suite.payoutRepo.Create(ctx, record))
	}

	bySession, err := suite.payoutRepo.FindBySessionID(ctx, "session-1")
	suite.Require().NoError(err)
	suite.Len(bySession, 2)
	suite.Equal("alice", bySession[0].Player)

	p := NewPagination(1, 10)
	byPlayer, err := suite.payoutRepo.FindByPlayer(ctx, "alice", p)
	suite.Require().NoError(err)
	suite.Len(byPlayer, 2)
	suite.Equal(int64(2), p.Total)

	// 订单号唯一约束
	err = suite.payoutRepo.Create(ctx, &models.PayoutRecord{
		OrderNo: "order-1", SessionID: "session-9", Player: "carol",
		FromAccount: "x", ToAccount: "y", Amount: 1, PayoutType: "refund",
	})
	suite.Error(err)
}

func TestTokenAccountRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(TokenAccountRepositoryTestSuite))
}
