package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/claim-engine-go/services"
	"github.com/weisyn/claim-engine-go/types"
)

var assetA = []byte{0xAA, 0x01}

// TestClaimLifecycle_BindClaimSettle 完整生命周期：
// 债务人 D 授权 100 assetA → 绑定给债权人 H → H 领取 → 资金到账
func TestClaimLifecycle_BindClaimSettle(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	entries := []types.PermissionEntry{env.Entry(assetA, 100)}
	env.FundAndAuthorize(t, entries)

	// 绑定前：额度已登记、余额就位
	amount, err := env.Service.OutstandingAllowance(ctx, env.Debtor.Address(), assetA)
	require.NoError(t, err)
	require.Equal(t, uint64(100), amount)

	claimID := env.Bind(t, entries, nil)

	// 凭证归债权人，记录可查
	owner, err := env.Ownership.OwnerOf(ctx, claimID)
	require.NoError(t, err)
	require.Equal(t, env.Creditor.Address(), owner)

	record, err := env.Service.RecordFor(ctx, claimID)
	require.NoError(t, err)
	require.Equal(t, env.Debtor.Address(), record.Debtor())

	// 债权人领取
	result, err := env.Service.Claim(ctx, claimID, env.Creditor.Address())
	require.NoError(t, err)
	require.Equal(t, env.Creditor.Address(), result.Claimant)
	require.Equal(t, env.Creditor.Address(), result.Entries[0].DestinationAccount)

	// 资金移动、额度扣减、凭证销毁
	VerifyBalance(t, env, env.Creditor.Address(), assetA, 100)
	VerifyBalance(t, env, env.Debtor.Address(), assetA, 0)
	amount, err = env.Service.OutstandingAllowance(ctx, env.Debtor.Address(), assetA)
	require.NoError(t, err)
	require.Equal(t, uint64(0), amount)
	VerifyClaimGone(t, env, claimID)
}

// TestClaimLifecycle_SingleUse 一次性：领取成功后重放必须失败
func TestClaimLifecycle_SingleUse(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	entries := []types.PermissionEntry{env.Entry(assetA, 100)}
	env.FundAndAuthorize(t, entries)
	claimID := env.Bind(t, entries, nil)

	_, err := env.Service.Claim(ctx, claimID, env.Creditor.Address())
	require.NoError(t, err)

	_, err = env.Service.Claim(ctx, claimID, env.Creditor.Address())
	require.True(t, types.IsNotFound(err), "重放领取应得到 CLAIM_NOT_FOUND, got %v", err)
	VerifyBalance(t, env, env.Creditor.Address(), assetA, 100)
}

// TestClaimLifecycle_TokenTransfer 凭证转手：领取权实时跟随持有权
func TestClaimLifecycle_TokenTransfer(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	entries := []types.PermissionEntry{env.Entry(assetA, 100)}
	env.FundAndAuthorize(t, entries)
	claimID := env.Bind(t, entries, nil)

	// 债权人把凭证转给受让人
	assignee := env.NewTestWallet(t)
	require.NoError(t,
		env.Ownership.Transfer(ctx, env.Creditor.Address(), assignee.Address(), claimID))

	// 原债权人领取被拒
	_, err := env.Service.Claim(ctx, claimID, env.Creditor.Address())
	require.True(t, types.IsOwnershipError(err))

	// 受让人领取成功，资金到受让人名下
	_, err = env.Service.Claim(ctx, claimID, assignee.Address())
	require.NoError(t, err)
	VerifyBalance(t, env, assignee.Address(), assetA, 100)
	VerifyBalance(t, env, env.Creditor.Address(), assetA, 0)
}

// TestClaimLifecycle_TimeWindow 时间窗口：未开始与已过期都不可领取
func TestClaimLifecycle_TimeWindow(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	entries := []types.PermissionEntry{env.Entry(assetA, 100)}
	env.FundAndAuthorize(t, entries)

	window, err := types.NewTimeWindow(
		time.Now().Add(time.Hour),
		time.Now().Add(2*time.Hour),
	)
	require.NoError(t, err)
	claimID := env.Bind(t, entries, window)

	_, err = env.Service.Claim(ctx, claimID, env.Creditor.Address())
	require.True(t, types.IsNotStarted(err), "窗口未开始应得到 CLAIM_NOT_STARTED, got %v", err)

	// 失败的领取不消耗凭证
	_, err = env.Service.RecordFor(ctx, claimID)
	require.NoError(t, err)
	VerifyBalance(t, env, env.Creditor.Address(), assetA, 0)
}

// TestClaimLifecycle_Invalidate 作废：凭证销毁且没有任何资金移动
func TestClaimLifecycle_Invalidate(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	entries := []types.PermissionEntry{env.Entry(assetA, 100)}
	env.FundAndAuthorize(t, entries)
	claimID := env.Bind(t, entries, nil)

	// 默认策略：债务人不能作废
	err := env.Service.Invalidate(ctx, claimID, env.Debtor.Address())
	require.True(t, types.IsOwnershipError(err))

	// 持有人作废成功
	require.NoError(t, env.Service.Invalidate(ctx, claimID, env.Creditor.Address()))
	VerifyClaimGone(t, env, claimID)
	VerifyBalance(t, env, env.Debtor.Address(), assetA, 100)
	VerifyBalance(t, env, env.Creditor.Address(), assetA, 0)

	// 额度保持不变（作废不退额度也不扣额度）
	amount, err := env.Service.OutstandingAllowance(ctx, env.Debtor.Address(), assetA)
	require.NoError(t, err)
	require.Equal(t, uint64(100), amount)
}

// TestClaimLifecycle_InvalidateByDebtorPolicy 宽松作废策略下债务人可以撤回
func TestClaimLifecycle_InvalidateByDebtorPolicy(t *testing.T) {
	env := SetupTestEnvWithConfig(t, &services.Config{
		InvalidationPolicy: services.InvalidateHolderOrDebtor,
	})
	ctx := context.Background()

	entries := []types.PermissionEntry{env.Entry(assetA, 100)}
	env.FundAndAuthorize(t, entries)
	claimID := env.Bind(t, entries, nil)

	require.NoError(t, env.Service.Invalidate(ctx, claimID, env.Debtor.Address()))
	VerifyClaimGone(t, env, claimID)
}

// TestClaimLifecycle_TwoIndependentClaims 两张凭证互不干扰
func TestClaimLifecycle_TwoIndependentClaims(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	first := []types.PermissionEntry{env.Entry(assetA, 100)}
	second := []types.PermissionEntry{env.Entry(assetA, 30)}
	env.FundAndAuthorize(t, first)
	env.FundAndAuthorize(t, second)

	firstID := env.Bind(t, first, nil)
	secondID := env.Bind(t, second, nil)
	require.NotEqual(t, firstID, secondID)

	_, err := env.Service.Claim(ctx, firstID, env.Creditor.Address())
	require.NoError(t, err)

	// 第二张凭证不受影响
	record, err := env.Service.RecordFor(ctx, secondID)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), record.Entries[0].Amount)

	_, err = env.Service.Claim(ctx, secondID, env.Creditor.Address())
	require.NoError(t, err)
	VerifyBalance(t, env, env.Creditor.Address(), assetA, 130)
}

// TestClaimLifecycle_TwoIndependentClaimsReverseOrder 后绑定的凭证可以先领
func TestClaimLifecycle_TwoIndependentClaimsReverseOrder(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	first := []types.PermissionEntry{env.Entry(assetA, 100)}
	second := []types.PermissionEntry{env.Entry(assetA, 30)}
	env.FundAndAuthorize(t, first)
	env.FundAndAuthorize(t, second)

	firstID := env.Bind(t, first, nil)
	secondID := env.Bind(t, second, nil)

	_, err := env.Service.Claim(ctx, secondID, env.Creditor.Address())
	require.NoError(t, err)
	VerifyBalance(t, env, env.Creditor.Address(), assetA, 30)

	// 先绑定的那张不受影响，随后照常可领
	record, err := env.Service.RecordFor(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), record.Entries[0].Amount)

	_, err = env.Service.Claim(ctx, firstID, env.Creditor.Address())
	require.NoError(t, err)
	VerifyBalance(t, env, env.Creditor.Address(), assetA, 130)
}

// TestClaimLifecycle_FundsTransferredEvent 领取成功后事件可订阅
func TestClaimLifecycle_FundsTransferredEvent(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := env.Service.SubscribeFundsTransferred(subCtx)
	require.NoError(t, err)

	entries := []types.PermissionEntry{env.Entry(assetA, 100)}
	env.FundAndAuthorize(t, entries)
	claimID := env.Bind(t, entries, nil)

	_, err = env.Service.Claim(ctx, claimID, env.Creditor.Address())
	require.NoError(t, err)

	event := WaitForEvent(t, events)
	assert.Equal(t, claimID, event.ClaimID)
	assert.Equal(t, env.Creditor.Address(), event.Claimant)
	assert.Equal(t, env.Creditor.Address(), event.Entries[0].DestinationAccount)
}
