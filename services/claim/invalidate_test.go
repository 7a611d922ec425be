package claim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/claim-engine-go/services"
	"github.com/weisyn/claim-engine-go/types"
)

func TestInvalidate_ByHolder(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	claimID := env.bindClaim(t, singleEntry(100), nil)

	require.NoError(t, env.svc.Invalidate(ctx, claimID, holderAddr))

	// 凭证与记录已销毁，未发生任何划转
	_, err := env.svc.RecordFor(ctx, claimID)
	require.True(t, types.IsNotFound(err))
	live, err := env.ownership.IsLive(ctx, claimID)
	require.NoError(t, err)
	require.False(t, live)
	require.Equal(t, uint64(0), env.allowance.Balance(holderAddr, assetA))
	require.Equal(t, uint64(100), env.allowance.Balance(debtorAddr, assetA))

	// 作废后领取与再次作废都是 CLAIM_NOT_FOUND
	_, err = env.svc.Claim(ctx, claimID, holderAddr)
	require.True(t, types.IsNotFound(err))
	err = env.svc.Invalidate(ctx, claimID, holderAddr)
	require.True(t, types.IsNotFound(err))
}

func TestInvalidate_NotFound(t *testing.T) {
	env := newTestEnv(nil)
	err := env.svc.Invalidate(context.Background(), 404, holderAddr)
	require.True(t, types.IsNotFound(err))
}

func TestInvalidate_HolderOnlyPolicy(t *testing.T) {
	env := newTestEnv(nil) // 默认 InvalidateHolderOnly
	ctx := context.Background()

	claimID := env.bindClaim(t, singleEntry(100), nil)

	// 默认策略下债务人也不能作废
	err := env.svc.Invalidate(ctx, claimID, debtorAddr)
	require.True(t, types.IsOwnershipError(err), "debtor must be rejected under holder-only policy")

	err = env.svc.Invalidate(ctx, claimID, strangerAddr)
	require.True(t, types.IsOwnershipError(err))

	// 凭证未受影响
	_, err = env.svc.RecordFor(ctx, claimID)
	require.NoError(t, err)
}

func TestInvalidate_HolderOrDebtorPolicy(t *testing.T) {
	env := newTestEnv(&services.Config{
		InvalidationPolicy: services.InvalidateHolderOrDebtor,
	})
	ctx := context.Background()

	claimID := env.bindClaim(t, singleEntry(100), nil)

	// 第三方仍然被拒绝
	err := env.svc.Invalidate(ctx, claimID, strangerAddr)
	require.True(t, types.IsOwnershipError(err))

	// 原始债务人允许作废
	require.NoError(t, env.svc.Invalidate(ctx, claimID, debtorAddr))
	_, err = env.svc.RecordFor(ctx, claimID)
	require.True(t, types.IsNotFound(err))
}

func TestInvalidate_DebtorPolicyAfterTransfer(t *testing.T) {
	env := newTestEnv(&services.Config{
		InvalidationPolicy: services.InvalidateHolderOrDebtor,
	})
	ctx := context.Background()

	claimID := env.bindClaim(t, singleEntry(100), nil)

	// 凭证转手后：新持有人和原始债务人都可以作废，旧持有人不行
	require.NoError(t, env.ownership.Transfer(ctx, holderAddr, strangerAddr, claimID))

	err := env.svc.Invalidate(ctx, claimID, holderAddr)
	require.True(t, types.IsOwnershipError(err), "previous holder must be rejected")

	require.NoError(t, env.svc.Invalidate(ctx, claimID, debtorAddr))
}
