package claim

import (
	"context"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/claim-engine-go/types"
)

func TestRecordFor_ReturnsCopy(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	claimID := env.bindClaim(t, singleEntry(100), nil)

	first, err := env.svc.RecordFor(ctx, claimID)
	require.NoError(t, err)

	// 修改返回值不影响引擎状态
	first.Entries[0].Amount = 1
	first.Entries[0].DestinationAccount = strangerAddr

	second, err := env.svc.RecordFor(ctx, claimID)
	require.NoError(t, err)
	require.Equal(t, uint64(100), second.Entries[0].Amount)

	// 领取仍按原始批次执行
	_, err = env.svc.Claim(ctx, claimID, holderAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(100), env.allowance.Balance(holderAddr, assetA))
}

func TestOutstandingAllowance(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	env.fundDebtor(t, singleEntry(250))

	amount, err := env.svc.OutstandingAllowance(ctx, debtorAddr, assetA)
	require.NoError(t, err)
	require.Equal(t, uint64(250), amount)

	// 未登记的资产为零额度
	amount, err = env.svc.OutstandingAllowance(ctx, debtorAddr, assetB)
	require.NoError(t, err)
	require.Equal(t, uint64(0), amount)
}

func TestOutstandingAllowance_DecreasesAfterClaim(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	claimID := env.bindClaim(t, singleEntry(100), nil)
	_, err := env.svc.Claim(ctx, claimID, holderAddr)
	require.NoError(t, err)

	amount, err := env.svc.OutstandingAllowance(ctx, debtorAddr, assetA)
	require.NoError(t, err)
	require.Equal(t, uint64(0), amount)
}

func TestOutstandingAllowances(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()

	entries := []types.PermissionEntry{
		{SourceAccount: debtorAddr, DestinationAccount: holderAddr, Asset: assetA, Amount: 100},
		{SourceAccount: debtorAddr, DestinationAccount: holderAddr, Asset: assetB, Amount: 40},
	}
	env.fundDebtor(t, entries)

	out, err := env.svc.OutstandingAllowances(ctx, debtorAddr, [][]byte{assetA, assetB})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, uint64(100), out[hex.EncodeToString(assetA)])
	require.Equal(t, uint64(40), out[hex.EncodeToString(assetB)])
}
