package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	claimsvc "github.com/weisyn/claim-engine-go/services/claim"
)

// VerifyBalance 验证账户余额
func VerifyBalance(t *testing.T, env *TestEnv, account, asset []byte, expected uint64) {
	t.Helper()
	actual := env.Allowance.Balance(account, asset)
	assert.Equal(t, expected, actual, "余额不匹配: account=%x asset=%x", account, asset)
}

// VerifyClaimGone 验证凭证与记录都已销毁
func VerifyClaimGone(t *testing.T, env *TestEnv, claimID uint64) {
	t.Helper()
	ctx := context.Background()

	_, err := env.Service.RecordFor(ctx, claimID)
	require.Error(t, err, "记录应已删除: claimId=%d", claimID)

	live, err := env.Ownership.IsLive(ctx, claimID)
	require.NoError(t, err)
	assert.False(t, live, "凭证 token 应已销毁: claimId=%d", claimID)
}

// WaitForEvent 等待一条 FundsTransferred 事件
func WaitForEvent(t *testing.T, events <-chan *claimsvc.FundsTransferredEvent) *claimsvc.FundsTransferredEvent {
	t.Helper()
	select {
	case event := <-events:
		require.NotNil(t, event, "事件通道已关闭")
		return event
	case <-time.After(EventWaitTimeout):
		t.Fatal("等待 FundsTransferred 事件超时")
		return nil
	}
}
