package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/claim-engine-go/ledger"
	"github.com/weisyn/claim-engine-go/services"
	claimsvc "github.com/weisyn/claim-engine-go/services/claim"
	"github.com/weisyn/claim-engine-go/types"
	"github.com/weisyn/claim-engine-go/wallet"
)

const (
	// DefaultTimeout 默认超时时间
	DefaultTimeout = 30 * time.Second
	// EventWaitTimeout 等待事件投递的超时时间
	EventWaitTimeout = 2 * time.Second
)

// TestEnv 集成测试环境
//
// 在进程内拼装完整引擎栈：真实 secp256k1 钱包身份 + 进程内台账 +
// 领取凭证服务。场景测试走与生产相同的服务入口，只有台账宿主不同。
type TestEnv struct {
	Ownership *ledger.MemoryOwnershipLedger
	Allowance *ledger.MemoryAllowanceLedger
	Service   claimsvc.Service

	// Debtor 债务人（授权并绑定批次的一方）
	Debtor wallet.Wallet
	// Creditor 债权人（默认的凭证接收人）
	Creditor wallet.Wallet
}

// SetupTestEnv 创建集成测试环境（默认作废策略：仅持有人）
func SetupTestEnv(t *testing.T) *TestEnv {
	return SetupTestEnvWithConfig(t, nil)
}

// SetupTestEnvWithConfig 创建带服务配置的集成测试环境
func SetupTestEnvWithConfig(t *testing.T, cfg *services.Config) *TestEnv {
	t.Helper()

	debtor, err := wallet.NewWallet()
	require.NoError(t, err, "创建债务人钱包失败")
	creditor, err := wallet.NewWallet()
	require.NoError(t, err, "创建债权人钱包失败")

	// 日志用 Base58Check 展示身份，便于与节点侧地址对照
	debtorAddr, err := debtor.AddressBase58()
	require.NoError(t, err, "编码债务人地址失败")
	creditorAddr, err := creditor.AddressBase58()
	require.NoError(t, err, "编码债权人地址失败")
	t.Logf("债务人地址: %s 债权人地址: %s", debtorAddr, creditorAddr)

	ownership := ledger.NewMemoryOwnershipLedger()
	allowance := ledger.NewMemoryAllowanceLedger()

	return &TestEnv{
		Ownership: ownership,
		Allowance: allowance,
		Service:   claimsvc.NewServiceWithConfig(ownership, allowance, cfg),
		Debtor:    debtor,
		Creditor:  creditor,
	}
}

// NewTestWallet 创建一个额外的测试身份（第三方、受让人等）
func (env *TestEnv) NewTestWallet(t *testing.T) wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWallet()
	require.NoError(t, err, "创建测试钱包失败")
	return w
}

// Entry 构造一条由债务人出资的转账腿（收款方先占位为债务人自己）
func (env *TestEnv) Entry(asset []byte, amount uint64) types.PermissionEntry {
	return types.PermissionEntry{
		SourceAccount:      env.Debtor.Address(),
		DestinationAccount: env.Debtor.Address(),
		Asset:              asset,
		Amount:             amount,
	}
}

// FundAndAuthorize 为债务人准备余额并登记委托额度
//
// 签名由债务人钱包对批次摘要生成；进程内台账不验签但原样接受，
// 与节点侧 claim_registerAllowance 的调用形状一致。
func (env *TestEnv) FundAndAuthorize(t *testing.T, entries []types.PermissionEntry) {
	t.Helper()
	ctx := context.Background()

	for _, e := range entries {
		env.Allowance.Credit(e.SourceAccount, e.Asset, e.Amount)
	}

	signature := env.signBatch(t, entries)
	require.NoError(t,
		env.Allowance.RegisterAllowance(ctx, env.Debtor.Address(), entries, signature),
		"登记委托额度失败")
}

// Bind 债务人绑定批次，凭证开给债权人
func (env *TestEnv) Bind(t *testing.T, entries []types.PermissionEntry, window *types.TimeWindow) uint64 {
	t.Helper()
	result, err := env.Service.Bind(context.Background(), &claimsvc.BindRequest{
		Entries:   entries,
		Window:    window,
		Recipient: env.Creditor.Address(),
	}, env.Debtor.Address())
	require.NoError(t, err, "绑定失败")
	return result.ClaimID
}

// signBatch 债务人对批次内容签名
func (env *TestEnv) signBatch(t *testing.T, entries []types.PermissionEntry) []byte {
	t.Helper()
	var payload []byte
	for _, e := range entries {
		payload = append(payload, e.SourceAccount...)
		payload = append(payload, e.Asset...)
		for i := 0; i < 8; i++ {
			payload = append(payload, byte(e.Amount>>(8*i)))
		}
	}
	signature, err := env.Debtor.SignMessage(payload)
	require.NoError(t, err, "批次签名失败")
	return signature
}
