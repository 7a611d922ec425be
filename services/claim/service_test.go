package claim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/weisyn/claim-engine-go/ledger"
	"github.com/weisyn/claim-engine-go/services"
	"github.com/weisyn/claim-engine-go/types"
)

var (
	debtorAddr   = []byte{0xD0, 0x01, 0x02, 0x03}
	holderAddr   = []byte{0xA0, 0x01, 0x02, 0x03}
	strangerAddr = []byte{0xB0, 0x01, 0x02, 0x03}
	assetA       = []byte{0xAA, 0xAA}
	assetB       = []byte{0xBB, 0xBB}
)

// testClock 可控时钟（窗口判定用）
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// testEnv 测试环境：进程内台账 + 可控时钟 + 服务实例
type testEnv struct {
	ownership *ledger.MemoryOwnershipLedger
	allowance *ledger.MemoryAllowanceLedger
	clock     *testClock
	svc       Service
}

func newTestEnv(cfg *services.Config) *testEnv {
	env := &testEnv{
		ownership: ledger.NewMemoryOwnershipLedger(),
		allowance: ledger.NewMemoryAllowanceLedger(),
		clock:     newTestClock(),
	}
	if cfg == nil {
		cfg = services.DefaultConfig()
	}
	cfg.Clock = env.clock.Now
	env.svc = NewServiceWithConfig(env.ownership, env.allowance, cfg)
	return env
}

// fundDebtor 为债务人准备余额并登记委托额度
func (env *testEnv) fundDebtor(t *testing.T, entries []types.PermissionEntry) {
	t.Helper()
	ctx := context.Background()
	for _, e := range entries {
		env.allowance.Credit(e.SourceAccount, e.Asset, e.Amount)
	}
	require.NoError(t, env.allowance.RegisterAllowance(ctx, debtorAddr, entries, nil))
}

// bindClaim 绑定一张凭证（默认：债务人出资、凭证给 holderAddr）
func (env *testEnv) bindClaim(t *testing.T, entries []types.PermissionEntry, window *types.TimeWindow) uint64 {
	t.Helper()
	env.fundDebtor(t, entries)
	result, err := env.svc.Bind(context.Background(), &BindRequest{
		Entries:   entries,
		Window:    window,
		Recipient: holderAddr,
	}, debtorAddr)
	require.NoError(t, err)
	return result.ClaimID
}

func singleEntry(amount uint64) []types.PermissionEntry {
	return []types.PermissionEntry{{
		SourceAccount:      debtorAddr,
		DestinationAccount: holderAddr,
		Asset:              assetA,
		Amount:             amount,
	}}
}

// failingOwnershipLedger 包装进程内所有权台账，可注入铸造失败
type failingOwnershipLedger struct {
	*ledger.MemoryOwnershipLedger
	failMint bool
}

func (l *failingOwnershipLedger) Mint(ctx context.Context, owner []byte, id uint64) error {
	if l.failMint {
		return errors.New("ownership ledger unavailable")
	}
	return l.MemoryOwnershipLedger.Mint(ctx, owner, id)
}

// failingAllowanceLedger 包装进程内额度台账，可注入划转失败
type failingAllowanceLedger struct {
	*ledger.MemoryAllowanceLedger
	failPull bool
}

func (l *failingAllowanceLedger) PullTransfer(ctx context.Context, batch []types.PermissionEntry) error {
	if l.failPull {
		return errors.New("allowance ledger unavailable")
	}
	return l.MemoryAllowanceLedger.PullTransfer(ctx, batch)
}

// reentrantAllowanceLedger 在划转中回调服务（模拟资产侧回调重入）
type reentrantAllowanceLedger struct {
	*ledger.MemoryAllowanceLedger
	svc        Service
	claimID    uint64
	caller     []byte
	reentryErr error
	pulls      int
}

func (l *reentrantAllowanceLedger) PullTransfer(ctx context.Context, batch []types.PermissionEntry) error {
	l.pulls++
	if l.pulls == 1 {
		// 划转过程中重入一次二次领取
		_, l.reentryErr = l.svc.Claim(ctx, l.claimID, l.caller)
	}
	return l.MemoryAllowanceLedger.PullTransfer(ctx, batch)
}

func TestNewServiceWithConfig_Defaults(t *testing.T) {
	svc := NewServiceWithConfig(ledger.NewMemoryOwnershipLedger(), ledger.NewMemoryAllowanceLedger(), &services.Config{})
	impl := svc.(*claimService)
	require.NotNil(t, impl.cfg.Clock)
	require.Equal(t, 16, impl.cfg.EventBufferSize)
	require.Equal(t, services.InvalidateHolderOnly, impl.cfg.InvalidationPolicy)
}

func TestNewServiceWithConfig_DoesNotMutateCallerConfig(t *testing.T) {
	cfg := &services.Config{InvalidationPolicy: services.InvalidateHolderOrDebtor}
	svc := NewServiceWithConfig(ledger.NewMemoryOwnershipLedger(), ledger.NewMemoryAllowanceLedger(), cfg)

	// 默认值写进服务内部的拷贝，调用方的结构保持原样
	require.Nil(t, cfg.Clock)
	require.Equal(t, 0, cfg.EventBufferSize)
	require.Equal(t, services.InvalidateHolderOrDebtor, cfg.InvalidationPolicy)

	impl := svc.(*claimService)
	require.NotNil(t, impl.cfg.Clock)
	require.Equal(t, 16, impl.cfg.EventBufferSize)
	require.Equal(t, services.InvalidateHolderOrDebtor, impl.cfg.InvalidationPolicy)
}
