// Package claim 实现领取凭证（claim token）生命周期引擎。
//
// 一张领取凭证是一次性的、可转手的权利：持有它就意味着可以把一个
// 债务人预先授权的固定转账批次拉到自己名下。绑定（Bind）时做授权
// 校验并随铸造创建记录；领取（Claim)时做时间窗口与持有人校验，
// 先销毁后划转；作废（Invalidate）销毁记录且不发生任何划转。
//
// 引擎通过窄接口组合两个外部台账（所有权台账、额度台账），
// 不继承、不复刻它们的任何状态；调用方身份由上层认证后作为
// 显式参数传入，引擎内不做签名验证。
package claim

import (
	"context"
	"sync"
	"time"

	"github.com/weisyn/claim-engine-go/ledger"
	"github.com/weisyn/claim-engine-go/services"
	"github.com/weisyn/claim-engine-go/types"
)

// Service 领取凭证业务服务接口
type Service interface {
	// Bind 校验并绑定转账批次，铸造领取凭证
	//
	// caller 为已认证的绑定调用方（债务人）；批次中每条腿的出资方
	// 必须等于 caller，任何一条不符整个批次拒绝。凭证铸造给
	// req.Recipient（可以与 caller 不同：债务人把凭证开给指定债权人）。
	Bind(ctx context.Context, req *BindRequest, caller []byte) (*BindResult, error)

	// Claim 领取凭证：销毁凭证并执行批量划转，收款方改写为 caller
	Claim(ctx context.Context, claimID uint64, caller []byte) (*ClaimResult, error)

	// Invalidate 作废凭证：销毁凭证与记录，不发生划转
	Invalidate(ctx context.Context, claimID uint64, caller []byte) error

	// RecordFor 查询凭证记录（只读拷贝）
	RecordFor(ctx context.Context, claimID uint64) (*types.ClaimRecord, error)

	// OutstandingAllowance 查询账户对某资产的剩余委托额度
	OutstandingAllowance(ctx context.Context, account, asset []byte) (uint64, error)

	// OutstandingAllowances 批量查询账户对多个资产的剩余委托额度
	OutstandingAllowances(ctx context.Context, account []byte, assets [][]byte) (map[string]uint64, error)

	// SubscribeFundsTransferred 订阅领取成功事件
	SubscribeFundsTransferred(ctx context.Context) (<-chan *FundsTransferredEvent, error)
}

// claimService 领取凭证服务实现
//
// records 表归本服务独占：外部组件只能通过 RecordFor 拿到拷贝。
// mu 串行化记录表的所有变更；mu 不跨越对额度台账的外部调用
// （见 claim.go 的销毁先行规则）。
type claimService struct {
	ownership ledger.OwnershipLedger
	allowance ledger.AllowanceLedger
	cfg       *services.Config

	mu      sync.Mutex
	records map[uint64]*types.ClaimRecord
	alloc   allocator

	subMu   sync.Mutex
	subs    map[uint64]chan *FundsTransferredEvent
	nextSub uint64
}

// NewService 创建领取凭证服务（默认配置：仅持有人可作废）
func NewService(ownership ledger.OwnershipLedger, allowance ledger.AllowanceLedger) Service {
	return NewServiceWithConfig(ownership, allowance, nil)
}

// NewServiceWithConfig 创建带配置的领取凭证服务
//
// 配置先拷贝再补默认值，调用方持有的 Config 不被改写，
// 同一份配置可以安全地用于构造多个服务实例。
func NewServiceWithConfig(ownership ledger.OwnershipLedger, allowance ledger.AllowanceLedger, cfg *services.Config) Service {
	var c services.Config
	if cfg != nil {
		c = *cfg
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.EventBufferSize <= 0 {
		c.EventBufferSize = 16
	}
	return &claimService{
		ownership: ownership,
		allowance: allowance,
		cfg:       &c,
		records:   make(map[uint64]*types.ClaimRecord),
		subs:      make(map[uint64]chan *FundsTransferredEvent),
	}
}

// now 返回当前时间（配置可覆盖，测试用）
func (s *claimService) now() time.Time {
	return s.cfg.Clock()
}

// logWarn 输出警告日志（未配置日志器时静默）
func (s *claimService) logWarn(msg string, args ...interface{}) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Warn(msg, args...)
	}
}
