// Package ledger 定义领取引擎消费的两个外部台账的窄接口：
// 所有权台账（谁持有哪个凭证 token）与额度台账（债务人委托的可划转额度）。
//
// 引擎只依赖这两个接口，不关心台账的宿主：
// - memory.go 提供进程内实现（开发与测试）
// - rpc.go 提供基于 client.Client 的节点侧实现（claim_* JSON-RPC 方法）
package ledger

import (
	"context"
	"time"

	"github.com/weisyn/claim-engine-go/types"
)

// OwnershipLedger 所有权台账接口
type OwnershipLedger interface {
	// Mint 将凭证 token 铸造给 owner
	Mint(ctx context.Context, owner []byte, id uint64) error

	// Burn 销毁凭证 token
	Burn(ctx context.Context, id uint64) error

	// OwnerOf 查询当前持有人；token 不存在时返回 CLAIM_NOT_FOUND
	OwnerOf(ctx context.Context, id uint64) ([]byte, error)

	// NextCandidateID 返回台账建议的下一个 token id
	//
	// 注意：节点侧的历史实现按"当前存活 token 的最高序号 + 1"推导，
	// 最高序号的 token 销毁后该值会回退，可能与历史已消耗的 id 冲突。
	// 引擎侧分配器只拿它做种子，绝不回退（见 services/claim/allocator.go）。
	NextCandidateID(ctx context.Context) (uint64, error)

	// IsLive 判断 token 是否存活
	IsLive(ctx context.Context, id uint64) (bool, error)
}

// Allowance 一条委托额度记录
type Allowance struct {
	Amount     uint64    // 剩余可划转额度
	Expiration time.Time // 额度过期时间（零值表示永不过期）
	Nonce      uint64    // 登记次数（每次 RegisterAllowance 递增）
}

// AllowanceLedger 额度台账接口
//
// PullTransfer 必须对整个批次保持全有或全无：任何一条腿失败，
// 整个调用失败且没有任何资金移动。
type AllowanceLedger interface {
	// RegisterAllowance 登记委托额度（绑定的前置条件，签名不做校验、原样透传）
	RegisterAllowance(ctx context.Context, owner []byte, batch []types.PermissionEntry, signature []byte) error

	// QueryAllowance 查询 owner 对某资产的剩余委托额度
	QueryAllowance(ctx context.Context, owner, asset []byte) (*Allowance, error)

	// PullTransfer 按批次执行拉取式划转（全有或全无）
	PullTransfer(ctx context.Context, batch []types.PermissionEntry) error
}
