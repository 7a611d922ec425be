package claim

import (
	"context"
	"fmt"

	"github.com/weisyn/claim-engine-go/ledger"
)

// allocator 凭证 id 分配器
//
// 节点侧台账的 NextCandidateID 按"存活最高序号 + 1"推导：最高序号
// 的 token 销毁后该值会回退，再铸造时就可能撞上历史上已被消耗的 id，
// 导致重放成功。本分配器只在首次分配时拿它做种子，此后严格单调递增，
// 并跳过台账中已被外部占用的存活 id；引擎存续期内 id 永不回退、永不复用。
type allocator struct {
	seeded bool
	next   uint64
}

// allocate 分配下一个凭证 id（调用方必须持有服务锁）
func (a *allocator) allocate(ctx context.Context, ownership ledger.OwnershipLedger) (uint64, error) {
	if !a.seeded {
		seed, err := ownership.NextCandidateID(ctx)
		if err != nil {
			return 0, fmt.Errorf("seed id allocator failed: %w", err)
		}
		a.next = seed
		a.seeded = true
	}

	// 跳过已被外部铸造占用的 id
	for {
		live, err := ownership.IsLive(ctx, a.next)
		if err != nil {
			return 0, fmt.Errorf("check token liveness failed: %w", err)
		}
		if !live {
			break
		}
		a.next++
	}

	id := a.next
	a.next++
	return id, nil
}
