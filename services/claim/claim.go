package claim

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/weisyn/claim-engine-go/types"
)

// ClaimResult 领取结果
type ClaimResult struct {
	ClaimID  uint64
	Claimant []byte
	// Entries 实际执行的转账批次（收款方已改写为领取人）
	Entries []types.PermissionEntry
	At      time.Time
}

// Claim 领取凭证
//
// **检查顺序**（固定，不可调整）：
// 1. 记录存在性（CLAIM_NOT_FOUND）
// 2. 持有人校验：实时查询所有权台账（CLAIM_OWNERSHIP_ERROR）
// 3. 窗口未开始（CLAIM_NOT_STARTED）
// 4. 窗口已过期（CLAIM_EXPIRED）
//
// **销毁先行**：记录删除与凭证销毁必须发生在调用额度台账之前。
// 额度台账的划转可能回调进本服务（资产侧回调），销毁先行保证
// 重入的二次 Claim 在第 1 步确定性地拿到 CLAIM_NOT_FOUND，
// 划转绝不会执行两次。服务锁在外部调用前释放，重入也不会死锁。
//
// **补偿回滚**：Go 运行时没有平台级的全有或全无边界，划转失败后
// 由本方法显式恢复记录并把凭证铸回领取人，对外表现为整个操作
// 未发生（CLAIM_TRANSFER_EXECUTION_ERROR），领取可安全重试。
func (s *claimService) Claim(ctx context.Context, claimID uint64, caller []byte) (*ClaimResult, error) {
	s.mu.Lock()

	// 1. 记录存在性（"从未存在"与"已被消耗"同样失败）
	record, exists := s.records[claimID]
	if !exists {
		s.mu.Unlock()
		return nil, types.NewNotFoundError(claimID)
	}

	// 2. 持有人校验（所有权台账实时查询，不信任任何缓存）
	holder, err := s.ownership.OwnerOf(ctx, claimID)
	if err != nil {
		s.mu.Unlock()
		if types.IsNotFound(err) {
			return nil, types.NewNotFoundError(claimID)
		}
		return nil, fmt.Errorf("query owner of claim %d failed: %w", claimID, err)
	}
	if !bytes.Equal(holder, caller) {
		s.mu.Unlock()
		return nil, types.NewOwnershipError(caller, claimID)
	}

	// 3/4. 时间窗口（[start, expiration] 闭区间有效）
	now := s.now()
	if record.Window != nil {
		if record.Window.NotYetStarted(now) {
			s.mu.Unlock()
			return nil, types.NewNotStartedError(claimID, record.Window.StartTime, now)
		}
		if record.Window.Expired(now) {
			s.mu.Unlock()
			return nil, types.NewExpiredError(claimID, record.Window.ExpirationTime, now)
		}
	}

	// 5. 改写每条腿的收款方为领取人
	batch := types.CloneEntries(record.Entries)
	for i := range batch {
		claimant := make([]byte, len(caller))
		copy(claimant, caller)
		batch[i].DestinationAccount = claimant
	}

	// 6. 销毁先行：删记录、烧凭证，然后才允许控制流离开信任边界
	delete(s.records, claimID)
	if err := s.ownership.Burn(ctx, claimID); err != nil {
		s.records[claimID] = record
		s.mu.Unlock()
		return nil, fmt.Errorf("burn claim token %d failed: %w", claimID, err)
	}
	s.mu.Unlock()

	// 7. 批量划转（全有或全无）；失败则补偿回滚销毁
	if err := s.allowance.PullTransfer(ctx, batch); err != nil {
		s.restore(ctx, record, caller)
		return nil, types.NewTransferExecutionError(claimID, err)
	}

	// 8. 发出 FundsTransferred 事件
	result := &ClaimResult{
		ClaimID:  claimID,
		Claimant: caller,
		Entries:  batch,
		At:       now,
	}
	s.publish(&FundsTransferredEvent{
		ClaimID:  claimID,
		Claimant: caller,
		Entries:  types.CloneEntries(batch),
		At:       now,
	})

	return result, nil
}

// restore 补偿回滚：恢复记录并把凭证铸回领取时的持有人
func (s *claimService) restore(ctx context.Context, record *types.ClaimRecord, holder []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ClaimID] = record
	if err := s.ownership.Mint(ctx, holder, record.ClaimID); err != nil {
		// 铸回失败意味着记录与凭证状态不一致，只能告警
		s.logWarn("restore claim token after transfer failure failed",
			"claimId", record.ClaimID, "error", err)
	}
}
