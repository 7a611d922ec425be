package claim

import (
	"bytes"
	"context"
	"fmt"

	"github.com/weisyn/claim-engine-go/services"
	"github.com/weisyn/claim-engine-go/types"
)

// Invalidate 作废凭证
//
// 允许的调用方由配置的作废策略决定：
// - InvalidateHolderOnly（默认）：仅当前持有人
// - InvalidateHolderOrDebtor：当前持有人，或授权该批次的原始债务人
//
// 成功后销毁凭证与记录，不发生任何划转；状态终结，id 不再复用。
func (s *claimService) Invalidate(ctx context.Context, claimID uint64, caller []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[claimID]
	if !exists {
		return types.NewNotFoundError(claimID)
	}

	holder, err := s.ownership.OwnerOf(ctx, claimID)
	if err != nil {
		if types.IsNotFound(err) {
			return types.NewNotFoundError(claimID)
		}
		return fmt.Errorf("query owner of claim %d failed: %w", claimID, err)
	}

	allowed := bytes.Equal(holder, caller)
	if !allowed && s.cfg.InvalidationPolicy == services.InvalidateHolderOrDebtor {
		allowed = bytes.Equal(record.Debtor(), caller)
	}
	if !allowed {
		return types.NewOwnershipError(caller, claimID)
	}

	// 销毁记录与凭证；销毁失败则恢复记录，操作无残留
	delete(s.records, claimID)
	if err := s.ownership.Burn(ctx, claimID); err != nil {
		s.records[claimID] = record
		return fmt.Errorf("burn claim token %d failed: %w", claimID, err)
	}
	return nil
}
