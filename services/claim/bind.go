package claim

import (
	"bytes"
	"context"
	"fmt"

	"github.com/weisyn/claim-engine-go/types"
)

// BindRequest 绑定请求
type BindRequest struct {
	// Entries 转账批次（每条腿的出资方必须等于绑定调用方）
	Entries []types.PermissionEntry
	// Window 可选的领取时间窗口
	Window *types.TimeWindow
	// Recipient 凭证接收人地址（20字节，可以与调用方不同）
	Recipient []byte
}

// BindResult 绑定结果
type BindResult struct {
	ClaimID uint64
}

// Bind 校验并绑定转账批次，铸造领取凭证
//
// **流程**：
// 1. 参数校验（非空批次、正金额、合法窗口、接收人）
// 2. 授权校验：每条腿的出资方 == caller，整批一致否则整批拒绝
// 3. 分配凭证 id（严格单调，见 allocator.go）
// 4. 先落记录，再铸造：绝不允许出现有凭证无记录的瞬间
// 5. 铸造失败则撤销记录，整个操作无残留
func (s *claimService) Bind(ctx context.Context, req *BindRequest, caller []byte) (*BindResult, error) {
	// 1. 参数校验
	if err := validateBindRequest(req, caller); err != nil {
		return nil, err
	}

	// 2. 授权校验（authorization-from-sender 规则）
	for i, entry := range req.Entries {
		if !bytes.Equal(entry.SourceAccount, caller) {
			return nil, types.NewAuthorizationError(entry.SourceAccount, i)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// 3. 分配凭证 id
	claimID, err := s.alloc.allocate(ctx, s.ownership)
	if err != nil {
		return nil, fmt.Errorf("allocate claim id failed: %w", err)
	}

	// 4. 先落记录（存不可变拷贝），再请求铸造
	record := &types.ClaimRecord{
		ClaimID: claimID,
		Entries: types.CloneEntries(req.Entries),
		Window:  req.Window.Clone(),
	}
	s.records[claimID] = record

	if err := s.ownership.Mint(ctx, req.Recipient, claimID); err != nil {
		// 5. 铸造失败：撤销记录，保持无残留
		delete(s.records, claimID)
		return nil, fmt.Errorf("mint claim token %d failed: %w", claimID, err)
	}

	return &BindResult{ClaimID: claimID}, nil
}

// validateBindRequest 绑定参数校验
func validateBindRequest(req *BindRequest, caller []byte) error {
	if req == nil {
		return types.NewValidationError("bind request is nil")
	}
	if len(caller) == 0 {
		return types.NewValidationError("caller is empty")
	}
	if len(req.Entries) == 0 {
		return types.NewValidationError("batch is empty")
	}
	if len(req.Recipient) == 0 {
		return types.NewValidationError("recipient is empty")
	}
	for i, entry := range req.Entries {
		if len(entry.SourceAccount) == 0 {
			return types.NewValidationError(fmt.Sprintf("entry %d has empty source account", i))
		}
		if entry.Amount == 0 {
			return types.NewValidationError(fmt.Sprintf("entry %d has zero amount", i))
		}
	}
	if req.Window != nil && req.Window.ExpirationTime.Before(req.Window.StartTime) {
		return types.NewValidationError("window start after expiration")
	}
	return nil
}
