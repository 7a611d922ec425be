package claim

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/weisyn/claim-engine-go/types"
	"github.com/weisyn/claim-engine-go/utils"
)

// RecordFor 查询凭证记录
//
// 只读：返回记录的深拷贝，调用方修改返回值不影响引擎状态。
// 凭证已被领取或作废时与从未存在一样返回 CLAIM_NOT_FOUND。
func (s *claimService) RecordFor(ctx context.Context, claimID uint64) (*types.ClaimRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.records[claimID]
	if !exists {
		return nil, types.NewNotFoundError(claimID)
	}
	return record.Clone(), nil
}

// OutstandingAllowance 查询账户对某资产的剩余委托额度（透传额度台账）
func (s *claimService) OutstandingAllowance(ctx context.Context, account, asset []byte) (uint64, error) {
	allowance, err := s.allowance.QueryAllowance(ctx, account, asset)
	if err != nil {
		return 0, fmt.Errorf("query allowance failed: %w", err)
	}
	return allowance.Amount, nil
}

// assetAllowance 单个资产的额度查询结果
type assetAllowance struct {
	assetKey string
	amount   uint64
}

// OutstandingAllowances 批量查询账户对多个资产的剩余委托额度
//
// 并发查询额度台账，返回以资产十六进制编码为键的额度表。
// 任何一个资产查询失败则整个调用失败。
func (s *claimService) OutstandingAllowances(ctx context.Context, account []byte, assets [][]byte) (map[string]uint64, error) {
	result, err := utils.BatchQuery(ctx, assets, func(ctx context.Context, asset []byte, index int) (assetAllowance, error) {
		amount, err := s.OutstandingAllowance(ctx, account, asset)
		if err != nil {
			return assetAllowance{}, err
		}
		return assetAllowance{
			assetKey: hex.EncodeToString(asset),
			amount:   amount,
		}, nil
	}, utils.DefaultBatchConfig())
	if err != nil {
		return nil, fmt.Errorf("batch query allowances failed: %w", err)
	}
	if result.Failed > 0 {
		first := result.Errors[0]
		return nil, fmt.Errorf("query allowance for asset %d failed: %w", first.Index, first.Error)
	}

	out := make(map[string]uint64, len(result.Results))
	for _, r := range result.Results {
		out[r.assetKey] = r.amount
	}
	return out, nil
}
