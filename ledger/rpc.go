package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/weisyn/claim-engine-go/client"
	"github.com/weisyn/claim-engine-go/types"
)

// RPCOwnershipLedger 节点侧所有权台账（通过 claim_* JSON-RPC 方法访问）
type RPCOwnershipLedger struct {
	client client.Client
}

// NewRPCOwnershipLedger 创建节点侧所有权台账
func NewRPCOwnershipLedger(c client.Client) *RPCOwnershipLedger {
	return &RPCOwnershipLedger{client: c}
}

// Mint 铸造凭证 token
func (l *RPCOwnershipLedger) Mint(ctx context.Context, owner []byte, id uint64) error {
	params := map[string]interface{}{
		"owner":   "0x" + hex.EncodeToString(owner),
		"tokenId": id,
	}
	if _, err := l.client.Call(ctx, "claim_mint", []interface{}{params}); err != nil {
		return fmt.Errorf("claim_mint failed: %w", err)
	}
	return nil
}

// Burn 销毁凭证 token
func (l *RPCOwnershipLedger) Burn(ctx context.Context, id uint64) error {
	params := map[string]interface{}{"tokenId": id}
	if _, err := l.client.Call(ctx, "claim_burn", []interface{}{params}); err != nil {
		return mapNotFound(err, id, "claim_burn")
	}
	return nil
}

// OwnerOf 查询当前持有人
func (l *RPCOwnershipLedger) OwnerOf(ctx context.Context, id uint64) ([]byte, error) {
	params := map[string]interface{}{"tokenId": id}
	raw, err := l.client.Call(ctx, "claim_ownerOf", []interface{}{params})
	if err != nil {
		return nil, mapNotFound(err, id, "claim_ownerOf")
	}

	resultMap, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid response format from claim_ownerOf")
	}
	ownerHex, _ := resultMap["owner"].(string)
	if ownerHex == "" {
		return nil, fmt.Errorf("missing owner in claim_ownerOf response")
	}
	owner, err := hex.DecodeString(strings.TrimPrefix(ownerHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode owner address failed: %w", err)
	}
	return owner, nil
}

// NextCandidateID 查询台账建议的下一个 token id
func (l *RPCOwnershipLedger) NextCandidateID(ctx context.Context) (uint64, error) {
	raw, err := l.client.Call(ctx, "claim_nextTokenId", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("claim_nextTokenId failed: %w", err)
	}
	id, err := decodeUint64(raw)
	if err != nil {
		return 0, fmt.Errorf("decode claim_nextTokenId response failed: %w", err)
	}
	return id, nil
}

// IsLive 判断 token 是否存活
func (l *RPCOwnershipLedger) IsLive(ctx context.Context, id uint64) (bool, error) {
	params := map[string]interface{}{"tokenId": id}
	raw, err := l.client.Call(ctx, "claim_isLive", []interface{}{params})
	if err != nil {
		return false, fmt.Errorf("claim_isLive failed: %w", err)
	}
	live, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("invalid response format from claim_isLive")
	}
	return live, nil
}

// RPCAllowanceLedger 节点侧额度台账（通过 claim_* JSON-RPC 方法访问）
type RPCAllowanceLedger struct {
	client client.Client
}

// NewRPCAllowanceLedger 创建节点侧额度台账
func NewRPCAllowanceLedger(c client.Client) *RPCAllowanceLedger {
	return &RPCAllowanceLedger{client: c}
}

// RegisterAllowance 登记委托额度
func (l *RPCAllowanceLedger) RegisterAllowance(ctx context.Context, owner []byte, batch []types.PermissionEntry, signature []byte) error {
	params := map[string]interface{}{
		"owner":     "0x" + hex.EncodeToString(owner),
		"batch":     encodeBatch(batch),
		"signature": "0x" + hex.EncodeToString(signature),
	}
	if _, err := l.client.Call(ctx, "claim_registerAllowance", []interface{}{params}); err != nil {
		return fmt.Errorf("claim_registerAllowance failed: %w", err)
	}
	return nil
}

// QueryAllowance 查询剩余委托额度
func (l *RPCAllowanceLedger) QueryAllowance(ctx context.Context, owner, asset []byte) (*Allowance, error) {
	params := map[string]interface{}{
		"owner": "0x" + hex.EncodeToString(owner),
		"asset": "0x" + hex.EncodeToString(asset),
	}
	raw, err := l.client.Call(ctx, "claim_queryAllowance", []interface{}{params})
	if err != nil {
		return nil, fmt.Errorf("claim_queryAllowance failed: %w", err)
	}

	resultMap, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid response format from claim_queryAllowance")
	}

	allowance := &Allowance{}
	if amountRaw, exists := resultMap["amount"]; exists {
		amount, err := decodeUint64(amountRaw)
		if err != nil {
			return nil, fmt.Errorf("decode allowance amount failed: %w", err)
		}
		allowance.Amount = amount
	}
	if nonceRaw, exists := resultMap["nonce"]; exists {
		nonce, err := decodeUint64(nonceRaw)
		if err != nil {
			return nil, fmt.Errorf("decode allowance nonce failed: %w", err)
		}
		allowance.Nonce = nonce
	}
	if expStr, _ := resultMap["expiration"].(string); expStr != "" {
		exp, err := time.Parse(time.RFC3339, expStr)
		if err != nil {
			return nil, fmt.Errorf("decode allowance expiration failed: %w", err)
		}
		allowance.Expiration = exp
	}
	return allowance, nil
}

// PullTransfer 按批次执行拉取式划转
func (l *RPCAllowanceLedger) PullTransfer(ctx context.Context, batch []types.PermissionEntry) error {
	params := map[string]interface{}{"batch": encodeBatch(batch)}
	raw, err := l.client.Call(ctx, "claim_pullTransfer", []interface{}{params})
	if err != nil {
		return fmt.Errorf("claim_pullTransfer failed: %w", err)
	}

	// 节点可能返回 {accepted, reason} 结构
	if resultMap, ok := raw.(map[string]interface{}); ok {
		if accepted, exists := resultMap["accepted"].(bool); exists && !accepted {
			reason, _ := resultMap["reason"].(string)
			return fmt.Errorf("pull transfer rejected: %s", reason)
		}
	}
	return nil
}

// encodeBatch 将转账批次编码为 RPC 参数
func encodeBatch(batch []types.PermissionEntry) []map[string]interface{} {
	out := make([]map[string]interface{}, len(batch))
	for i, entry := range batch {
		out[i] = map[string]interface{}{
			"source":      "0x" + hex.EncodeToString(entry.SourceAccount),
			"destination": "0x" + hex.EncodeToString(entry.DestinationAccount),
			"asset":       "0x" + hex.EncodeToString(entry.Asset),
			"amount":      entry.Amount,
		}
	}
	return out
}

// decodeUint64 从 RPC 结果解码无符号整数
// 兼容三种编码：JSON number、十进制字符串、0x 前缀的十六进制字符串
func decodeUint64(raw interface{}) (uint64, error) {
	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("negative value: %f", v)
		}
		return uint64(v), nil
	case string:
		if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
			n, err := strconv.ParseUint(v[2:], 16, 64)
			if err != nil {
				return 0, fmt.Errorf("parse hex uint failed: %w", err)
			}
			return n, nil
		}
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse uint failed: %w", err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", raw)
	}
}

// mapNotFound 将节点侧"token 不存在"错误映射为本模块的 CLAIM_NOT_FOUND；
// 其余错误按 %w 包装，保留原始错误链供 errors.As 检查
func mapNotFound(err error, id uint64, method string) error {
	if wesErr, ok := types.IsWesError(err); ok {
		if strings.Contains(wesErr.Code, "NOT_FOUND") {
			return types.NewNotFoundError(id)
		}
	}
	return fmt.Errorf("%s failed: %w", method, err)
}
