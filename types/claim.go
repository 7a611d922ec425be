package types

import (
	"fmt"
	"time"
)

// PermissionEntry 授权转账批次中的一条转账腿
//
// **说明**：
// - SourceAccount 是出资方（债务人）地址（20字节）
// - DestinationAccount 在绑定时只是占位符，领取时会被改写为实际领取人
// - Asset 为资产ID（32字节，nil 表示原生币）
type PermissionEntry struct {
	SourceAccount      []byte // 出资方地址（20字节）
	DestinationAccount []byte // 收款方地址（绑定时为占位符）
	Asset              []byte // 资产ID（32字节，nil 表示原生币）
	Amount             uint64 // 转账金额
}

// Clone 深拷贝一条转账腿
func (e PermissionEntry) Clone() PermissionEntry {
	return PermissionEntry{
		SourceAccount:      cloneBytes(e.SourceAccount),
		DestinationAccount: cloneBytes(e.DestinationAccount),
		Asset:              cloneBytes(e.Asset),
		Amount:             e.Amount,
	}
}

// CloneEntries 深拷贝整个转账批次
func CloneEntries(entries []PermissionEntry) []PermissionEntry {
	if entries == nil {
		return nil
	}
	out := make([]PermissionEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

// TimeWindow 领取时间窗口
//
// 领取仅在 [StartTime, ExpirationTime] 闭区间内有效。
// StartTime ≤ ExpirationTime 在构造时强制校验。
type TimeWindow struct {
	StartTime      time.Time
	ExpirationTime time.Time
}

// NewTimeWindow 创建时间窗口
func NewTimeWindow(start, expiration time.Time) (*TimeWindow, error) {
	if expiration.Before(start) {
		return nil, fmt.Errorf("invalid time window: start %s after expiration %s",
			start.Format(time.RFC3339), expiration.Format(time.RFC3339))
	}
	return &TimeWindow{StartTime: start, ExpirationTime: expiration}, nil
}

// NotYetStarted 判断 now 是否早于窗口起点
func (w *TimeWindow) NotYetStarted(now time.Time) bool {
	return now.Before(w.StartTime)
}

// Expired 判断 now 是否晚于窗口终点
func (w *TimeWindow) Expired(now time.Time) bool {
	return now.After(w.ExpirationTime)
}

// Clone 拷贝时间窗口
func (w *TimeWindow) Clone() *TimeWindow {
	if w == nil {
		return nil
	}
	cp := *w
	return &cp
}

// ClaimRecord 领取凭证记录
//
// **生命周期**：
// - 记录与凭证 token 同生共死：绑定时随铸造一起创建，领取或作废时随销毁一起删除
// - 记录归生命周期管理器独占，外部只能拿到拷贝
// - 记录不保存"当前持有人"：持有人实时查询所有权台账，
//   token 在外部转手后领取权立即随之转移
type ClaimRecord struct {
	ClaimID uint64
	Entries []PermissionEntry
	Window  *TimeWindow
}

// Debtor 返回授权该批次的债务人账户
//
// 绑定时已校验批次中每条腿的 SourceAccount 一致（等于绑定调用方），
// 因此取第一条腿即可。
func (r *ClaimRecord) Debtor() []byte {
	if len(r.Entries) == 0 {
		return nil
	}
	return cloneBytes(r.Entries[0].SourceAccount)
}

// Clone 深拷贝记录（对外返回拷贝，保证记录不可变）
func (r *ClaimRecord) Clone() *ClaimRecord {
	if r == nil {
		return nil
	}
	return &ClaimRecord{
		ClaimID: r.ClaimID,
		Entries: CloneEntries(r.Entries),
		Window:  r.Window.Clone(),
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
