package ledger

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/weisyn/claim-engine-go/types"
)

// MemoryOwnershipLedger 进程内所有权台账实现（用于测试和开发）
type MemoryOwnershipLedger struct {
	mu     sync.RWMutex
	owners map[uint64][]byte
}

// NewMemoryOwnershipLedger 创建进程内所有权台账
func NewMemoryOwnershipLedger() *MemoryOwnershipLedger {
	return &MemoryOwnershipLedger{
		owners: make(map[uint64][]byte),
	}
}

// Mint 铸造凭证 token
func (l *MemoryOwnershipLedger) Mint(ctx context.Context, owner []byte, id uint64) error {
	if len(owner) == 0 {
		return fmt.Errorf("mint: empty owner")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.owners[id]; exists {
		return fmt.Errorf("mint: token %d already live", id)
	}
	cp := make([]byte, len(owner))
	copy(cp, owner)
	l.owners[id] = cp
	return nil
}

// Burn 销毁凭证 token
func (l *MemoryOwnershipLedger) Burn(ctx context.Context, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.owners[id]; !exists {
		return types.NewNotFoundError(id)
	}
	delete(l.owners, id)
	return nil
}

// OwnerOf 查询当前持有人
func (l *MemoryOwnershipLedger) OwnerOf(ctx context.Context, id uint64) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, exists := l.owners[id]
	if !exists {
		return nil, types.NewNotFoundError(id)
	}
	cp := make([]byte, len(owner))
	copy(cp, owner)
	return cp, nil
}

// NextCandidateID 返回下一个候选 token id
//
// 按节点侧历史行为实现：无存活 token 时为 0，否则为存活最高序号 + 1。
// 该方案在最高序号 token 被销毁后会回退，引擎侧分配器负责修正。
func (l *MemoryOwnershipLedger) NextCandidateID(ctx context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.owners) == 0 {
		return 0, nil
	}
	var highest uint64
	for id := range l.owners {
		if id > highest {
			highest = id
		}
	}
	return highest + 1, nil
}

// IsLive 判断 token 是否存活
func (l *MemoryOwnershipLedger) IsLive(ctx context.Context, id uint64) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.owners[id]
	return exists, nil
}

// Transfer 转移凭证 token 持有权（台账自身能力，引擎不调用）
//
// 凭证 token 可以转手：领取权实时跟随持有权，引擎侧不做任何登记。
func (l *MemoryOwnershipLedger) Transfer(ctx context.Context, from, to []byte, id uint64) error {
	if len(to) == 0 {
		return fmt.Errorf("transfer: empty recipient")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, exists := l.owners[id]
	if !exists {
		return types.NewNotFoundError(id)
	}
	if !bytesEqual(owner, from) {
		return types.NewOwnershipError(from, id)
	}
	cp := make([]byte, len(to))
	copy(cp, to)
	l.owners[id] = cp
	return nil
}

// allowanceRecord 一条额度记录（含剩余额度与登记元数据）
type allowanceRecord struct {
	amount     uint64
	expiration time.Time
	nonce      uint64
}

// MemoryAllowanceLedger 进程内额度台账实现（用于测试和开发）
//
// 同时维护账户余额，使 PullTransfer 的资金移动可观察：
// 划转在扣减额度的同时从出资方余额转入收款方余额。
type MemoryAllowanceLedger struct {
	mu         sync.Mutex
	allowances map[string]*allowanceRecord // key: owner|asset
	balances   map[string]uint64           // key: account|asset
}

// NewMemoryAllowanceLedger 创建进程内额度台账
func NewMemoryAllowanceLedger() *MemoryAllowanceLedger {
	return &MemoryAllowanceLedger{
		allowances: make(map[string]*allowanceRecord),
		balances:   make(map[string]uint64),
	}
}

// RegisterAllowance 登记委托额度
//
// 批次中每条腿的出资方必须等于 owner；额度按资产累加。
// 签名验证不在本台账职责内（由节点侧认证上下文保证），原样接受。
func (l *MemoryAllowanceLedger) RegisterAllowance(ctx context.Context, owner []byte, batch []types.PermissionEntry, signature []byte) error {
	if len(owner) == 0 {
		return fmt.Errorf("register allowance: empty owner")
	}
	if len(batch) == 0 {
		return fmt.Errorf("register allowance: empty batch")
	}
	for i, entry := range batch {
		if !bytesEqual(entry.SourceAccount, owner) {
			return fmt.Errorf("register allowance: entry %d source is not owner", i)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, entry := range batch {
		key := allowanceKey(owner, entry.Asset)
		rec, exists := l.allowances[key]
		if !exists {
			rec = &allowanceRecord{}
			l.allowances[key] = rec
		}
		rec.amount += entry.Amount
		rec.nonce++
	}
	return nil
}

// SetExpiration 设置某条额度的过期时间（测试和管理用途）
func (l *MemoryAllowanceLedger) SetExpiration(owner, asset []byte, expiration time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, exists := l.allowances[allowanceKey(owner, asset)]
	if !exists {
		return fmt.Errorf("set expiration: no allowance for owner")
	}
	rec.expiration = expiration
	return nil
}

// QueryAllowance 查询剩余委托额度
func (l *MemoryAllowanceLedger) QueryAllowance(ctx context.Context, owner, asset []byte) (*Allowance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, exists := l.allowances[allowanceKey(owner, asset)]
	if !exists {
		return &Allowance{}, nil
	}
	return &Allowance{
		Amount:     rec.amount,
		Expiration: rec.expiration,
		Nonce:      rec.nonce,
	}, nil
}

// PullTransfer 按批次执行拉取式划转
//
// 全有或全无：先对整个批次做校验（额度、过期、余额），
// 全部通过后才应用任何变更。
func (l *MemoryAllowanceLedger) PullTransfer(ctx context.Context, batch []types.PermissionEntry) error {
	if len(batch) == 0 {
		return fmt.Errorf("pull transfer: empty batch")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()

	// 1. 按 (出资方, 资产) 聚合本批次的总划转额
	totals := make(map[string]uint64)
	for i, entry := range batch {
		if len(entry.SourceAccount) == 0 || len(entry.DestinationAccount) == 0 {
			return fmt.Errorf("pull transfer: entry %d has empty account", i)
		}
		if entry.Amount == 0 {
			return fmt.Errorf("pull transfer: entry %d has zero amount", i)
		}
		totals[allowanceKey(entry.SourceAccount, entry.Asset)] += entry.Amount
	}

	// 2. 校验每个聚合项的额度与余额
	for i, entry := range batch {
		key := allowanceKey(entry.SourceAccount, entry.Asset)
		total, checked := totals[key]
		if !checked {
			continue // 同一聚合项只校验一次
		}
		delete(totals, key)

		rec, exists := l.allowances[key]
		if !exists || rec.amount < total {
			return fmt.Errorf("pull transfer: entry %d insufficient allowance", i)
		}
		if !rec.expiration.IsZero() && now.After(rec.expiration) {
			return fmt.Errorf("pull transfer: entry %d allowance expired", i)
		}
		if l.balances[balanceKey(entry.SourceAccount, entry.Asset)] < total {
			return fmt.Errorf("pull transfer: entry %d insufficient balance", i)
		}
	}

	// 3. 应用变更（此时不可能再失败）
	for _, entry := range batch {
		l.allowances[allowanceKey(entry.SourceAccount, entry.Asset)].amount -= entry.Amount
		l.balances[balanceKey(entry.SourceAccount, entry.Asset)] -= entry.Amount
		l.balances[balanceKey(entry.DestinationAccount, entry.Asset)] += entry.Amount
	}
	return nil
}

// Credit 为账户充值（测试和开发用途：给债务人准备余额）
func (l *MemoryAllowanceLedger) Credit(account, asset []byte, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[balanceKey(account, asset)] += amount
}

// Balance 查询账户余额
func (l *MemoryAllowanceLedger) Balance(account, asset []byte) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[balanceKey(account, asset)]
}

func allowanceKey(owner, asset []byte) string {
	return hex.EncodeToString(owner) + "|" + hex.EncodeToString(asset)
}

func balanceKey(account, asset []byte) string {
	return hex.EncodeToString(account) + "|" + hex.EncodeToString(asset)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
