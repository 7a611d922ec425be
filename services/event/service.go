// Package event 提供领取事件的远程订阅：通过节点的事件接口观察
// FundsTransferred（进程内订阅直接用 claim.Service.SubscribeFundsTransferred）。
package event

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/weisyn/claim-engine-go/client"
	claimsvc "github.com/weisyn/claim-engine-go/services/claim"
	"github.com/weisyn/claim-engine-go/types"
)

// Service Event 业务服务接口
type Service interface {
	// GetEvents 获取历史领取事件列表
	GetEvents(ctx context.Context, filters *EventFilters) ([]*claimsvc.FundsTransferredEvent, error)

	// SubscribeEvents 订阅领取事件
	SubscribeEvents(ctx context.Context, filters *EventFilters) (<-chan *claimsvc.FundsTransferredEvent, error)
}

// eventService Event 服务实现
type eventService struct {
	client client.Client
}

// NewService 创建 Event 服务
func NewService(client client.Client) Service {
	return &eventService{
		client: client,
	}
}

// EventFilters 事件查询过滤器
type EventFilters struct {
	// ClaimID 只看某一张凭证的事件
	ClaimID *uint64
	// Claimant 只看某个领取人的事件（20字节地址）
	Claimant []byte
	Limit    int
	Offset   int
}

// GetEvents 获取历史领取事件列表
func (s *eventService) GetEvents(ctx context.Context, filters *EventFilters) ([]*claimsvc.FundsTransferredEvent, error) {
	req := map[string]interface{}{
		"eventName": claimsvc.EventTopicFundsTransferred,
	}

	if filters != nil {
		if filters.ClaimID != nil {
			req["claimId"] = *filters.ClaimID
		}
		if len(filters.Claimant) > 0 {
			req["claimant"] = "0x" + hex.EncodeToString(filters.Claimant)
		}
		if filters.Limit > 0 {
			req["limit"] = filters.Limit
		}
		if filters.Offset > 0 {
			req["offset"] = filters.Offset
		}
	}

	raw, err := s.client.Call(ctx, "claim_getEvents", []interface{}{map[string]interface{}{"filters": req}})
	if err != nil {
		return nil, fmt.Errorf("get events failed: %w", err)
	}

	events, err := decodeEventArray(raw)
	if err != nil {
		return nil, fmt.Errorf("decode event array failed: %w", err)
	}

	return events, nil
}

// SubscribeEvents 订阅领取事件
func (s *eventService) SubscribeEvents(ctx context.Context, filters *EventFilters) (<-chan *claimsvc.FundsTransferredEvent, error) {
	eventFilter := &client.EventFilter{
		Topics: []string{claimsvc.EventTopicFundsTransferred},
	}
	if filters != nil && len(filters.Claimant) > 0 {
		eventFilter.To = filters.Claimant
	}

	// 使用底层 Client.Subscribe
	eventChan, err := s.client.Subscribe(ctx, eventFilter)
	if err != nil {
		return nil, fmt.Errorf("subscribe events failed: %w", err)
	}

	infoChan := make(chan *claimsvc.FundsTransferredEvent, 10)
	go func() {
		defer close(infoChan)
		for ev := range eventChan {
			info, err := decodeEvent(ev.Data)
			if err != nil {
				continue // 跳过无法解码的事件
			}
			if filters != nil && filters.ClaimID != nil && info.ClaimID != *filters.ClaimID {
				continue
			}
			infoChan <- info
		}
	}()

	return infoChan, nil
}

// wireEvent 节点侧事件的线上编码
type wireEvent struct {
	ClaimID  uint64      `json:"claimId"`
	Claimant string      `json:"claimant"`
	At       string      `json:"at"`
	Entries  []wireEntry `json:"entries"`
}

type wireEntry struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Asset       string `json:"asset"`
	Amount      uint64 `json:"amount"`
}

// decodeEvent 解码单个领取事件
func decodeEvent(data []byte) (*claimsvc.FundsTransferredEvent, error) {
	var we wireEvent
	if err := json.Unmarshal(data, &we); err != nil {
		return nil, fmt.Errorf("unmarshal event failed: %w", err)
	}

	claimant, err := decodeHexField(we.Claimant)
	if err != nil {
		return nil, fmt.Errorf("decode claimant failed: %w", err)
	}

	out := &claimsvc.FundsTransferredEvent{
		ClaimID:  we.ClaimID,
		Claimant: claimant,
	}
	if we.At != "" {
		at, err := time.Parse(time.RFC3339, we.At)
		if err != nil {
			return nil, fmt.Errorf("decode event timestamp failed: %w", err)
		}
		out.At = at
	}
	for i, e := range we.Entries {
		source, err := decodeHexField(e.Source)
		if err != nil {
			return nil, fmt.Errorf("decode entry %d source failed: %w", i, err)
		}
		destination, err := decodeHexField(e.Destination)
		if err != nil {
			return nil, fmt.Errorf("decode entry %d destination failed: %w", i, err)
		}
		asset, err := decodeHexField(e.Asset)
		if err != nil {
			return nil, fmt.Errorf("decode entry %d asset failed: %w", i, err)
		}
		out.Entries = append(out.Entries, types.PermissionEntry{
			SourceAccount:      source,
			DestinationAccount: destination,
			Asset:              asset,
			Amount:             e.Amount,
		})
	}
	return out, nil
}

// decodeEventArray 解码事件数组
func decodeEventArray(raw interface{}) ([]*claimsvc.FundsTransferredEvent, error) {
	if raw == nil {
		return []*claimsvc.FundsTransferredEvent{}, nil
	}

	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected event array format: %T", raw)
	}

	events := make([]*claimsvc.FundsTransferredEvent, 0, len(items))
	for i, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("re-encode event %d failed: %w", i, err)
		}
		ev, err := decodeEvent(encoded)
		if err != nil {
			return nil, fmt.Errorf("decode event %d failed: %w", i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func decodeHexField(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
