package claim

import (
	"context"
	"time"

	"github.com/weisyn/claim-engine-go/types"
)

// EventTopicFundsTransferred 领取成功事件主题
const EventTopicFundsTransferred = "FundsTransferred"

// FundsTransferredEvent 领取成功事件
//
// 在凭证销毁且划转成功之后发出；失败的领取不产生事件。
type FundsTransferredEvent struct {
	ClaimID  uint64
	Claimant []byte
	// Entries 实际执行的转账批次（收款方已是领取人）
	Entries []types.PermissionEntry
	At      time.Time
}

// SubscribeFundsTransferred 订阅领取成功事件
//
// 返回的通道在 ctx 取消后关闭。投递为非阻塞：订阅方消费不及时
// 会丢事件而不会阻塞领取路径。
func (s *claimService) SubscribeFundsTransferred(ctx context.Context) (<-chan *FundsTransferredEvent, error) {
	ch := make(chan *FundsTransferredEvent, s.cfg.EventBufferSize)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	go func() {
		<-ctx.Done()
		s.subMu.Lock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
		s.subMu.Unlock()
	}()

	return ch, nil
}

// publish 向所有本地订阅方投递事件（非阻塞）
func (s *claimService) publish(event *FundsTransferredEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
			s.logWarn("event subscriber buffer full, dropping event",
				"claimId", event.ClaimID)
		}
	}
}
