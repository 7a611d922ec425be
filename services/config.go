package services

import (
	"time"

	"github.com/weisyn/claim-engine-go/client"
)

// Config 统一的业务服务配置结构，用于为各个具体 Service 提供作废策略、时钟等运行时参数。
//
// **设计目的**：
// - 避免在各个 service 内部硬编码策略开关
// - 保持与节点协议的解耦：台账只关心输入输出，策略由引擎使用方配置
//
// **说明**：
// - 所有字段均为可选，未提供时各 service 采用默认行为
type Config struct {
	// InvalidationPolicy 作废权限策略
	//
	// 协议的不同变体对"谁可以作废"不一致：只允许持有人，
	// 或者持有人与原始授权债务人都允许。必须显式二选一，
	// 不允许隐式同时支持。默认 InvalidateHolderOnly。
	InvalidationPolicy InvalidationPolicy

	// Clock 时钟覆盖（时间窗口判定用；nil 时使用 time.Now）
	Clock func() time.Time

	// EventBufferSize 本地事件订阅通道的缓冲大小（默认 16）
	EventBufferSize int

	// Logger 日志器（可选）
	Logger client.Logger
}

// InvalidationPolicy 作废权限策略
type InvalidationPolicy int

const (
	// InvalidateHolderOnly 仅当前持有人可以作废（默认）
	InvalidateHolderOnly InvalidationPolicy = iota

	// InvalidateHolderOrDebtor 当前持有人与原始授权债务人都可以作废
	InvalidateHolderOrDebtor
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		InvalidationPolicy: InvalidateHolderOnly,
		Clock:              time.Now,
		EventBufferSize:    16,
	}
}
