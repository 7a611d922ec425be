package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// websocketClient WebSocket 客户端实现
type websocketClient struct {
	endpoint string
	conn     *websocket.Conn
	mu       sync.RWMutex
	closed   int32
	nextID   uint64
	requests map[uint64]chan *jsonrpcResponse
	muReq    sync.RWMutex
	subs     map[string]chan *Event
	muSub    sync.RWMutex
}

// jsonrpcRequest JSON-RPC 请求
type jsonrpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      uint64      `json:"id"`
}

// jsonrpcResponse JSON-RPC 响应
type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// jsonrpcError JSON-RPC 错误
type jsonrpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// jsonrpcMessage 入站消息（响应或订阅通知）
type jsonrpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
	ID      uint64          `json:"id,omitempty"`
}

// subscriptionNotice 订阅通知的 params 结构
type subscriptionNotice struct {
	Subscription string `json:"subscription"`
	Result       struct {
		Topic string `json:"topic"`
		Data  string `json:"data"` // 0x 前缀十六进制
	} `json:"result"`
}

// NewWebSocketClient 创建 WebSocket 客户端
func NewWebSocketClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	endpoint := config.Endpoint
	// 将 http:// 或 https:// 转换为 ws:// 或 wss://
	if strings.HasPrefix(endpoint, "http://") {
		endpoint = "ws://" + endpoint[7:]
	} else if strings.HasPrefix(endpoint, "https://") {
		endpoint = "wss://" + endpoint[8:]
	} else if !strings.HasPrefix(endpoint, "ws://") && !strings.HasPrefix(endpoint, "wss://") {
		endpoint = "ws://" + endpoint
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}

	client := &websocketClient{
		endpoint: endpoint,
		conn:     conn,
		requests: make(map[uint64]chan *jsonrpcResponse),
		subs:     make(map[string]chan *Event),
	}

	// 启动消息读取循环
	go client.readLoop()

	return client, nil
}

// readLoop 消息读取循环：把响应派发给等待的请求，把订阅通知派发给订阅通道
func (c *websocketClient) readLoop() {
	defer func() {
		atomic.StoreInt32(&c.closed, 1)
		c.muReq.Lock()
		for _, ch := range c.requests {
			close(ch)
		}
		c.requests = make(map[uint64]chan *jsonrpcResponse)
		c.muReq.Unlock()
		c.muSub.Lock()
		for _, ch := range c.subs {
			close(ch)
		}
		c.subs = make(map[string]chan *Event)
		c.muSub.Unlock()
	}()

	for {
		if atomic.LoadInt32(&c.closed) == 1 {
			return
		}

		var msg jsonrpcMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			// 连接关闭或错误
			return
		}

		// 订阅通知
		if msg.Method == "claim_subscription" {
			c.dispatchNotice(msg.Params)
			continue
		}

		// 请求响应
		c.muReq.Lock()
		ch, exists := c.requests[msg.ID]
		if exists {
			delete(c.requests, msg.ID)
		}
		c.muReq.Unlock()

		if exists && ch != nil {
			resp := &jsonrpcResponse{
				JSONRPC: msg.JSONRPC,
				Result:  msg.Result,
				Error:   msg.Error,
				ID:      msg.ID,
			}
			select {
			case ch <- resp:
			default:
			}
		}
	}
}

// dispatchNotice 派发一条订阅通知
func (c *websocketClient) dispatchNotice(params json.RawMessage) {
	var notice subscriptionNotice
	if err := json.Unmarshal(params, &notice); err != nil {
		return
	}

	c.muSub.RLock()
	ch, exists := c.subs[notice.Subscription]
	c.muSub.RUnlock()
	if !exists {
		return
	}

	data, err := hex.DecodeString(strings.TrimPrefix(notice.Result.Data, "0x"))
	if err != nil {
		return
	}

	// 投递为非阻塞：订阅方消费不及时丢事件
	select {
	case ch <- &Event{Topic: notice.Result.Topic, Data: data}:
	default:
	}
}

// Call 调用 JSON-RPC 方法
func (c *websocketClient) Call(ctx context.Context, method string, params interface{}) (interface{}, error) {
	if atomic.LoadInt32(&c.closed) == 1 {
		return nil, fmt.Errorf("websocket client is closed")
	}

	reqID := atomic.AddUint64(&c.nextID, 1)

	req := jsonrpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      reqID,
	}

	// 创建响应通道
	respCh := make(chan *jsonrpcResponse, 1)
	c.muReq.Lock()
	c.requests[reqID] = respCh
	c.muReq.Unlock()

	// 发送请求
	c.mu.RLock()
	err := c.conn.WriteJSON(req)
	c.mu.RUnlock()
	if err != nil {
		c.muReq.Lock()
		delete(c.requests, reqID)
		c.muReq.Unlock()
		return nil, fmt.Errorf("write request: %w", err)
	}

	// 等待响应
	select {
	case resp := <-respCh:
		if resp == nil {
			return nil, fmt.Errorf("response channel closed")
		}
		if resp.Error != nil {
			return nil, fmt.Errorf("RPC error %d: %s", resp.Error.Code, resp.Error.Message)
		}

		var result interface{}
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		return result, nil

	case <-ctx.Done():
		c.muReq.Lock()
		delete(c.requests, reqID)
		c.muReq.Unlock()
		return nil, ctx.Err()

	case <-time.After(30 * time.Second):
		c.muReq.Lock()
		delete(c.requests, reqID)
		c.muReq.Unlock()
		return nil, fmt.Errorf("request timeout")
	}
}

// Subscribe 订阅事件
func (c *websocketClient) Subscribe(ctx context.Context, filter *EventFilter) (<-chan *Event, error) {
	// 构建订阅参数
	params := map[string]interface{}{}
	if filter != nil {
		if len(filter.Topics) > 0 {
			params["topics"] = filter.Topics
		}
		if len(filter.From) > 0 {
			params["from"] = "0x" + hex.EncodeToString(filter.From)
		}
		if len(filter.To) > 0 {
			params["to"] = "0x" + hex.EncodeToString(filter.To)
		}
	}

	// 调用订阅方法
	result, err := c.Call(ctx, "claim_subscribe", []interface{}{params})
	if err != nil {
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}

	// 解析订阅 ID
	resultMap, ok := result.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid subscription response")
	}

	subscriptionID, _ := resultMap["subscription"].(string)
	if subscriptionID == "" {
		return nil, fmt.Errorf("missing subscription ID")
	}

	// 登记事件通道，readLoop 按订阅 ID 派发
	eventCh := make(chan *Event, 100)
	c.muSub.Lock()
	c.subs[subscriptionID] = eventCh
	c.muSub.Unlock()

	go func() {
		<-ctx.Done()
		c.muSub.Lock()
		if existing, exists := c.subs[subscriptionID]; exists {
			delete(c.subs, subscriptionID)
			close(existing)
		}
		c.muSub.Unlock()
	}()

	return eventCh, nil
}

// Close 关闭连接
func (c *websocketClient) Close() error {
	if atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	}
	return nil
}
