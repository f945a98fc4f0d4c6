package service

import (
	"sync"
	"time"
)

// 事件类型
const (
	EventSessionCreated = "session_created"
	EventPlayerJoined   = "player_joined"
	EventKillRecorded   = "kill_recorded"
	EventSpawnPurchased = "spawn_purchased"
	EventSessionSettled = "session_settled"
)

// SessionEvent 会话事件
type SessionEvent struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// EventHub 会话事件分发器。
// 订阅者缓冲满时事件被丢弃，不阻塞发布方。
type EventHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan SessionEvent]struct{}
}

// NewEventHub 创建事件分发器
func NewEventHub() *EventHub {
	return &EventHub{
		subscribers: make(map[string]map[chan SessionEvent]struct{}),
	}
}

// Subscribe 订阅指定会话的事件，返回取消函数
func (h *EventHub) Subscribe(sessionID string) (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 16)

	h.mu.Lock()
	if h.subscribers[sessionID] == nil {
		h.subscribers[sessionID] = make(map[chan SessionEvent]struct{})
	}
	h.subscribers[sessionID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if subs, ok := h.subscribers[sessionID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(h.subscribers, sessionID)
			}
		}
		h.mu.Unlock()
	}

	return ch, cancel
}

// Publish 发布会话事件
func (h *EventHub) Publish(eventType, sessionID string, data map[string]interface{}) {
	event := SessionEvent{
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[sessionID] {
		select {
		case ch <- event:
		default:
			// 订阅者处理过慢，丢弃事件
		}
	}
}
