// Package chat 是终端客户端的会话层：维护对话历史和流式输出状态，
// 把服务端的增量文本逐段拼接成助手消息。
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai_chat_mini/internal/models"
)

var (
	// ErrStreamActive 已有进行中的请求
	ErrStreamActive = errors.New("已有进行中的请求")
	// ErrHistoryNotEmpty 对话开始后不能修改系统角色
	ErrHistoryNotEmpty = errors.New("对话开始后不能修改系统角色")
)

// State 请求状态
type State int

// 请求状态。Finalized、Aborted、Errored 是一次请求的终态，随后回到 Idle。
const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateFinalized
	StateAborted
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// EventType 会话事件类型
type EventType int

// 会话事件
const (
	EventMessages       EventType = iota // 历史消息变化
	EventPartial                         // 进行中的助手文本变化，Text为本次追加的片段
	EventLoading                         // 加载状态变化
	EventError                           // 错误信息变化
	EventScrollToBottom                  // 置底模式下请求滚动到底部
	EventFocusInput                      // 请求恢复输入焦点
	EventState                           // 请求状态变化
)

// Event 会话事件
type Event struct {
	Type  EventType
	Text  string
	State State
}

// StreamSession 一次进行中的请求
type StreamSession struct {
	ID        uuid.UUID
	StartedAt time.Time
	cancel    context.CancelFunc
}

// Options 会话选项
type Options struct {
	SystemRole  string
	Temperature float64
	Stick       bool
	Touch       bool // 触屏设备上结束后不抢输入焦点
}

// Session 客户端会话状态。所有修改都在锁内完成，观察者在锁外按订阅顺序同步通知。
type Session struct {
	mu          sync.Mutex
	messages    []models.ChatMessage
	systemRole  string
	partial     strings.Builder
	loading     bool
	state       State
	lastOutcome State
	active      *StreamSession
	lastErr     *models.ErrorMessage
	stick       bool
	touch       bool
	temperature float64

	observers []observer
	nextObs   int
}

type observer struct {
	id int
	fn func(Event)
}

// NewSession 创建会话
func NewSession(opts Options) *Session {
	return &Session{
		systemRole:  opts.SystemRole,
		temperature: opts.Temperature,
		stick:       opts.Stick,
		touch:       opts.Touch,
	}
}

// Subscribe 订阅会话事件，返回取消订阅函数
func (s *Session) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// notify 在锁外通知观察者
func (s *Session) notify(events ...Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	observers := s.observers
	s.mu.Unlock()

	for _, e := range events {
		for _, o := range observers {
			o.fn(e)
		}
	}
}

// Messages 返回历史消息的副本
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.messages...)
}

// SystemRole 返回系统角色文本
func (s *Session) SystemRole() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.systemRole
}

// SetSystemRole 设置系统角色，只能在历史为空时修改
func (s *Session) SetSystemRole(text string) error {
	s.mu.Lock()
	if len(s.messages) > 0 {
		s.mu.Unlock()
		return ErrHistoryNotEmpty
	}
	s.systemRole = strings.TrimSpace(text)
	s.mu.Unlock()

	s.notify(Event{Type: EventMessages})
	return nil
}

// Temperature 返回温度
func (s *Session) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.temperature
}

// SetTemperature 设置温度
func (s *Session) SetTemperature(t float64) {
	s.mu.Lock()
	s.temperature = t
	s.mu.Unlock()
}

// Stick 是否置底
func (s *Session) Stick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stick
}

// SetStick 设置置底模式
func (s *Session) SetStick(stick bool) {
	s.mu.Lock()
	s.stick = stick
	s.mu.Unlock()
	if stick {
		s.notify(Event{Type: EventScrollToBottom})
	}
}

// Loading 是否有请求进行中
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// State 返回当前请求状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastOutcome 返回最近一次请求的终态，还没有请求时为 StateIdle
func (s *Session) LastOutcome() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutcome
}

// Error 返回当前错误信息，没有时为nil
func (s *Session) Error() *models.ErrorMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr == nil {
		return nil
	}
	e := *s.lastErr
	return &e
}

// Partial 返回进行中的助手文本
func (s *Session) Partial() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partial.String()
}

// Clear 清空历史、进行中的文本和错误
func (s *Session) Clear() {
	s.mu.Lock()
	s.messages = nil
	s.partial.Reset()
	s.lastErr = nil
	s.mu.Unlock()

	s.notify(Event{Type: EventMessages}, Event{Type: EventPartial}, Event{Type: EventError})
}

// prepareFunc 在开始请求前修改历史，返回 false 表示不发起请求
type prepareFunc func(history []models.ChatMessage) ([]models.ChatMessage, bool)

// appendUser 追加一条用户消息
func appendUser(text string) prepareFunc {
	return func(history []models.ChatMessage) ([]models.ChatMessage, bool) {
		return append(history, models.ChatMessage{Role: models.RoleUser, Content: text}), true
	}
}

// dropLastAssistant 末尾是助手消息时删除它，历史为空时不发起请求
func dropLastAssistant(history []models.ChatMessage) ([]models.ChatMessage, bool) {
	n := len(history)
	if n == 0 {
		return history, false
	}
	if history[n-1].Role == models.RoleAssistant {
		history = history[:n-1]
	}
	return history, true
}

// requestState 开始请求时的会话快照，用于构建请求体
type requestState struct {
	messages    []models.ChatMessage
	systemRole  string
	temperature float64
}

// begin 开始一次请求。检查活动请求、修改历史和进入 Sending 在同一把锁内完成，
// 已有活动请求时历史保持不变。prepare 为空时不修改历史；prepare 拒绝时返回 nil, nil。
func (s *Session) begin(cancel context.CancelFunc, prepare prepareFunc) (*StreamSession, *requestState, error) {
	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return nil, nil, ErrStreamActive
	}

	var events []Event
	if prepare != nil {
		before := len(s.messages)
		history, ok := prepare(s.messages)
		if !ok {
			s.mu.Unlock()
			return nil, nil, nil
		}
		if len(history) != before {
			events = append(events, Event{Type: EventMessages})
		}
		s.messages = history
	}

	stream := &StreamSession{ID: uuid.New(), StartedAt: time.Now(), cancel: cancel}
	state := &requestState{
		messages:    append([]models.ChatMessage(nil), s.messages...),
		systemRole:  s.systemRole,
		temperature: s.temperature,
	}
	s.active = stream
	s.partial.Reset()
	s.lastErr = nil
	s.loading = true
	s.state = StateSending
	s.mu.Unlock()

	s.notify(append(events,
		Event{Type: EventError},
		Event{Type: EventPartial},
		Event{Type: EventLoading},
		Event{Type: EventState, State: StateSending},
	)...)
	return stream, state, nil
}

// owns 检查id是否是当前活动的请求，调用方需持有锁
func (s *Session) owns(id uuid.UUID) bool {
	return s.active != nil && s.active.ID == id
}

// streaming 收到响应后进入 Streaming
func (s *Session) streaming(id uuid.UUID) bool {
	s.mu.Lock()
	if !s.owns(id) {
		s.mu.Unlock()
		return false
	}
	s.state = StateStreaming
	s.mu.Unlock()

	s.notify(Event{Type: EventState, State: StateStreaming})
	return true
}

// appendPartial 追加一个片段。不属于当前请求的片段直接丢弃。
func (s *Session) appendPartial(id uuid.UUID, chunk string) bool {
	s.mu.Lock()
	if !s.owns(id) || chunk == "" || isDuplicateNewline(s.partial.String(), chunk) {
		s.mu.Unlock()
		return false
	}
	s.partial.WriteString(chunk)
	stick := s.stick
	s.mu.Unlock()

	events := []Event{{Type: EventPartial, Text: chunk}}
	if stick {
		events = append(events, Event{Type: EventScrollToBottom})
	}
	s.notify(events...)
	return true
}

// finish 结束当前请求。keep 为真时把进行中的文本归档为助手消息，否则丢弃。
// 调用方需持有锁，返回需要在锁外发送的事件。
func (s *Session) finish(outcome State, keep bool) []Event {
	var events []Event
	if text := s.partial.String(); keep && text != "" {
		s.messages = append(s.messages, models.ChatMessage{Role: models.RoleAssistant, Content: text})
		events = append(events, Event{Type: EventMessages})
	}
	s.partial.Reset()
	s.active = nil
	s.loading = false
	s.lastOutcome = outcome
	s.state = StateIdle

	events = append(events,
		Event{Type: EventPartial},
		Event{Type: EventLoading},
		Event{Type: EventState, State: outcome},
		Event{Type: EventState, State: StateIdle},
	)
	if outcome != StateErrored && !s.touch {
		events = append(events, Event{Type: EventFocusInput})
	}
	if s.stick {
		events = append(events, Event{Type: EventScrollToBottom})
	}
	return events
}

// finalize 流正常结束
func (s *Session) finalize(id uuid.UUID) bool {
	s.mu.Lock()
	if !s.owns(id) {
		s.mu.Unlock()
		return false
	}
	events := s.finish(StateFinalized, true)
	s.mu.Unlock()

	s.notify(events...)
	return true
}

// fail 请求失败。errMsg 非空时写入错误信息；为空表示传输中断，错误信息保持不变。
// 进行中的文本被丢弃。
func (s *Session) fail(id uuid.UUID, errMsg *models.ErrorMessage) bool {
	s.mu.Lock()
	if !s.owns(id) {
		s.mu.Unlock()
		return false
	}
	var events []Event
	if errMsg != nil {
		e := *errMsg
		s.lastErr = &e
		events = append(events, Event{Type: EventError})
	}
	events = append(events, s.finish(StateErrored, false)...)
	s.mu.Unlock()

	s.notify(events...)
	return true
}

// abort 取消当前请求并保留已收到的文本
func (s *Session) abort() bool {
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return false
	}
	s.active.cancel()
	events := s.finish(StateAborted, true)
	s.mu.Unlock()

	s.notify(events...)
	return true
}
