package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Conn 是会话底层传输的抽象, 便于在测试中替换真实的 websocket 连接。
type Conn interface {
	Send(frame []byte) error
	Ping() error
	Close(code int, reason string) error
}

// Session 表示一条已认证的客户端连接。
type Session struct {
	id          string
	userID      uint
	displayName string
	conn        Conn

	mu         sync.Mutex
	roomID     uint
	alive      bool
	terminated bool
}

func NewSession(conn Conn, userID uint, displayName string) *Session {
	if conn == nil {
		panic("hub: session conn is nil")
	}
	return &Session{
		id:          uuid.New().String(),
		userID:      userID,
		displayName: displayName,
		conn:        conn,
		alive:       true,
	}
}

func (s *Session) ID() string          { return s.id }
func (s *Session) UserID() uint        { return s.userID }
func (s *Session) DisplayName() string { return s.displayName }

// RoomID 返回当前所在房间, 0 表示未加入任何房间。
func (s *Session) RoomID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) setRoomID(roomID uint) {
	s.mu.Lock()
	s.roomID = roomID
	s.mu.Unlock()
}

// MarkAlive 在收到 pong 时调用, 标记会话通过了本轮探测。
func (s *Session) MarkAlive() {
	s.mu.Lock()
	s.alive = true
	s.mu.Unlock()
}

// consumeAlive 读取并清除存活标记。连续两次探测之间没有
// MarkAlive 时第二次返回 false。
func (s *Session) consumeAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	alive := s.alive
	s.alive = false
	return alive
}

// markTerminated 返回 true 仅当这是第一次终止该会话。
func (s *Session) markTerminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return false
	}
	s.terminated = true
	return true
}

func (s *Session) Send(frame []byte) error { return s.conn.Send(frame) }

func (s *Session) Ping() error { return s.conn.Ping() }

func (s *Session) Close(code int, reason string) error { return s.conn.Close(code, reason) }
