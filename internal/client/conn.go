package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/protocol"
	"collaborative-canvas/internal/shape"
)

// Status 是连接生命周期的状态。
type Status int

const (
	StatusIdle Status = iota
	StatusChecking
	StatusConnecting
	StatusOpen
	StatusRoomNotFound
	StatusClosed
	StatusError
)

var (
	ErrRoomNotFound = errors.New("client: room not found")
	ErrNotConnected = errors.New("client: not connected")
)

const connectTimeout = 10 * time.Second

// Conn 把引擎接到服务端: HTTP 做房间预检与初始图形拉取,
// WebSocket 承载增量同步。实现 Emitter 供引擎回调。
type Conn struct {
	httpBase   string
	wsURL      string
	token      string
	httpClient *http.Client
	dialer     *websocket.Dialer
	engine     *Engine

	mu     sync.Mutex
	ws     *websocket.Conn
	roomID uint
	status Status
}

// NewConn 创建客户端连接。httpBase 形如 http://host:8080,
// wsURL 形如 ws://host:8080/ws, token 是登录获得的 JWT。
func NewConn(httpBase, wsURL, token string) *Conn {
	c := &Conn{
		httpBase:   httpBase,
		wsURL:      wsURL,
		token:      token,
		httpClient: &http.Client{Timeout: connectTimeout},
		dialer:     websocket.DefaultDialer,
		status:     StatusIdle,
	}
	c.engine = NewEngine(c)
	return c
}

// Engine 返回与该连接绑定的同步引擎。
func (c *Conn) Engine() *Engine { return c.engine }

// Status 返回当前连接状态。
func (c *Conn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Conn) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Connect 加入房间: 先预检房间存在, 再建立 WebSocket 并发送
// JOIN_ROOM, 最后拉取初始图形填充引擎。成功后启动读循环。
func (c *Conn) Connect(ctx context.Context, roomID uint) error {
	c.setStatus(StatusChecking)
	exists, err := c.roomExists(ctx, roomID)
	if err != nil {
		c.setStatus(StatusError)
		return err
	}
	if !exists {
		c.setStatus(StatusRoomNotFound)
		return ErrRoomNotFound
	}

	c.setStatus(StatusConnecting)
	u, err := url.Parse(c.wsURL)
	if err != nil {
		c.setStatus(StatusError)
		return fmt.Errorf("client: bad websocket url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	u.RawQuery = q.Encode()

	ws, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		c.setStatus(StatusError)
		return fmt.Errorf("client: websocket dial failed: %w", err)
	}

	c.mu.Lock()
	c.ws = ws
	c.roomID = roomID
	c.mu.Unlock()

	if err := c.send(protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: roomID}); err != nil {
		_ = ws.Close()
		c.setStatus(StatusError)
		return err
	}

	seed, err := c.fetchShapes(ctx, roomID)
	if err != nil {
		// 初始拉取失败不致命, 已在房间内, 增量同步仍然可用
		logrus.WithError(err).Warn("Failed to fetch initial shapes")
	} else {
		c.engine.Seed(seed)
	}

	c.setStatus(StatusOpen)
	go c.readLoop()
	return nil
}

// Close 离开房间并断开连接。
func (c *Conn) Close() error {
	c.mu.Lock()
	ws := c.ws
	roomID := c.roomID
	c.ws = nil
	c.mu.Unlock()
	if ws == nil {
		return nil
	}

	if frame, err := protocol.Marshal(protocol.TypeLeaveRoom, protocol.LeaveRoomPayload{RoomID: roomID}); err == nil {
		_ = ws.WriteMessage(websocket.TextMessage, frame)
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.setStatus(StatusClosed)
	return ws.Close()
}

// --- Emitter 实现 ---

func (c *Conn) CreateShape(s *shape.Shape) error {
	message, err := shape.Encode(s)
	if err != nil {
		return err
	}
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()
	return c.send(protocol.TypeCreateShape, protocol.CreateShapePayload{
		Message: message,
		RoomID:  roomID,
	})
}

func (c *Conn) UpdateShape(s *shape.Shape) error {
	message, err := shape.Encode(s)
	if err != nil {
		return err
	}
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()
	return c.send(protocol.TypeUpdateShape, protocol.UpdateShapePayload{
		Message: message,
		ShapeID: s.ID,
		RoomID:  roomID,
	})
}

func (c *Conn) DeleteShape(shapeID string) error {
	c.mu.Lock()
	roomID := c.roomID
	c.mu.Unlock()
	return c.send(protocol.TypeDeleteShape, protocol.DeleteShapePayload{
		ShapeID: shapeID,
		RoomID:  roomID,
	})
}

// send 序列化并写出一帧, 写操作用连接锁串行化。
func (c *Conn) send(msgType string, payload interface{}) error {
	frame, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(connectTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

// --- 入站分发 ---

func (c *Conn) readLoop() {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return
	}

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, protocol.CloseNoToken, protocol.CloseAuthFailed) {
				logrus.WithError(err).Warn("Server rejected connection during handshake")
				c.setStatus(StatusError)
			} else if c.Status() == StatusOpen {
				c.setStatus(StatusClosed)
			}
			return
		}
		c.dispatch(frame)
	}
}

func (c *Conn) dispatch(frame []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		logrus.WithError(err).Warn("Dropping malformed server frame")
		return
	}

	switch env.Type {
	case protocol.TypeCreateShape, protocol.TypeCreateShapeAlias:
		var p protocol.CreateShapePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			logrus.WithError(err).Warn("Dropping malformed create payload")
			return
		}
		c.engine.ApplyRemoteCreate(p.Message)
	case protocol.TypeAckShape:
		var p protocol.AckShapePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			logrus.WithError(err).Warn("Dropping malformed ack payload")
			return
		}
		c.engine.ApplyAck(p.TempID, p.ShapeID)
	case protocol.TypeUpdateShape:
		var p protocol.UpdateShapePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			logrus.WithError(err).Warn("Dropping malformed update payload")
			return
		}
		c.engine.ApplyRemoteUpdate(p.Message)
	case protocol.TypeDeleteShape:
		var p protocol.DeleteShapePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			logrus.WithError(err).Warn("Dropping malformed delete payload")
			return
		}
		c.engine.ApplyRemoteDelete(p.ShapeID)
	case protocol.TypeError:
		var p protocol.ErrorPayload
		_ = json.Unmarshal(env.Payload, &p)
		logrus.WithFields(logrus.Fields{"code": p.Code, "message": p.Message}).Warn("Server reported protocol error")
	default:
		logrus.WithField("type", env.Type).Debug("Ignoring unknown server frame")
	}
}

// --- HTTP 辅助 ---

func (c *Conn) roomExists(ctx context.Context, roomID uint) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/rooms/%d/exists", c.httpBase, roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("client: room check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("client: room check returned status %d", resp.StatusCode)
	}

	var body struct {
		Exists bool `json:"exists"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("client: bad room check response: %w", err)
	}
	return body.Exists, nil
}

func (c *Conn) fetchShapes(ctx context.Context, roomID uint) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/rooms/%d/shapes", c.httpBase, roomID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: shape fetch failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("client: shape fetch returned status %d: %s", resp.StatusCode, raw)
	}

	var body struct {
		Shapes []string `json:"shapes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("client: bad shape list response: %w", err)
	}
	return body.Shapes, nil
}
