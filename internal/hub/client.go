package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// 单次写操作的最长等待时间
	writeWait = 10 * time.Second

	// 允许的最大入站帧, 自由画笔的点序列可能很长
	maxMessageSize = 512 * 1024

	// 出站队列长度, 写满说明客户端消费太慢
	sendQueueSize = 256
)

var errSendQueueFull = errors.New("hub: send queue full")

// WSConn 将 gorilla/websocket 连接适配成 Conn。
// 所有写操作都经由 writePump 串行化。
type WSConn struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
	log       *logrus.Logger
}

func NewWSConn(ws *websocket.Conn, log *logrus.Logger) *WSConn {
	if ws == nil {
		panic("hub: websocket conn is nil")
	}
	return &WSConn{
		ws:   ws,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
		log:  log,
	}
}

// Send 非阻塞入队。连接已关闭或队列已满时返回错误,
// 调用方不应重试, 慢客户端由心跳机制回收。
func (c *WSConn) Send(frame []byte) error {
	select {
	case <-c.done:
		return errors.New("hub: connection closed")
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errSendQueueFull
	}
}

func (c *WSConn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close 尽力发送关闭帧后断开底层连接。code 为 0 时使用正常关闭码。
func (c *WSConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		if code == 0 {
			code = websocket.CloseNormalClosure
		}
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// Run 启动读写泵并阻塞直到连接结束。
// 入站帧在读循环内同步交给 handler, 保证同一会话的帧按序处理。
func (c *WSConn) Run(ctx context.Context, h *Hub, sess *Session, handler FrameHandler) {
	go c.writePump()
	c.readPump(ctx, h, sess, handler)
}

func (c *WSConn) readPump(ctx context.Context, h *Hub, sess *Session, handler FrameHandler) {
	defer func() {
		h.Unregister(ctx, sess)
		_ = c.Close(0, "")
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetPongHandler(func(string) error {
		sess.MarkAlive()
		return nil
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.WithError(err).WithField("session_id", sess.ID()).Warn("Unexpected websocket close")
			}
			return
		}
		sess.MarkAlive()
		handler.HandleFrame(ctx, sess, frame)
	}
}

func (c *WSConn) writePump() {
	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.WithError(err).Debug("Websocket write failed")
				_ = c.Close(0, "")
				return
			}
		case <-c.done:
			return
		}
	}
}
