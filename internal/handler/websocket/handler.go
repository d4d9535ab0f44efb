package websocket

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/hub"
	"collaborative-canvas/internal/protocol"
	"collaborative-canvas/internal/service"
)

// Handler 负责 WebSocket 升级、握手认证和会话接入。
// 认证失败不走 HTTP 状态码: 先完成升级, 再用协议关闭码通知客户端,
// 这样浏览器侧能从 CloseEvent.code 区分失败原因。
type Handler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	authService *service.AuthService
	sync        hub.FrameHandler
	log         *logrus.Logger
}

func NewHandler(h *hub.Hub, authService *service.AuthService, sync hub.FrameHandler, log *logrus.Logger) *Handler {
	if h == nil {
		panic("Hub cannot be nil for websocket Handler")
	}
	if authService == nil {
		panic("AuthService cannot be nil for websocket Handler")
	}
	if sync == nil {
		panic("FrameHandler cannot be nil for websocket Handler")
	}
	if log == nil {
		panic("Logger cannot be nil for websocket Handler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// 生产环境应配置具体的允许来源
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	return &Handler{
		upgrader:    upgrader,
		hub:         h,
		authService: authService,
		sync:        sync,
		log:         log,
	}
}

// HandleConnection 处理 GET /ws?token=<jwt> 的连接请求。
func (h *Handler) HandleConnection(c *gin.Context) {
	token := c.Query("token")

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时 gorilla 已经写回了 HTTP 错误
		h.log.WithError(err).Warn("WS Handler: failed to upgrade connection")
		return
	}

	conn := hub.NewWSConn(ws, h.log)

	if token == "" {
		h.log.Warn("WS Handler: connection rejected, no token supplied")
		_ = conn.Close(protocol.CloseNoToken, "token required")
		return
	}

	claims, err := h.authService.VerifyToken(token)
	if err != nil {
		h.log.WithError(err).Warn("WS Handler: connection rejected, token verification failed")
		_ = conn.Close(protocol.CloseAuthFailed, "authentication failed")
		return
	}

	sess := hub.NewSession(conn, claims.UserID, claims.Username)
	h.hub.Register(sess)
	h.log.WithFields(logrus.Fields{
		"session_id": sess.ID(),
		"user_id":    claims.UserID,
		"username":   claims.Username,
	}).Info("WS Handler: connection established")

	// 会话生命周期与请求生命周期解耦, 升级后请求上下文不再可靠
	conn.Run(context.Background(), h.hub, sess, h.sync)
}
