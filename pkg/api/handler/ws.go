package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/aliciakaith/flowgrid/pkg/api/middleware"
	"github.com/aliciakaith/flowgrid/pkg/core/bus"
)

// WSHandler 事件总线的WebSocket入口
type WSHandler struct {
	bus      *bus.Bus
	upgrader websocket.Upgrader
}

// NewWSHandler 创建WSHandler
func NewWSHandler(b *bus.Bus, allowedOrigin string) *WSHandler {
	return &WSHandler{
		bus: b,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// Subscribe 升级连接并加入调用方组织的房间
// GET /ws
func (h *WSHandler) Subscribe(c *gin.Context) {
	p := middleware.PrincipalFrom(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket升级失败: %v", err)
		return
	}

	sub := h.bus.Subscribe(p.OrgID, func(kind string) error {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(map[string]string{"event": kind})
	})

	// 读取泵只用于感知连接关闭；客户端不上行业务数据
	go func() {
		defer func() {
			h.bus.Unsubscribe(p.OrgID, sub)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
