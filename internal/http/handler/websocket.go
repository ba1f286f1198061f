package handler

import (
	"strconv"
	"sync"
	"time"

	"hvac-dispatch/internal/models"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	wsPingInterval = 20 * time.Second
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 5 * time.Second
)

type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// wsClient serializes writes to one connection; pings and pushes come from
// different goroutines.
type wsClient struct {
	conn     *websocket.Conn
	logger   *zap.Logger
	writeMux sync.Mutex
}

func (w *wsClient) send(msg wsMessage) error {
	w.writeMux.Lock()
	defer w.writeMux.Unlock()

	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := w.conn.WriteJSON(msg); err != nil {
		w.logger.Debug("websocket write failed", zap.Error(err))
		return err
	}
	return nil
}

func (w *wsClient) ping() error {
	w.writeMux.Lock()
	defer w.writeMux.Unlock()

	_ = w.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

func (w *wsClient) close() {
	w.writeMux.Lock()
	defer w.writeMux.Unlock()

	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteTimeout))
	_ = w.conn.Close()
}

// stream forwards pushes from updates until the peer goes away or the
// source closes the channel. stop is always called on return.
func stream[T any](w *wsClient, updates <-chan T, stop func() error, toMessage func(T) wsMessage) {
	defer func() { _ = stop() }()

	_ = w.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := w.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
					websocket.CloseNormalClosure,
				) {
					w.logger.Warn("websocket unexpected close", zap.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := w.send(toMessage(u)); err != nil {
				return
			}
		case <-ticker.C:
			if err := w.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func actorFromConn(conn *websocket.Conn) models.Actor {
	userID, _ := conn.Locals("user_id").(int64)
	tenantID, _ := conn.Locals("tenant_id").(int64)
	role, _ := conn.Locals("role").(string)
	name, _ := conn.Locals("name").(string)
	return models.Actor{UserID: userID, TenantID: tenantID, Role: role, Name: name}
}

func wsParamID(conn *websocket.Conn, name string) (int64, error) {
	return strconv.ParseInt(conn.Params(name), 10, 64)
}
