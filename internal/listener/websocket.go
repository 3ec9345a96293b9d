package listener

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultWebSocketPath = "/ws"

	wsWriteWait    = 5 * time.Second
	wsShutdownWait = 5 * time.Second
)

// WebSocketListener serves sessions to browser clients. Each text message
// from the client is one input line and each write is sent as one text
// message.
type WebSocketListener struct {
	port uint16
	path string
	cm   *ConnectionManager
}

func NewWebSocketListener(port uint16, path string, cm *ConnectionManager) *WebSocketListener {
	if path == "" {
		path = DefaultWebSocketPath
	}
	return &WebSocketListener{
		port: port,
		path: path,
		cm:   cm,
	}
}

func (l *WebSocketListener) Start(ctx context.Context) error {
	connCtx, cancelConns := context.WithCancel(context.WithoutCancel(ctx))
	handler := newWebSocketHandler(connCtx, cancelConns, l.cm.AcceptConnection)

	mux := http.NewServeMux()
	mux.Handle(l.path, handler)
	svr := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return fmt.Errorf("port %d is already in use", l.port)
		}
		return fmt.Errorf("listening on port %d: %w", l.port, err)
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), wsShutdownWait)
			defer cancel()
			if err := svr.Shutdown(shutdownCtx); err != nil {
				slog.WarnContext(ctx, "shutting down websocket server", "error", err)
			}
			// Hijacked connections are not tracked by Shutdown.
			handler.Stop()
		case <-done:
		}
	}()

	slog.InfoContext(ctx, "listening for websocket", "port", l.port, "path", l.path)

	err = svr.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving websocket on port %d: %w", l.port, err)
	}

	return nil
}

type webSocketHandler struct {
	upgrader    websocket.Upgrader
	wg          sync.WaitGroup
	accept      func(context.Context, io.ReadWriter)
	connCtx     context.Context
	cancelConns context.CancelFunc
}

func newWebSocketHandler(connCtx context.Context, cancel context.CancelFunc, accept func(context.Context, io.ReadWriter)) *webSocketHandler {
	return &webSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		accept:      accept,
		connCtx:     connCtx,
		cancelConns: cancel,
	}
}

func (h *webSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.DebugContext(r.Context(), "upgrading websocket", "remote", r.RemoteAddr, "error", err)
		return
	}

	h.wg.Add(1)
	defer h.wg.Done()

	ws := &wsReadWriter{conn: conn}
	defer ws.close()

	h.accept(h.connCtx, ws)
}

func (h *webSocketHandler) Stop() {
	h.cancelConns()
	h.wg.Wait()
}

// wsReadWriter adapts a message oriented websocket to the line oriented
// stream sessions expect.
type wsReadWriter struct {
	conn *websocket.Conn
	buf  []byte

	wmu sync.Mutex
}

func (c *wsReadWriter) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		typ, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if typ != websocket.TextMessage {
			continue
		}
		line := bytes.TrimRight(msg, "\r\n")
		c.buf = append(line, '\n')
	}

	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *wsReadWriter) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsReadWriter) close() {
	c.wmu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
	c.wmu.Unlock()

	if err := c.conn.Close(); err != nil {
		slog.Debug("closing websocket connection", "error", err)
	}
}
