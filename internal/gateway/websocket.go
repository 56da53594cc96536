package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/observability"
	"github.com/haasonsaas/toolchat/pkg/models"
)

const (
	wsMaxPayloadBytes = 1 << 20
	wsSendBuffer      = 64
	wsPongWait        = 45 * time.Second
	wsPingPeriod      = 30 * time.Second
	wsWriteWait       = 10 * time.Second
)

var errChatInProgress = errors.New("a chat is already in progress on this connection")

// wsSession is one websocket connection. Each text frame is a chatRequest;
// the server answers with the StreamEvents of that chat. A connection runs
// at most one chat at a time.
type wsSession struct {
	server *Server
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	// actor is resolved once from the upgrade request.
	actor   *models.User
	request *http.Request

	busy  atomic.Bool
	chats sync.WaitGroup
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  8192,
		WriteBufferSize: 8192,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(s.config.CORSOrigins) == 0 || s.originAllowed(origin)
		},
	}
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	actor := s.resolveActor(r, "")
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.DebugContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	session := &wsSession{
		server:  s,
		conn:    conn,
		send:    make(chan []byte, wsSendBuffer),
		ctx:     ctx,
		cancel:  cancel,
		actor:   actor,
		request: r,
	}
	session.run()
}

func (ws *wsSession) run() {
	defer ws.close()
	go ws.writeLoop()
	ws.readLoop()
}

func (ws *wsSession) close() {
	ws.cancel()
	ws.chats.Wait()
	close(ws.send)
	_ = ws.conn.Close()
}

func (ws *wsSession) readLoop() {
	ws.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = ws.conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck
	ws.conn.SetPongHandler(func(string) error {
		return ws.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		messageType, data, err := ws.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		_ = ws.conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck

		var req chatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			ws.sendError("invalid frame: " + err.Error())
			continue
		}
		if err := req.validate(); err != nil {
			ws.sendError(err.Error())
			continue
		}
		if !ws.busy.CompareAndSwap(false, true) {
			ws.sendError(errChatInProgress.Error())
			continue
		}
		ws.chats.Add(1)
		go ws.runChat(req)
	}
}

func (ws *wsSession) runChat(req chatRequest) {
	defer ws.chats.Done()
	defer ws.busy.Store(false)

	s := ws.server
	// Every frame is its own chat call with its own request id.
	exec := agent.NewExecutionContext(ws.actor, clientIP(ws.request), ws.request.UserAgent())
	exec.CorrelationID = observability.GetCorrelationID(ws.request.Context())
	ctx := observability.AddRequestID(withActor(ws.ctx, ws.actor), exec.RequestID)

	events, err := s.deps.Chat.ChatStream(ctx, agent.ChatRequest{
		Prompt:  req.Message,
		History: req.History,
		Exec:    exec,
	})
	if err != nil {
		ws.sendError(err.Error())
		return
	}
	for ev := range events {
		if !ws.enqueue(ev) {
			drain(events)
			return
		}
	}
}

func (ws *wsSession) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ws.ctx.Done():
			return
		case msg, ok := <-ws.send:
			if !ok {
				return
			}
			_ = ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
			if err := ws.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				ws.cancel()
				return
			}
		case <-ticker.C:
			_ = ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck
			if err := ws.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				ws.cancel()
				return
			}
		}
	}
}

// enqueue blocks until the event is queued or the session ends. Stream
// events are never dropped while the connection is alive.
func (ws *wsSession) enqueue(ev models.StreamEvent) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		return false
	}
	select {
	case ws.send <- data:
		return true
	case <-ws.ctx.Done():
		return false
	}
}

func (ws *wsSession) sendError(message string) {
	ws.enqueue(models.StreamEvent{Type: models.StreamEventError, Message: message})
}
