package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pump-sim/backend/internal/models"
	"github.com/pump-sim/backend/internal/session"
	"github.com/rs/zerolog"
)

// WebSocket message types for the playback protocol
const (
	// Client -> Server messages
	MsgTypePlay       = "playback:play"
	MsgTypePause      = "playback:pause"
	MsgTypeToggle     = "playback:toggle"
	MsgTypeReset      = "playback:reset"
	MsgTypeSeek       = "playback:seek"
	MsgTypeSpeed      = "playback:speed"
	MsgTypeChartClick = "chart:click"
	MsgTypeRegenerate = "series:regenerate"
	MsgTypePing       = "ping"

	// Server -> Client messages
	MsgTypeConnected = "connected"
	MsgTypeState     = "state"
	MsgTypeAck       = "ack"
	MsgTypeError     = "error"
	MsgTypePong      = "pong"
)

const wsWriteTimeout = 5 * time.Second

// WebSocket message structure
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// WSCommandPayload carries the arguments of seek, speed and regenerate commands.
type WSCommandPayload struct {
	Frame      *int     `json:"frame,omitempty"`
	Multiplier *float64 `json:"multiplier,omitempty"`
	Seed       *int64   `json:"seed,omitempty"`
}

// WSConnectedPayload is sent once after the upgrade.
type WSConnectedPayload struct {
	ClientID string             `json:"clientId"`
	Session  models.SessionInfo `json:"session"`
	Update   models.FrameUpdate `json:"update"`
}

// WebSocket error response
type WSErrorResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WebSocketHandler manages WebSocket connections for playback control
type WebSocketHandler struct {
	handler   *Handler
	upgrader  websocket.Upgrader
	readLimit int64
}

// NewWebSocketHandler creates a new WebSocket handler. readLimitKB caps the
// size of incoming messages; zero keeps the gorilla default.
func NewWebSocketHandler(h *Handler, readLimitKB int) *WebSocketHandler {
	return &WebSocketHandler{
		handler: h,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from dev server
				return true
			},
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
		},
		readLimit: int64(readLimitKB) * 1024,
	}
}

// wsClient serializes writes to one connection.
type wsClient struct {
	id  string
	ws  *websocket.Conn
	mu  sync.Mutex
	log zerolog.Logger
}

func (cl *wsClient) send(msg WSMessage) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	cl.ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := cl.ws.WriteJSON(msg); err != nil {
		cl.log.Debug().Err(err).Str("type", msg.Type).Msg("write failed")
		return err
	}
	return nil
}

func (cl *wsClient) sendError(id string, apiErr *APIError) {
	cl.send(WSMessage{
		Type: MsgTypeError,
		ID:   id,
		Payload: mustJSON(WSErrorResponse{
			Type:    MsgTypeError,
			Message: apiErr.Message,
			Code:    apiErr.Code,
		}),
	})
}

// HandleWebSocket upgrades the connection, pushes a state message on every
// playback change and applies commands sent by the client.
func (wsh *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	sess, err := wsh.handler.currentSession()
	if err != nil {
		return err
	}

	ws, err := wsh.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	if wsh.readLimit > 0 {
		ws.SetReadLimit(wsh.readLimit)
	}

	cl := &wsClient{id: uuid.New().String(), ws: ws}
	cl.log = wsh.handler.log.With().Str("client", cl.id[:8]).Logger()
	cl.log.Info().Msg("websocket client connected")

	wsh.handler.streamOpened("ws")
	defer wsh.handler.streamClosed("ws")

	states, cancel := sess.Controller().Subscribe()

	// Send welcome message with the current frame
	first, ok := <-states
	if !ok {
		cancel()
		return nil
	}
	cl.send(WSMessage{
		Type: MsgTypeConnected,
		ID:   cl.id,
		Payload: mustJSON(WSConnectedPayload{
			ClientID: cl.id,
			Session:  sess.Info(),
			Update:   sess.FrameUpdate(first),
		}),
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Closing the connection unblocks the read loop when the subscription
		// ends or the client stops reading.
		defer ws.Close()
		for st := range states {
			if err := cl.send(WSMessage{Type: MsgTypeState, Payload: mustJSON(sess.FrameUpdate(st))}); err != nil {
				return
			}
		}
	}()

	// Main message loop
	for {
		var msg WSMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				cl.log.Warn().Err(err).Msg("websocket connection error")
			}
			break
		}
		wsh.handleMessage(c.Request().Context(), cl, sess, msg)
	}

	cancel()
	wg.Wait()
	cl.log.Info().Msg("websocket client disconnected")
	return nil
}

func (wsh *WebSocketHandler) handleMessage(ctx context.Context, cl *wsClient, sess *session.Session, msg WSMessage) {
	if msg.Type == MsgTypePing {
		// Respond with pong to keep connection alive
		cl.send(WSMessage{Type: MsgTypePong, ID: msg.ID})
		return
	}

	var payload WSCommandPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			cl.sendError(msg.ID, NewBadRequestError("invalid payload", err))
			return
		}
	}

	ctrl := sess.Controller()
	var err error
	switch msg.Type {
	case MsgTypePlay:
		ctrl.Play()
	case MsgTypePause:
		ctrl.Pause()
	case MsgTypeToggle:
		ctrl.Toggle()
	case MsgTypeReset:
		ctrl.Reset()
	case MsgTypeSeek, MsgTypeChartClick:
		if payload.Frame == nil {
			cl.sendError(msg.ID, NewValidationError("frame"))
			return
		}
		if msg.Type == MsgTypeChartClick {
			err = sess.OnFrameClick(*payload.Frame)
		} else {
			err = ctrl.Seek(*payload.Frame)
		}
	case MsgTypeSpeed:
		if payload.Multiplier == nil {
			cl.sendError(msg.ID, NewValidationError("multiplier"))
			return
		}
		err = ctrl.SetSpeed(*payload.Multiplier)
	case MsgTypeRegenerate:
		_, err = wsh.handler.sessions.Regenerate(ctx, payload.Seed)
	default:
		cl.sendError(msg.ID, &APIError{
			Status:  http.StatusBadRequest,
			Code:    CodeInvalidType,
			Message: "Unknown message type: " + msg.Type,
		})
		return
	}

	if err != nil {
		cl.sendError(msg.ID, FromDomainError(err))
		return
	}
	cl.send(WSMessage{Type: MsgTypeAck, ID: msg.ID})
}

func mustJSON(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}
