package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type WSHandler struct {
	service  *app.GameService
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, hub *Hub) *WSHandler {
	return &WSHandler{
		service: service,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origins are enforced by the CORS layer for browsers that send them
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type roomPayload struct {
	RoomCode string `json:"roomCode"`
}

type startGamePayload struct {
	RoomCode  string `json:"roomCode"`
	GameMode  string `json:"gameMode"`
	AutoDelay int    `json:"autoDelay"`
}

type joinPayload struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
}

type answerPayload struct {
	RoomCode    string `json:"roomCode"`
	AnswerIndex *int   `json:"answerIndex"`
}

// ServeWS upgrades the request and feeds the client's events into the game service until the
// socket closes, which is reported as a disconnect.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade failed")
		return
	}

	connID := uuid.NewString()
	c := h.hub.register(connID, ws)
	go h.hub.writePump(c)
	log.Debug().Str("conn", connID).Str("remote", r.RemoteAddr).Msg("websocket connected")

	defer func() {
		h.hub.unregister(c)
		h.service.Disconnect(connID)
		log.Debug().Str("conn", connID).Msg("websocket closed")
	}()

	cfg := h.hub.config
	ws.SetReadLimit(cfg.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	ctx := r.Context()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("conn", connID).Msg("unexpected WebSocket close error")
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			h.hub.Send(connID, domain.EventError, domain.Describe(fmt.Errorf("%w: malformed message", domain.ErrBadRequest)))
			continue
		}
		if err := h.dispatch(ctx, connID, inbound); err != nil {
			h.hub.Send(connID, domain.EventError, domain.Describe(err))
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, conn string, msg inboundMessage) error {
	switch msg.Type {
	case "create_room":
		_, err := h.service.CreateRoom(ctx, conn)
		return err

	case "start_game":
		var p startGamePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return h.service.StartGame(ctx, p.RoomCode, conn, domain.ParseGameMode(p.GameMode), p.AutoDelay)

	case "advance_question":
		var p roomPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		h.service.AdvanceQuestion(ctx, p.RoomCode, conn)
		return nil

	case "skip_to_results":
		var p roomPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		h.service.SkipToResults(ctx, p.RoomCode, conn)
		return nil

	case "join":
		var p joinPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		_, err := h.service.JoinPlayer(ctx, p.RoomCode, p.Name, conn)
		return err

	case "submit_answer":
		var p answerPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.AnswerIndex == nil {
			return fmt.Errorf("%w: missing answerIndex", domain.ErrBadRequest)
		}
		h.service.SubmitAnswer(ctx, p.RoomCode, conn, *p.AnswerIndex)
		return nil

	case "host_reconnect":
		var p roomPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		_, err := h.service.HostReconnect(ctx, p.RoomCode, conn)
		return err

	case "player_reconnect":
		var p joinPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		_, err := h.service.PlayerReconnect(ctx, p.RoomCode, p.Name, conn)
		return err

	default:
		return fmt.Errorf("%w: unsupported message type %q", domain.ErrBadRequest, msg.Type)
	}
}

func decode(msg inboundMessage, dst any) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%w: %s needs a payload", domain.ErrBadRequest, msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, dst); err != nil {
		return fmt.Errorf("%w: invalid %s payload", domain.ErrBadRequest, msg.Type)
	}
	return nil
}
