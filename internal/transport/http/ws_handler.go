package http

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// WSHandler wires websocket connections into the quiz runner.
type WSHandler struct {
	runner   *app.QuizRunner
	hub      *Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(runner *app.QuizRunner, hub *Hub) *WSHandler {
	return &WSHandler{
		runner: runner,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type joinPayload struct {
	UserID string `json:"userId"`
}

type adminJoinPayload struct {
	AdminID string `json:"adminId"`
}

type submitPayload struct {
	QuestionID     string `json:"questionId"`
	SelectedAnswer int    `json:"selectedAnswer"`
}

// ServeWS upgrades the request and pumps messages between the connection and
// the runner.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	send := h.hub.Register(connID)
	defer func() {
		h.hub.Unregister(connID)
		h.runner.Disconnect(connID)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	log.Printf("client connected: %s", connID)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, connID, inbound)
	}

	h.hub.Unregister(connID)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, connID string, inbound inboundMessage) {
	ctx := r.Context()

	switch inbound.Type {
	case "join-quiz":
		var payload joinPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.UserID == "" {
			h.hub.Send(connID, domain.ErrorEvent("invalid join payload"))
			return
		}
		if err := h.runner.Join(ctx, connID, payload.UserID); err != nil {
			log.Printf("join quiz: %v", err)
			h.hub.Send(connID, domain.ErrorEvent("Failed to join quiz"))
		}

	case "submit-answer":
		var payload submitPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			h.hub.Send(connID, domain.ErrorEvent("invalid answer payload"))
			return
		}
		result, err := h.runner.SubmitAnswer(ctx, connID, payload.QuestionID, payload.SelectedAnswer)
		if err != nil {
			h.hub.Send(connID, domain.ErrorEvent(err.Error()))
			return
		}
		h.hub.Send(connID, domain.Event{Type: domain.EventAnswerResult, Payload: result})

	case "admin-join":
		var payload adminJoinPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.AdminID == "" {
			h.hub.Send(connID, domain.ErrorEvent("invalid admin payload"))
			return
		}
		if err := h.runner.AdminJoin(ctx, connID, payload.AdminID); err != nil {
			log.Printf("admin join: %v", err)
			h.hub.Send(connID, domain.ErrorEvent(domain.ErrAdminRequired.Error()))
		}

	case "force-next-question":
		if err := h.runner.ForceAdvance(ctx, connID); err != nil {
			h.hub.Send(connID, domain.ErrorEvent(err.Error()))
		}

	default:
		h.hub.Send(connID, domain.ErrorEvent("unsupported message type"))
	}
}
