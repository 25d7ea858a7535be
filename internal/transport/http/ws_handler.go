package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"reading-quiz-service/internal/app"
	"reading-quiz-service/internal/auth"
	"reading-quiz-service/internal/domain"
	"reading-quiz-service/internal/logging"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024 * 16,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type choicePayload struct {
	Label string `json:"label"`
}

type textPayload struct {
	Answer string `json:"answer"`
}

// audioPayload carries the recording base64-encoded, as encoding/json does for []byte.
type audioPayload struct {
	Audio []byte `json:"audio"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type ignoredPayload struct {
	Action string    `json:"action"`
	Stage  app.Stage `json:"stage"`
}

// ServeWS upgrades an authenticated request and plays one quiz session over the socket.
// It must run behind auth.Middleware.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	log := logging.WithContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	user := domain.User{ID: claims.UserID(), Username: claims.Username, Role: claims.Role}
	session, err := h.service.Open(r.Context(), user)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "state", Payload: session.Snapshot()})
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		h.service.Close(session.ID())
		return
	}
	log = log.WithField("session", session.ID())
	defer h.service.Close(session.ID())

	updates, cancel := session.Subscribe()
	defer cancel()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Single writer: gorilla connections support one concurrent writer only.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.WithError(err).Debug("ws write error")
				// Unblock the read loop.
				_ = conn.Close()
				return
			}
		}
	}()

	push := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: "state", Payload: snap}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		accepted, err := h.dispatch(r, session, inbound)
		if err != nil {
			push(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
			continue
		}
		if !accepted {
			push(outboundMessage{Type: "ignored", Payload: ignoredPayload{Action: inbound.Type, Stage: session.Stage()}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

type protocolError string

func (e protocolError) Error() string { return string(e) }

// dispatch applies one inbound message. It reports false when the session declined it.
func (h *WSHandler) dispatch(r *http.Request, session *app.Orchestrator, inbound inboundMessage) (bool, error) {
	switch inbound.Type {
	case "start":
		return h.service.Start(r.Context(), session.ID())
	case "menu":
		return session.Menu(), nil
	case "choice":
		var payload choicePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return false, protocolError("invalid choice payload")
		}
		return session.SubmitChoice(payload.Label), nil
	case "text":
		var payload textPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return false, protocolError("invalid text payload")
		}
		return session.SubmitTextAnswer(payload.Answer), nil
	case "audio":
		var payload audioPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return false, protocolError("invalid audio payload")
		}
		return session.SubmitAudioAnswer(payload.Audio), nil
	default:
		return false, protocolError("unsupported message type")
	}
}
