package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"firebase.google.com/go/v4/auth"

	ws "talentline/internal/infrastructure/websocket"
	"talentline/internal/usecase"
	"talentline/pkg/errors"
	"talentline/pkg/logger"
)

// Commands a connected UI can send over the socket. Server-to-client events
// are pushed by the chat session.
const (
	commandPing               = "ping"
	commandSelectConversation = "select_conversation"
	commandSendMessage        = "send_message"
	commandMarkRead           = "mark_read"
)

type clientCommand struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text,omitempty"`
}

type WebSocketHandler struct {
	wsManager   *ws.Manager
	authClient  *auth.Client
	chatUseCase *usecase.ChatUseCase
	sessions    *usecase.SessionManager
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, authClient *auth.Client, chatUseCase *usecase.ChatUseCase, sessions *usecase.SessionManager) *WebSocketHandler {
	h := &WebSocketHandler{
		wsManager:   wsManager,
		authClient:  authClient,
		chatUseCase: chatUseCase,
		sessions:    sessions,
	}
	wsManager.OnClientMessage = h.handleClientMessage
	return h
}

// HandleWebSocket authenticates the ?token= query parameter, upgrades the
// connection, and binds it to the actor's chat session. The session starts
// with the first connection and is torn down when the last one closes.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		return errors.Unauthorized("Authentication required", nil)
	}

	decoded, err := h.authClient.VerifyIDToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}
	actorID := decoded.UID

	if _, err := h.sessions.Attach(actorID); err != nil {
		return errors.Internal("Failed to start chat session", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.sessions.Release(actorID)
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := ws.NewClient(actorID, conn)

	h.wsManager.Register <- client

	go func() {
		client.ReadPump(h.wsManager)
		h.sessions.Release(actorID)
	}()
	go client.WritePump()

	return nil
}

func (h *WebSocketHandler) handleClientMessage(client *ws.Client, message []byte) {
	var cmd clientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		logger.Warn("Invalid frame from actor %s: %v", client.ActorID, err)
		h.sendError(client, "Invalid message format")
		return
	}

	switch cmd.Type {
	case commandPing:
		h.send(client, map[string]string{"type": "pong"})

	case commandSelectConversation:
		session := h.sessions.Get(client.ActorID)
		if session == nil {
			h.sendError(client, "No active session")
			return
		}
		if err := session.Select(cmd.ConversationID); err != nil {
			h.sendError(client, err.Error())
		}

	case commandSendMessage:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := h.chatUseCase.SendMessage(ctx, client.ActorID, usecase.SendMessageInput{
			ConversationID: cmd.ConversationID,
			Text:           cmd.Text,
		})
		if err != nil {
			h.sendError(client, err.Error())
		}

	case commandMarkRead:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.chatUseCase.MarkRead(ctx, client.ActorID, cmd.ConversationID); err != nil {
			h.sendError(client, err.Error())
		}

	default:
		logger.Warn("Unknown command %q from actor %s", cmd.Type, client.ActorID)
		h.sendError(client, "Unknown command")
	}
}

func (h *WebSocketHandler) send(client *ws.Client, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal frame: %v", err)
		return
	}
	client.Send(data)
}

func (h *WebSocketHandler) sendError(client *ws.Client, message string) {
	h.send(client, map[string]string{"type": "error", "message": message})
}
