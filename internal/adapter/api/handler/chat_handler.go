package handler

import (
	"strings"

	"github.com/labstack/echo/v4"

	"talentline/internal/usecase"
	"talentline/pkg/response"
	"talentline/pkg/utils"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type startConversationRequest struct {
	PeerID string `json:"peer_id" validate:"required"`
}

// StartConversation finds or creates the conversation with another actor.
func (h *ChatHandler) StartConversation(c echo.Context) error {
	var req startConversationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	actorID := c.Get("uid").(string)

	conversation, err := h.chatUseCase.StartConversation(c.Request().Context(), actorID, req.PeerID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, conversation)
}

// GetConversations returns the actor's conversations in list order.
func (h *ChatHandler) GetConversations(c echo.Context) error {
	actorID := c.Get("uid").(string)

	conversations, err := h.chatUseCase.ListConversations(c.Request().Context(), actorID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversations)
}

// GetMessages returns a page of a conversation's history, oldest first.
func (h *ChatHandler) GetMessages(c echo.Context) error {
	actorID := c.Get("uid").(string)
	conversationID := c.Param("id")

	params := utils.GetPaginationParams(c)

	messages, total, err := h.chatUseCase.ListMessages(c.Request().Context(), actorID, conversationID, params.PageSize, params.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.SuccessPaginated(c, messages, total, params.PageSize, params.Offset)
}

// SendMessage accepts either a JSON body {"text": ...} or a multipart form
// with a "text" field and an optional "attachment" file.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	actorID := c.Get("uid").(string)
	conversationID := c.Param("id")

	input := usecase.SendMessageInput{
		ConversationID: conversationID,
	}

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		input.Text = c.FormValue("text")

		if fileHeader, err := c.FormFile("attachment"); err == nil {
			file, err := fileHeader.Open()
			if err != nil {
				return response.Error(c, err)
			}
			defer file.Close()

			mimeType := fileHeader.Header.Get("Content-Type")
			input.Attachment = &usecase.AttachmentUpload{
				Content:  file,
				Name:     fileHeader.Filename,
				MIMEType: mimeType,
				Size:     fileHeader.Size,
				IsImage:  strings.HasPrefix(mimeType, "image/"),
			}
		}
	} else {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.Bind(&req); err != nil {
			return response.Error(c, err)
		}
		input.Text = req.Text
	}

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), actorID, input)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// MarkRead clears the actor's unread count on a conversation.
func (h *ChatHandler) MarkRead(c echo.Context) error {
	actorID := c.Get("uid").(string)
	conversationID := c.Param("id")

	if err := h.chatUseCase.MarkRead(c.Request().Context(), actorID, conversationID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]string{"status": "read"})
}
